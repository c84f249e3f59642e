// Package shutdown converts SIGINT and SIGTERM into cooperative stop requests.
//
// A State carries the quit counter and the run mode. A Handler is bound to a
// State in one of two variants:
//
//   - Graceful: the first signal asks the run loop to finish its current unit
//     of work; the loop notices through Checkpoint. A second signal prints an
//     exit notice and terminates with status 128+signum.
//   - Immediate: any signal terminates with status 128+signum at once.
//
// Only one variant is active at a time. Registering again swaps the variant and
// the state it updates.
//
// Example:
//
//	state := shutdown.NewState(shutdown.ModeSelfTest)
//	h := shutdown.NewHandler(shutdown.WithLogger(log))
//	defer h.Stop()
//
//	h.RegisterImmediate(state)
//	runSelfTest()
//
//	state.SetMode(shutdown.ModeNormal)
//	h.RegisterGraceful(state)
//	for !h.Checkpoint() {
//		runNextClass()
//	}
package shutdown
