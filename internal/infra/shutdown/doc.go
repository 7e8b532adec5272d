// Package shutdown coordinates graceful process termination.
//
// Components register hooks as they start; on SIGINT, SIGTERM or an
// explicit Trigger the hooks run in reverse registration order under a
// shared deadline, so later components stop before the ones they depend
// on.
//
//	h := shutdown.NewHandler(15*time.Second, shutdown.WithLogger(log))
//	h.OnShutdown("http", srv.Shutdown)
//	err := h.Wait()
package shutdown
