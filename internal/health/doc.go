// Package health provides composable probes and the liveness/readiness
// handlers served on the ops listener.
//
// Probes combine with [All] (AND) and [Any] (OR); [Fixed] is static and
// [CheckFunc] adapts a plain function. [Timeout] bounds a slow dependency.
//
// [ShutdownGate] fails readiness as soon as shutdown starts so load
// balancers stop routing before in-flight requests are drained.
package health
