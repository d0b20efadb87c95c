// Package dispatch runs the tick cycle: receive input, submit the decoded
// intent, drain the bus, apply each event, render. The loop is the only code
// that touches application state; deferred goroutines only see the bus.
package dispatch
