// Package jobcontext defines the value passed to every registered
// handler alongside the payload (spec §4.4 step 5).
package jobcontext

// Context carries the identifying information a handler may need to
// log, emit metrics, or make idempotency decisions. It is distinct from
// context.Context, which carries cancellation and the trace id slot.
type Context struct {
	JobID     string
	TenantID  string
	AttemptNo int
	TraceID   string
}
