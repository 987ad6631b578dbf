package ctxutil

import "context"

type traceDataKey struct{}

// TraceData identifies one status-server request. RunID is set when the
// request is scoped to a refactor run (the run_id query parameter).
type TraceData struct {
	TraceID   string
	RequestID string
	RunID     string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	if td == nil {
		return ctx
	}
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

// LogFields returns the non-empty IDs as logger key/value pairs.
func (td *TraceData) LogFields() []interface{} {
	if td == nil {
		return nil
	}
	var kv []interface{}
	if td.TraceID != "" {
		kv = append(kv, "trace_id", td.TraceID)
	}
	if td.RequestID != "" {
		kv = append(kv, "request_id", td.RequestID)
	}
	if td.RunID != "" {
		kv = append(kv, "run_id", td.RunID)
	}
	return kv
}
