package refactor

import (
	"context"
	"errors"
	"fmt"
)

type ErrorKind string

const (
	// KindConnectivity: the store is unreachable. Fatal to the whole job.
	KindConnectivity ErrorKind = "connectivity"
	// KindConstraintViolation: a uniqueness constraint was breached, which means the
	// category nodes were not prepared correctly. Fatal for the category.
	KindConstraintViolation ErrorKind = "constraint_violation"
	// KindQueryExecution: the mutation was malformed or rejected. Fatal for the category.
	KindQueryExecution ErrorKind = "query_execution"
	// KindTransient: lock contention or timeout. Retried with identical parameters.
	KindTransient ErrorKind = "transient"
	// KindCanceled: the job context was canceled.
	KindCanceled ErrorKind = "canceled"
)

type Error struct {
	Kind     ErrorKind
	Op       string
	Category string
	Cause    error
}

func (e *Error) Error() string {
	if e == nil {
		return "categorylink operation failed"
	}
	if e.Category != "" {
		return fmt.Sprintf("categorylink %s failed (kind=%s category=%q): %v", e.Op, e.Kind, e.Category, e.Cause)
	}
	return fmt.Sprintf("categorylink %s failed (kind=%s): %v", e.Op, e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func NewError(kind ErrorKind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// KindOf classifies err. Context errors map to canceled/transient, errors that
// carry no kind are treated as query execution failures.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != "" {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindQueryExecution
}

// IsFatalForJob reports whether a failure of this kind must stop the remaining categories.
func IsFatalForJob(kind ErrorKind) bool {
	return kind == KindConnectivity || kind == KindCanceled
}

func withCategory(err error, op, category string) *Error {
	var e *Error
	if errors.As(err, &e) {
		out := *e
		if out.Category == "" {
			out.Category = category
		}
		if out.Op == "" {
			out.Op = op
		}
		return &out
	}
	return &Error{Kind: KindOf(err), Op: op, Category: category, Cause: err}
}
