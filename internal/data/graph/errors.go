package graph

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/categorylink/internal/refactor"
)

// Classify maps a driver error onto the refactor error kinds. A nil error stays nil.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var re *refactor.Error
	if errors.As(err, &re) {
		return err
	}
	return refactor.NewError(kindOf(err), op, err)
}

func kindOf(err error) refactor.ErrorKind {
	switch {
	case errors.Is(err, context.Canceled):
		return refactor.KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return refactor.KindTransient
	case neo4j.IsConnectivityError(err):
		return refactor.KindConnectivity
	}

	var nerr *neo4j.Neo4jError
	if errors.As(err, &nerr) {
		return kindOfCode(nerr.Code)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return refactor.KindConnectivity
	}
	if neo4j.IsRetryable(err) {
		return refactor.KindTransient
	}
	return refactor.KindQueryExecution
}

// kindOfCode reads a Neo4j status code, Neo.<Classification>.<Category>.<Title>.
func kindOfCode(code string) refactor.ErrorKind {
	parts := strings.Split(code, ".")
	if len(parts) < 4 {
		return refactor.KindQueryExecution
	}
	classification, category, title := parts[1], parts[2], parts[3]
	switch {
	case title == "ConstraintValidationFailed":
		return refactor.KindConstraintViolation
	case classification == "TransientError":
		return refactor.KindTransient
	case category == "Security":
		// Bad credentials fail every category the same way.
		return refactor.KindConnectivity
	case category == "Cluster" && (title == "NotALeader" || title == "NoLeaderAvailable"):
		return refactor.KindTransient
	case title == "LockClientStopped" || title == "DeadlockDetected" || title == "TransactionTimedOut":
		return refactor.KindTransient
	default:
		return refactor.KindQueryExecution
	}
}
