package handlers

import (
	"errors"
	"net/http"

	"github.com/yungbote/categorylink/internal/platform/apierr"
)

var errInvalidLimit = apierr.New(http.StatusBadRequest, "invalid_limit", errors.New("limit must be an integer between 1 and 100"))

func ledgerUnavailable(err error) error {
	return apierr.New(http.StatusServiceUnavailable, "ledger_unavailable", err)
}
