// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

// Package zuora implements the HTTP transport shared by every Zuora API
// surface: authentication, retrying backoff, data-center resolution and
// error classification.
package zuora

import (
	"errors"
	"fmt"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
)

var (
	mon = monkit.Package()

	// Error is the error class for general zuora client errors.
	Error = errs.Class("zuora client")

	// BadCredentials is returned when no data center accepts the
	// configured credentials.
	BadCredentials = errs.Class("bad credentials")

	// ErrNotFound wraps 404 responses on streaming endpoints. Exports are
	// garbage collected upstream, so callers must treat this as a signal
	// to recompute the window, not as a retryable failure.
	ErrNotFound = errs.Class("not found")
)

// APIError is any non-2xx response that is not handled by a more specific
// classification.
type APIError struct {
	Status int
	Body   []byte
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Body)
}

// APIErrorStatus returns the HTTP status of an APIError in the chain of
// err, or 0 when there is none.
func APIErrorStatus(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
