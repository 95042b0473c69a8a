package graphql

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/arnellebalane/instagram-graphql/errors"
)

// mapError converts an internal error into a GraphQL error with an
// appropriate error code. Validation failures surface as user-input
// errors, infrastructure failures as server faults.
func mapError(err error, operation string) *gqlerror.Error {
	if err == nil {
		return nil
	}

	switch {
	case errors.IsInvalid(err):
		return &gqlerror.Error{
			Message: userInputMessage(err),
			Extensions: map[string]interface{}{
				"code":      "BAD_USER_INPUT",
				"operation": operation,
			},
		}

	case stderrors.Is(err, context.DeadlineExceeded):
		return &gqlerror.Error{
			Message: "Query timeout exceeded",
			Extensions: map[string]interface{}{
				"code":      "DEADLINE_EXCEEDED",
				"operation": operation,
			},
		}

	case stderrors.Is(err, context.Canceled):
		return &gqlerror.Error{
			Message: "Query cancelled",
			Extensions: map[string]interface{}{
				"code":      "CANCELLED",
				"operation": operation,
			},
		}

	case errors.IsTransient(err):
		return &gqlerror.Error{
			Message: fmt.Sprintf("Temporary error: %s", err.Error()),
			Extensions: map[string]interface{}{
				"code":      "SERVICE_UNAVAILABLE",
				"operation": operation,
				"retryable": true,
			},
		}
	}

	return &gqlerror.Error{
		Message: err.Error(),
		Extensions: map[string]interface{}{
			"code":      "INTERNAL_SERVER_ERROR",
			"operation": operation,
		},
	}
}

// anomalyError builds the per-field error for a dangling reference
// detected at read time. It carries the field path so the anomaly stays
// visible without aborting the rest of the payload.
func anomalyError(err error, path ast.Path) *gqlerror.Error {
	return &gqlerror.Error{
		Message: err.Error(),
		Path:    path,
		Extensions: map[string]interface{}{
			"code": "DATA_INTEGRITY",
		},
	}
}

// userInputMessage strips internal wrap context from input errors,
// keeping the layer that names the offending field
func userInputMessage(err error) string {
	sentinels := []error{
		errors.ErrUnknownAuthor,
		errors.ErrMissingField,
		errors.ErrInvalidArgument,
	}

	for e := err; e != nil; e = stderrors.Unwrap(e) {
		inner := stderrors.Unwrap(e)
		for _, sentinel := range sentinels {
			if e == sentinel || inner == sentinel {
				return e.Error()
			}
		}
	}
	return err.Error()
}
