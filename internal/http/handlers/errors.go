// Package handlers defines the HTTP-layer error taxonomy used across all API
// endpoints.
//
// Codes are lowercase snake_case and stable: clients branch on them
// programmatically, so a code change is a breaking API change. Every error
// response carries both an HTTP status and one of these codes.
//
// The mapping from service errors to (status, code) pairs is centralized in
// failService so all handlers translate the same failure the same way:
//
//   - missing entity                      -> 404 not_found
//   - malformed or cross-referenced input -> 400 bad_request
//   - legal input, illegal state          -> 422 business_rule_violation
//   - lost optimistic race                -> 409 conflict
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/mealhub/go-delivery-backend/internal/services"
)

const (
	ErrCodeBadRequest        = "bad_request"
	ErrCodeNotFound          = "not_found"
	ErrCodeConflict          = "conflict"
	ErrCodeBusinessRule      = "business_rule_violation"
	ErrCodeRateLimited       = "too_many_requests"
	ErrCodeInternal          = "internal_error"
	ErrCodeMethodNotAllowed  = "method_not_allowed"
	ErrCodeBadIdempotencyKey = "bad_idempotency_key"
)

// failService translates a service-layer error into the uniform HTTP error
// envelope. Unrecognized errors map to 500 internal_error with a generic
// message; service error text is only exposed for the predictable cases.
func failService(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrRestaurantNotFound),
		errors.Is(err, services.ErrItemNotFound),
		errors.Is(err, services.ErrDriverNotFound),
		errors.Is(err, services.ErrLocationUnknown):
		fail(c, 404, ErrCodeNotFound, err.Error())

	case errors.Is(err, services.ErrEmptyOrder),
		errors.Is(err, services.ErrInvalidQuantity),
		errors.Is(err, services.ErrItemWrongRestaurant):
		fail(c, 400, ErrCodeBadRequest, err.Error())

	case errors.Is(err, services.ErrRestaurantClosed),
		errors.Is(err, services.ErrItemDeleted),
		errors.Is(err, services.ErrItemUnavailable),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrDriverAssignment):
		fail(c, 422, ErrCodeBusinessRule, err.Error())

	case errors.Is(err, services.ErrConflict):
		fail(c, 409, ErrCodeConflict, err.Error())

	default:
		fail(c, 500, ErrCodeInternal, "internal server error")
	}
}
