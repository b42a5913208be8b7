package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	casedomain "github.com/smallbiznis/recovery/internal/cases/domain"
	ingestiondomain "github.com/smallbiznis/recovery/internal/ingestion/domain"
	profiledomain "github.com/smallbiznis/recovery/internal/profile/domain"
	riskdomain "github.com/smallbiznis/recovery/internal/risk/domain"
	settlementdomain "github.com/smallbiznis/recovery/internal/settlement/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, ingestiondomain.ErrSourceUnavailable),
		errors.Is(err, ingestiondomain.ErrNoSource):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the error type and code attached to request logs.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout", "deadline_exceeded"
	case errors.Is(err, context.Canceled):
		return "canceled", "canceled"
	}
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	} else if status != http.StatusInternalServerError {
		code = err.Error()
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, casedomain.ErrInvalidID),
		errors.Is(err, casedomain.ErrInvalidZone),
		errors.Is(err, casedomain.ErrInvalidAction),
		errors.Is(err, casedomain.ErrInvalidStatus),
		errors.Is(err, casedomain.ErrInvalidAmount),
		errors.Is(err, casedomain.ErrInvalidDueDate),
		errors.Is(err, casedomain.ErrInvalidName),
		errors.Is(err, casedomain.ErrInvalidDays),
		errors.Is(err, riskdomain.ErrInvalidPrediction),
		errors.Is(err, profiledomain.ErrInvalidName),
		errors.Is(err, settlementdomain.ErrMissingCustomer),
		errors.Is(err, settlementdomain.ErrInvalidFinancials),
		errors.Is(err, settlementdomain.ErrOfferNotAcceptable):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, casedomain.ErrCaseClosed),
		errors.Is(err, casedomain.ErrConcurrentUpdate),
		errors.Is(err, casedomain.ErrInvalidTransition),
		errors.Is(err, settlementdomain.ErrNoPendingOffer),
		errors.Is(err, settlementdomain.ErrPlanAlreadyAgreed),
		errors.Is(err, ingestiondomain.ErrRunInProgress),
		errors.Is(err, gorm.ErrDuplicatedKey):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	for _, known := range []error{
		casedomain.ErrCaseClosed,
		casedomain.ErrConcurrentUpdate,
		casedomain.ErrInvalidTransition,
		settlementdomain.ErrNoPendingOffer,
		settlementdomain.ErrPlanAlreadyAgreed,
		ingestiondomain.ErrRunInProgress,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "conflict"
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, casedomain.ErrNotFound),
		errors.Is(err, profiledomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	for _, known := range []error{
		ErrInvalidRequest,
		casedomain.ErrInvalidID,
		casedomain.ErrInvalidZone,
		casedomain.ErrInvalidAction,
		casedomain.ErrInvalidStatus,
		casedomain.ErrInvalidAmount,
		casedomain.ErrInvalidDueDate,
		casedomain.ErrInvalidName,
		casedomain.ErrInvalidDays,
		riskdomain.ErrInvalidPrediction,
		profiledomain.ErrInvalidName,
		settlementdomain.ErrMissingCustomer,
		settlementdomain.ErrInvalidFinancials,
		settlementdomain.ErrOfferNotAcceptable,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "missing_customer":
		return "customer"
	case "invalid_financials":
		return "financials"
	case "offer_not_acceptable":
		return "accepted"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "missing_customer":
		return "case has no linked customer"
	case "offer_not_acceptable":
		return "offer cannot be accepted"
	default:
		return "invalid value"
	}
}
