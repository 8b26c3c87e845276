package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/inventoryhub/internal/accounts"
	"github.com/geocoder89/inventoryhub/internal/domain/category"
	"github.com/geocoder89/inventoryhub/internal/domain/inventory"
	"github.com/geocoder89/inventoryhub/internal/domain/role"
	"github.com/geocoder89/inventoryhub/internal/domain/thing"
	"github.com/geocoder89/inventoryhub/internal/domain/user"
	"github.com/geocoder89/inventoryhub/internal/observability"
	"github.com/geocoder89/inventoryhub/internal/security"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

// CtxRequestID is the gin key the request id middleware stores the id under.
const CtxRequestID = "request_id"

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get(CtxRequestID)

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	if id := observability.RequestIDFrom(ctx.Request.Context()); id != "" {
		return id
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

// RespondError writes the error envelope and aborts the chain. The status is
// repeated in the body for clients that only look at the payload.
func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.AbortWithStatusJSON(status, gin.H{
		"status": status,
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondUnauthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

func RespondForbidden(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusForbidden, "forbidden", message, nil)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

func RespondConflict(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusConflict, code, message, nil)
}

func RespondBodyTooLarge(ctx *gin.Context, limit int64) {
	RespondError(ctx, http.StatusRequestEntityTooLarge, "body_too_large", "Request body too large", gin.H{"limitBytes": limit})
}

// RespondDomainError maps a sentinel from the domain packages to its HTTP
// status. Anything unrecognised becomes a 500 carrying only fallback.
func RespondDomainError(ctx *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, inventory.ErrNotFound):
		RespondNotFound(ctx, "Inventory not found")
	case errors.Is(err, inventory.ErrUnknownUser):
		RespondNotFound(ctx, inventory.ErrUnknownUser.Error())
	case errors.Is(err, inventory.ErrDuplicateMember):
		RespondError(ctx, http.StatusBadRequest, "duplicate_member", "A user can't have multiple roles", nil)
	case errors.Is(err, category.ErrNotFound):
		RespondNotFound(ctx, "Category not found")
	case errors.Is(err, category.ErrExists):
		RespondConflict(ctx, "category_exists", "A category with this number already exists")
	case errors.Is(err, category.ErrCycle):
		RespondError(ctx, http.StatusBadRequest, "category_cycle", "Category hierarchy would contain a cycle", nil)
	case errors.Is(err, thing.ErrNotFound):
		RespondNotFound(ctx, "Thing not found")
	case errors.Is(err, thing.ErrStockNotFound):
		RespondNotFound(ctx, "Stock not found")
	case errors.Is(err, thing.ErrUnknownCategory):
		RespondNotFound(ctx, thing.ErrUnknownCategory.Error())
	case errors.Is(err, user.ErrEmailTaken):
		RespondError(ctx, http.StatusBadRequest, "email_taken", "Email address already in use", nil)
	case errors.Is(err, user.ErrNotFound):
		RespondError(ctx, http.StatusBadRequest, "unknown_email", "Couldn't find email address", nil)
	case errors.Is(err, accounts.ErrInvalidCredentials):
		RespondUnauthorized(ctx, "invalid_credentials", "Invalid credentials")
	case errors.Is(err, accounts.ErrInvalidTOTP):
		RespondUnauthorized(ctx, "invalid_totp", "Invalid TOTP token")
	case errors.Is(err, accounts.ErrTwoFactorNotEnrolled):
		RespondError(ctx, http.StatusBadRequest, "tfa_not_enrolled", "Two-factor authentication has not been set up", nil)
	case errors.Is(err, security.ErrPasswordTooLong):
		RespondBadRequest(ctx, "Invalid request body", gin.H{"fields": []FieldError{{
			Field:   "pwd",
			Rule:    "max_bytes",
			Param:   "72",
			Message: "must be at most 72 bytes",
		}}})
	case errors.Is(err, role.ErrUnknownRole):
		RespondBadRequest(ctx, "Unknown role", nil)
	default:
		RespondInternal(ctx, fallback)
	}
}
