package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/inventoryhub/internal/http/handlers"
)

// DefaultMaxBodyBytes fits the largest member set or thing the API accepts.
const DefaultMaxBodyBytes int64 = 1 << 20

// MaxBodyBytes refuses bodies that declare more than limit bytes and caps the
// reader for the rest; BindJSON turns an overrun into the same 413.
func MaxBodyBytes(limit int64) gin.HandlerFunc {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}

	return func(ctx *gin.Context) {
		if ctx.Request.ContentLength > limit {
			handlers.RespondBodyTooLarge(ctx, limit)
			return
		}

		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, limit)
		ctx.Next()
	}
}
