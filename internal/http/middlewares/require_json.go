package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/geocoder89/inventoryhub/internal/http/handlers"
)

// RequireJSON rejects bodies on write methods that are not declared as JSON.
// Requests that carry no body, such as logout, pass.
func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		if hasBody(c.Request) && c.ContentType() != binding.MIMEJSON {
			handlers.RespondError(c, http.StatusUnsupportedMediaType, "unsupported_media_type", "Content-Type must be application/json", gin.H{
				"received": c.GetHeader("Content-Type"),
			})
			return
		}
		c.Next()
	}
}

func hasBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		// -1 is a chunked body of unknown length
		return r.ContentLength != 0
	default:
		return false
	}
}
