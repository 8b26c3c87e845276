package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// PathNumber parses a positive integer path parameter, answering 400 when it is not one.
func PathNumber(ctx *gin.Context, name string) (int64, bool) {
	n, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || n <= 0 {
		RespondBadRequest(ctx, "Invalid path parameter", gin.H{"param": name})
		return 0, false
	}

	return n, true
}
