package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hxu/daka/utils"
)

// RequestID assigns a UUID to every request for log correlation. An incoming
// X-Request-ID header is honored so upstream proxies can thread their own id.
func RequestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		rid := ctx.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		ctx.Set(utils.ContextRequestIDKey, rid)
		ctx.Header("X-Request-ID", rid)
		ctx.Next()
	}
}
