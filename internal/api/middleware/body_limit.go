package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campusconnect/backend/pkg/response"
)

// BodyLimit 全局请求体大小限制
// 声明了 Content-Length 的请求直接拒绝，未声明的由 MaxBytesReader 在读取时截断；
// 头像与 ICS 上传在 handler 内还有各自更小的上限
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
