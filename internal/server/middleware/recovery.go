package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	httputil "podcaster/internal/pkg/http"
)

const codePanic = 50000

// Recovery 把 panic 转成 500，客户端主动断开（http.ErrAbortHandler）继续上抛
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			log.Error().
				Interface("error", rec).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Str("route", c.FullPath()).
				Str("request_id", c.GetString("request_id")).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				httputil.NewErrorResponse(codePanic, "Internal Server Error"))
		}()
		c.Next()
	}
}
