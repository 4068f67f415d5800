package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/smm-panel-backend/internal/interface/http/response"
	"github.com/ignatzorin/smm-panel-backend/internal/logger"
)

// ErrorHandler обрабатывает ошибки централизованно: паники и ошибки,
// добавленные через c.Error, превращаются в единый формат ответа.
func ErrorHandler() gin.HandlerFunc {
	log := logger.WithComponent("http")

	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(logrus.Fields{
					"path":   c.Request.URL.Path,
					"method": c.Request.Method,
					"stack":  string(debug.Stack()),
				}).Errorf("паника при обработке запроса: %v", r)
				if !c.Writer.Written() {
					response.Error(c, fmt.Errorf("panic: %v", r))
				}
			}
		}()

		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}
		response.Error(c, c.Errors.Last().Err)
	}
}
