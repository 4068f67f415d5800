package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/smm-panel-backend/internal/interface/http/response"
	"github.com/ignatzorin/smm-panel-backend/internal/service"
)

// ContextPrincipalKey - ключ principal в gin.Context.
const ContextPrincipalKey = "principal"

// AuthMiddleware проверяет JWT access токен.
func AuthMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			response.Unauthorized(c, "требуется авторизация")
			return
		}

		p, err := tokens.ParseAccess(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			response.Unauthorized(c, "токен невалиден")
			return
		}

		c.Set(ContextPrincipalKey, p)
		c.Next()
	}
}

// RequireRole пропускает только principal с указанной ролью.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			response.Unauthorized(c, "требуется авторизация")
			return
		}
		if p.Role != role {
			response.Forbidden(c, "недостаточно прав")
			return
		}
		c.Next()
	}
}

func GetPrincipal(c *gin.Context) (service.Principal, bool) {
	v, ok := c.Get(ContextPrincipalKey)
	if !ok {
		return service.Principal{}, false
	}
	p, ok := v.(service.Principal)
	return p, ok
}
