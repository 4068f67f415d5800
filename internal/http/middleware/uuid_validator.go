package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/smm-panel-backend/internal/interface/http/response"
)

// UUIDValidator проверяет, что параметр с указанным именем является валидным UUID,
// и кладёт разобранное значение в контекст под тем же именем.
// Использование: router.GET("/orders/:id", UUIDValidator("id"), handler.GetOrder)
func UUIDValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		idStr := c.Param(paramName)
		if idStr == "" {
			response.BadRequest(c, "параметр "+paramName+" обязателен")
			return
		}

		id, err := uuid.Parse(idStr)
		if err != nil {
			response.BadRequest(c, "параметр "+paramName+" должен быть валидным UUID")
			return
		}

		c.Set(paramName, id)
		c.Next()
	}
}

// ParamUUID возвращает значение, сохранённое UUIDValidator.
func ParamUUID(c *gin.Context, paramName string) uuid.UUID {
	if v, ok := c.Get(paramName); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	id, _ := uuid.Parse(c.Param(paramName))
	return id
}
