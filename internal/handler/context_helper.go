package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sismepa/academic-api/internal/middleware"
	"github.com/sismepa/academic-api/internal/models"
)

func actorFromContext(c *gin.Context) models.Actor {
	value, exists := c.Get(middleware.ContextActorKey)
	if !exists {
		return models.Actor{}
	}
	actor, ok := value.(*models.Actor)
	if !ok {
		return models.Actor{}
	}
	return *actor
}
