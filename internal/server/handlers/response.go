package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mamadbah2/kisaan/internal/domain/models"
	"github.com/mamadbah2/kisaan/internal/server/middleware"
)

const (
	msgNotFound  = "Grain not found"
	msgForbidden = "Not authorized to modify this grain listing"
	msgServer    = "Server error"
)

type envelope struct {
	Success    bool               `json:"success"`
	Data       any                `json:"data,omitempty"`
	Message    string             `json:"message,omitempty"`
	Pagination *models.Pagination `json:"pagination,omitempty"`
	Count      *int               `json:"count,omitempty"`
}

func respond(c *gin.Context, status int, data any, message string) {
	c.JSON(status, envelope{Success: true, Data: data, Message: message})
}

func respondPage(c *gin.Context, data any, pagination models.Pagination, count int) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data, Pagination: &pagination, Count: &count})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, envelope{Success: false, Message: message})
}

// respondError maps domain errors to status codes. Unexpected errors are
// logged and reported without their text.
func respondError(c *gin.Context, err error, log *zap.Logger) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		fail(c, http.StatusBadRequest, ve.Error())
	case errors.Is(err, models.ErrNotFound):
		fail(c, http.StatusNotFound, msgNotFound)
	case errors.Is(err, models.ErrForbidden):
		fail(c, http.StatusForbidden, msgForbidden)
	default:
		middleware.Logger(c, log).Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		fail(c, http.StatusInternalServerError, msgServer)
	}
}

// objectIDParam parses a path id. Malformed ids cannot name a stored
// listing so they are reported as not found.
func objectIDParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		fail(c, http.StatusNotFound, msgNotFound)
		return primitive.NilObjectID, false
	}
	return id, true
}

func actor(c *gin.Context) (models.Actor, bool) {
	a, ok := middleware.GetActor(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "Not authorized to access this route")
	}
	return a, ok
}
