package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
)

// Сообщения для пользователя: что случилось и что делать дальше
const (
	msgNotFound     = "Not found. Check the identifier and try again."
	msgSlotTaken    = "This time slot was just taken. Refresh availability and pick another slot."
	msgPrecondition = "The request cannot be applied right now. Set up the weekly schedule first or contact support."
	msgConflict     = "The schedule is being updated by someone else. Please retry in a moment."
	msgInvalid      = "Invalid input. Check the request fields and try again."
	msgResolution   = "The lecturer's calendar could not be read. Try again later or relink the calendar."
	msgInternal     = "Something went wrong on our side. Please try again later."
)

// statusFor переводит ошибку сервиса в HTTP-статус и сообщение
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, msgNotFound
	case errors.Is(err, model.ErrSlotUnavailable):
		return http.StatusConflict, msgSlotTaken
	case errors.Is(err, model.ErrPrecondition):
		return http.StatusPreconditionFailed, msgPrecondition
	case errors.Is(err, model.ErrTransactionConflict):
		return http.StatusServiceUnavailable, msgConflict
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest, msgInvalid
	case errors.Is(err, model.ErrResolution):
		return http.StatusBadGateway, msgResolution
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, msg := statusFor(err)

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "1")
	}

	resp := gin.H{"error": msg}
	// внутренние детали наружу не отдаём
	if status != http.StatusInternalServerError {
		resp["details"] = err.Error()
	}
	c.AbortWithStatusJSON(status, resp)
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msgInvalid, "details": err.Error()})
}
