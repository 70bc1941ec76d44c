package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"Kendalinet-Layer/models"
	"Kendalinet-Layer/notifier"
	"Kendalinet-Layer/openwrt"
	"Kendalinet-Layer/repository"
	"Kendalinet-Layer/services"
	"Kendalinet-Layer/validation"
)

func ok(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, models.ApiResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// fail maps err onto a status code and writes the error envelope.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	resp := models.ApiResponse{Success: false, Error: err.Error()}

	var verrs *validation.Errors
	var opErr *openwrt.OperationError
	switch {
	case errors.As(err, &verrs):
		status = http.StatusBadRequest
		resp.Data = verrs.Fields
	case errors.Is(err, repository.ErrRouterNotFound),
		errors.Is(err, repository.ErrNotificationNotFound),
		errors.Is(err, repository.ErrUsageNotFound),
		errors.Is(err, services.ErrNoActiveRouter):
		status = http.StatusNotFound
	case errors.Is(err, notifier.ErrNotConfigured),
		errors.Is(err, notifier.ErrDisabled):
		status = http.StatusBadRequest
	case errors.As(err, &opErr):
		status = http.StatusBadGateway
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, resp)
}

// bind decodes the JSON body and runs the binding validators.
func bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		err = validation.FromError(err)
		msg := err.Error()
		var verrs *validation.Errors
		if !errors.As(err, &verrs) {
			msg = "Invalid request body: " + msg
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ApiResponse{
			Success: false,
			Error:   msg,
			Data:    fieldsOf(verrs),
		})
		return false
	}
	return true
}

func fieldsOf(verrs *validation.Errors) interface{} {
	if verrs == nil {
		return nil
	}
	return verrs.Fields
}
