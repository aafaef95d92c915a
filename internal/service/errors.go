package service

import (
	"context"
	"errors"
	"net/http"

	apperrors "github.com/anime-shed/forgery-inspector-go/internal/errors"
	"github.com/anime-shed/forgery-inspector-go/pkg/models"
)

// classifyFetchError maps storage failures onto the application taxonomy.
func classifyFetchError(err error) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("image fetch timeout", err)
	default:
		return apperrors.NewNetworkError("failed to fetch image", err)
	}
}

// ToErrorResponse renders err for API clients.
func ToErrorResponse(err error) *models.ErrorResponse {
	code := apperrors.GetStatusCode(err)
	resp := &models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: err.Error(),
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Type = string(appErr.Type)
		resp.Message = appErr.Message
		if appErr.Details != "" {
			resp.Message += ": " + appErr.Details
		}
	}
	return resp
}
