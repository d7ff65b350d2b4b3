package httpadapter

import (
	"errors"
	"net/http"

	"github.com/kirillkom/invoice-webapp/internal/core/domain"
	"github.com/kirillkom/invoice-webapp/internal/core/usecase"
)

const noFilesMessage = "No PDF files provided."

// mapErrorToHTTPStatus keeps user-input errors on a 200 page; everything else is a server fault.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(err error) string {
	if errors.Is(err, usecase.ErrNoFiles) {
		return noFilesMessage
	}
	return err.Error()
}
