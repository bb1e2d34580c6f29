package httpadapter

import (
	"net/http"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrResultNotFound), domain.IsKind(err, domain.ErrUnknownQuestion):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrInvalidFlow), domain.IsKind(err, domain.ErrNotIndexed):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrEmptyCorpus):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrProviderFailure):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrAlgorithmUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
