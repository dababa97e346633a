package http

import (
	"net/http"

	"github.com/aussiebroadwan/wellmeet/internal/accounts/service"
	"github.com/aussiebroadwan/wellmeet/pkg/accountsdk"
	"github.com/aussiebroadwan/wellmeet/pkg/httpx"
)

// statusOf maps a service error kind to its HTTP status and error code.
func statusOf(k service.Kind) (int, string) {
	switch k {
	case service.KindInvalidArgument:
		return http.StatusBadRequest, accountsdk.ErrorCodeInvalidArgument
	case service.KindUnauthorized:
		return http.StatusUnauthorized, accountsdk.ErrorCodeUnauthorized
	case service.KindNotFound:
		return http.StatusNotFound, accountsdk.ErrorCodeNotFound
	case service.KindAlreadyExists:
		return http.StatusConflict, accountsdk.ErrorCodeAlreadyExists
	default:
		return http.StatusInternalServerError, accountsdk.ErrorCodeServerError
	}
}

// writeServiceError renders err from the service. The service has already
// logged it; internal detail never reaches the body.
func writeServiceError(w http.ResponseWriter, err error) {
	status, code := statusOf(service.KindOf(err))
	httpx.WriteError(w, status, code, service.MessageOf(err))
}

func writeInvalidArgument(w http.ResponseWriter, description string) {
	httpx.WriteError(w, http.StatusBadRequest, accountsdk.ErrorCodeInvalidArgument, description)
}
