package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/coursehub-api/internal/api/shared"
	"github.com/phrazzld/coursehub-api/internal/domain"
	"github.com/phrazzld/coursehub-api/internal/service/auth"
)

// getPathID parses a positive integer path parameter.
func getPathID(r *http.Request, paramName string) (int64, error) {
	raw := chi.URLParam(r, paramName)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", domain.ErrInvalidID, paramName)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s has invalid format", domain.ErrInvalidID, paramName)
	}
	return id, nil
}

// requireCaller returns the authenticated caller or writes a 401.
func requireCaller(w http.ResponseWriter, r *http.Request, log *slog.Logger) (*auth.Claims, bool) {
	claims, ok := shared.GetCaller(r.Context())
	if !ok {
		log.Warn("caller not found in request context")
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return nil, false
	}
	return claims, true
}

// requireCallerAndPathID combines requireCaller and getPathID, writing the
// error response if either fails.
func requireCallerAndPathID(
	w http.ResponseWriter,
	r *http.Request,
	paramName string,
	log *slog.Logger,
) (*auth.Claims, int64, bool) {
	claims, ok := requireCaller(w, r, log)
	if !ok {
		return nil, 0, false
	}

	id, err := getPathID(r, paramName)
	if err != nil {
		log.Warn("invalid path parameter",
			slog.String("param_name", paramName),
			slog.String("value", chi.URLParam(r, paramName)))
		HandleAPIError(w, r, err, "")
		return nil, 0, false
	}
	return claims, id, true
}

// decodeAndValidate reads a JSON body into req and validates it, writing a
// 400 on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := shared.DecodeJSON(r, req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return false
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return false
	}
	return true
}
