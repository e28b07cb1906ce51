package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/iudanet/questline/internal/apperr"
	"github.com/iudanet/questline/internal/models"
	"github.com/iudanet/questline/internal/server/identity"
	"github.com/iudanet/questline/internal/validation"
	"github.com/iudanet/questline/pkg/api"
)

const maxBodyBytes = 1 << 20

// sendJSON отправляет JSON ответ
func sendJSON(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.ErrorContext(ctx, "Failed to encode response", slog.Any("error", err))
	}
}

// sendError отправляет ошибку приложения с кодом из apperr.
// Причина 5xx ошибок пишется в лог и не уходит клиенту.
func sendError(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "Request failed", slog.Int("status", status), slog.Any("error", err))
	}

	sendJSON(ctx, logger, w, api.ErrorResponse{
		Error:   apperr.StatusText(err),
		Message: apperr.Message(err),
	}, status)
}

// decodeJSON читает body в dst и проверяет теги validate
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid request body")
	}
	if err := validation.Struct(dst); err != nil {
		return apperr.Validation("%s", err.Error())
	}
	return nil
}

// requiredQuery возвращает query параметр или ValidationError
func requiredQuery(r *http.Request, name string) (string, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", apperr.Validation("%q query parameter is required", name)
	}
	return v, nil
}

// caller возвращает identity, которую положил Gate
func caller(r *http.Request) (models.Identity, error) {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		return models.Identity{}, apperr.Unauthorized("authentication required")
	}
	return id, nil
}
