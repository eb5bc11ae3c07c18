// Package httpx holds the JSON request and response helpers used by every
// module's HTTP handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	authdomain "github.com/Black-And-White-Club/tourney-settlement/app/modules/auth/domain"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/apperr"
	"github.com/Black-And-White-Club/tourney-settlement/app/shared/attr"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

// Guard is the set of route middlewares the auth module provides.
type Guard interface {
	Authenticate(next http.Handler) http.Handler
	RateLimit(next http.Handler) http.Handler
	Require(roles ...authdomain.Role) func(http.Handler) http.Handler
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

// Decode reads a single JSON object into dst, rejecting unknown fields.
func Decode(r *http.Request, dst any) error {
	return decode(r, dst, false)
}

// DecodeOptional is Decode that accepts an empty body.
func DecodeOptional(r *http.Request, dst any) error {
	return decode(r, dst, true)
}

func decode(r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			if allowEmpty {
				return nil
			}
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid request body: %v", err)
	}
	if dec.More() {
		return apperr.Validation("request body must contain a single JSON object")
	}
	return nil
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes the error envelope. Untyped errors become a 500 with a
// generic message and are logged.
func Error(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	e, ok := apperr.As(err)
	if !ok {
		if logger != nil {
			logger.ErrorContext(r.Context(), "Unhandled request error",
				attr.String("path", r.URL.Path),
				attr.Error(err),
			)
		}
		JSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{
			Code:    apperr.CodeInternal,
			Message: "internal error",
		}})
		return
	}

	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	JSON(w, e.HTTPStatus(), errorBody{Error: errorDetail{Code: e.Code, Message: msg}})
}

// PathUUID parses a chi URL parameter as a UUID.
func PathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid %s %q", name, raw)
	}
	return id, nil
}

// QueryUUID parses an optional query parameter as a UUID.
func QueryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Validation("invalid %s %q", name, raw)
	}
	return &id, nil
}

// ParseUUID validates a UUID taken from a request body field.
func ParseUUID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid %s %q", field, raw)
	}
	return id, nil
}

// Principal returns the authenticated caller on r.
func Principal(r *http.Request) (authdomain.Principal, error) {
	p, ok := authdomain.PrincipalFrom(r.Context())
	if !ok {
		return authdomain.Principal{}, apperr.New(apperr.CodeUnauthorized, "authentication required")
	}
	return p, nil
}
