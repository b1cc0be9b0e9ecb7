package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/iho/gledger/internal/adapter/http/dto"
	"github.com/iho/gledger/internal/domain"
	"github.com/iho/gledger/internal/infrastructure/logger"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// writeDomainError maps err to a status and writes a body carrying its structured details.
func writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := mapDomainError(err)
	resp := dto.ErrorResponse{Error: message, Message: err.Error()}

	var entryErr *domain.EntryValidationError
	var unbalanced *domain.UnbalancedEntryError
	var validation *domain.ValidationError
	switch {
	case errors.As(err, &entryErr):
		for _, l := range entryErr.Lines {
			line := l.Index
			resp.Details = append(resp.Details, dto.ErrorDetail{
				Line:      &line,
				AccountID: l.AccountID,
				Reason:    l.Err.Error(),
			})
		}
	case errors.As(err, &unbalanced):
		resp.TotalDebit = &unbalanced.TotalDebit
		resp.TotalCredit = &unbalanced.TotalCredit
		resp.Delta = &unbalanced.Delta
	case errors.As(err, &validation):
		resp.Details = []dto.ErrorDetail{{Field: validation.Field, Reason: validation.Reason}}
	}

	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg(message)
		// Storage details stay in the log.
		resp.Message = ""
	}
	writeJSON(w, status, resp)
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateCode),
		errors.Is(err, domain.ErrUnbalancedEntry),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTenantMismatch), errors.Is(err, domain.ErrInsufficientRole):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrInvalidToken), errors.Is(err, domain.ErrExpiredToken):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrTenantMissing),
		errors.Is(err, domain.ErrUnknownAccount),
		errors.Is(err, domain.ErrInactiveAccount),
		errors.Is(err, domain.ErrHeaderPosting),
		errors.Is(err, domain.ErrCurrencyMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &domain.ValidationError{Field: "body", Reason: "invalid request body: " + err.Error()}
	}
	return nil
}

// tenantOf returns the tenant resolved by the tenant middleware.
func tenantOf(r *http.Request) string {
	tenant, _ := domain.TenantFromContext(r.Context())
	return tenant
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// parseDateQuery parses an optional YYYY-MM-DD query parameter.
func parseDateQuery(r *http.Request, key string) (*time.Time, error) {
	val := r.URL.Query().Get(key)
	if val == "" {
		return nil, nil
	}
	t, err := time.Parse(domain.DateLayout, val)
	if err != nil {
		return nil, domain.NewValidationError(key, fmt.Sprintf("%q is not a YYYY-MM-DD date", val))
	}
	return &t, nil
}

// parseRange parses the from/to query parameters.
func parseRange(r *http.Request) (from, to *time.Time, err error) {
	if from, err = parseDateQuery(r, "from"); err != nil {
		return nil, nil, err
	}
	if to, err = parseDateQuery(r, "to"); err != nil {
		return nil, nil, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, domain.NewValidationError("to", "must not be before from")
	}
	return from, to, nil
}
