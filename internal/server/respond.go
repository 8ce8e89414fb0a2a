package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/tjfontaine/markdown-notes/internal/domain"
)

// maxBodyBytes bounds JSON request bodies; notes are the largest payloads.
const maxBodyBytes = 2 << 20

type errorBody struct {
	Error *domain.APIError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeAPIError(w http.ResponseWriter, apiErr *domain.APIError) {
	writeJSON(w, apiErr.HTTPStatusCode(), errorBody{Error: apiErr})
}

// writeError maps err onto the API error body. Typed domain errors keep their
// status; anything else is a 500 with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	AddError(r.Context(), err)

	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		writeAPIError(w, apiErr)
		return
	}

	var sc domain.StatusCoder
	if !errors.As(err, &sc) && errors.Is(err, context.DeadlineExceeded) {
		writeAPIError(w, &domain.APIError{
			Type:       domain.ErrorTypeServer,
			Message:    "request timed out",
			StatusCode: http.StatusGatewayTimeout,
		})
		return
	}

	status := domain.HTTPStatus(err)
	var errType domain.ErrorType
	message := err.Error()
	switch status {
	case http.StatusBadRequest:
		errType = domain.ErrorTypeInvalidRequest
	case http.StatusServiceUnavailable:
		errType = domain.ErrorTypeUnavailable
	default:
		errType = domain.ErrorTypeServer
		message = "internal server error"
	}
	writeAPIError(w, &domain.APIError{Type: errType, Message: message, StatusCode: status})
}

// decodeJSON reads a JSON body into dst. Errors are invalid_request.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.ErrInvalidRequest("request body is required")
		}
		return domain.ErrInvalidRequest("invalid JSON body: " + err.Error())
	}
	return nil
}
