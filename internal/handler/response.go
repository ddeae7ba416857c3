package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/UkralStul/blog-service/internal/logging"
	"github.com/UkralStul/blog-service/internal/service"
)

// Response represents a standard API response.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details.
type ErrorInfo struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

const (
	codeValidation = "VALIDATION_ERROR"
	codeNotFound   = "NOT_FOUND"
	codeForbidden  = "FORBIDDEN"
	codeBadRequest = "BAD_REQUEST"
	codeInternal   = "INTERNAL_ERROR"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body Response) {
	data, err := json.Marshal(body)
	if err != nil {
		l := logging.Ctx(r.Context())
		l.Error().Err(err).Msg("failed to encode response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeRaw(w, status, data)
}

func writeRaw(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// success sends a 200 response with data.
func success(w http.ResponseWriter, r *http.Request, data interface{}) {
	writeJSON(w, r, http.StatusOK, Response{Success: true, Data: data})
}

func errorResponse(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, r, status, Response{
		Success: false,
		Error:   &ErrorInfo{Code: code, Message: message},
	})
}

// redirect answers a successful form submission.
func redirect(w http.ResponseWriter, r *http.Request, location string) {
	http.Redirect(w, r, location, http.StatusFound)
}

// writeError maps service errors to HTTP. A rejected form is answered 200
// with the field errors and formData, so the client can render the form again.
func writeError(w http.ResponseWriter, r *http.Request, err error, formData interface{}) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, r, http.StatusOK, Response{
			Success: false,
			Data:    formData,
			Error: &ErrorInfo{
				Code:    codeValidation,
				Message: "form is invalid",
				Fields:  ve.Fields,
			},
		})
	case errors.Is(err, service.ErrNotFound):
		errorResponse(w, r, http.StatusNotFound, codeNotFound, "not found")
	case errors.Is(err, service.ErrForbidden):
		errorResponse(w, r, http.StatusForbidden, codeForbidden, err.Error())
	default:
		l := logging.Ctx(r.Context())
		l.Error().Err(err).Str(logging.FieldPath, r.URL.Path).Msg("request failed")
		errorResponse(w, r, http.StatusInternalServerError, codeInternal, "internal server error")
	}
}

func encode(body Response) ([]byte, error) {
	return json.Marshal(body)
}
