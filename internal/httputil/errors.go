package httputil

import (
	"encoding/json"
	"net/http"
)

// HeaderRequestID carries the request id on requests and responses.
const HeaderRequestID = "X-Request-ID"

// APIError is the JSON error envelope.
type APIError struct {
	Error APIErrorBody `json:"error"`
}

type APIErrorBody struct {
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       string `json:"code"`
	Model      string `json:"model,omitempty"`
	AegisReqID string `json:"aegis_request_id,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, requestID string, statusCode int, errType, code, message string) {
	writeError(w, requestID, statusCode, APIErrorBody{Message: message, Type: errType, Code: code})
}

func writeError(w http.ResponseWriter, requestID string, statusCode int, body APIErrorBody) {
	body.AegisReqID = requestID
	w.Header().Set(HeaderRequestID, requestID)
	WriteJSON(w, statusCode, APIError{Error: body})
}

func WriteRateLimitError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusTooManyRequests, "rate_limit_error", "rate_limit_exceeded", message)
}

func WriteBadRequestError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusBadRequest, "invalid_request_error", "invalid_request", message)
}

func WriteUnknownModeError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusBadRequest, "invalid_request_error", "unknown_mode", message)
}

func WriteInternalError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusInternalServerError, "server_error", "internal_error", message)
}

// WriteConfigurationError reports drift between the catalog and the agent
// bindings.
func WriteConfigurationError(w http.ResponseWriter, requestID, model, message string) {
	writeError(w, requestID, http.StatusInternalServerError, APIErrorBody{
		Message: message,
		Type:    "configuration_error",
		Code:    "unknown_model",
		Model:   model,
	})
}

func WriteServiceUnavailableError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusServiceUnavailable, "server_error", "service_unavailable", message)
}

// WriteModelError reports a failed agent call for model.
func WriteModelError(w http.ResponseWriter, requestID, model, message string) {
	writeError(w, requestID, http.StatusBadGateway, APIErrorBody{
		Message: message,
		Type:    "model_error",
		Code:    "agent_failure",
		Model:   model,
	})
}

func WriteGatewayTimeoutError(w http.ResponseWriter, requestID, message string) {
	WriteError(w, requestID, http.StatusGatewayTimeout, "server_error", "timeout", message)
}
