package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Envelope wraps every /api response body
type Envelope struct {
	Data  interface{}  `json:"data"`
	Error *ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// RespondWithError sends an error envelope
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	RespondWithErrorDetails(w, statusCode, message, nil)
}

// RespondWithErrorDetails sends an error envelope with additional details
func RespondWithErrorDetails(w http.ResponseWriter, statusCode int, message string, details map[string]interface{}) {
	writeJSON(w, statusCode, Envelope{
		Error: &ErrorDetail{
			Code:      http.StatusText(statusCode),
			Message:   message,
			Details:   details,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// RespondWithValidationErrors sends validation error response
func RespondWithValidationErrors(w http.ResponseWriter, validationErrors []ValidationError) {
	details := make(map[string]interface{})
	details["validation_errors"] = validationErrors

	RespondWithErrorDetails(w, http.StatusBadRequest, "validation failed", details)
}

// RespondWithJSON sends payload as the data of a success envelope
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	writeJSON(w, statusCode, Envelope{Data: payload})
}

// RespondRaw sends payload without the envelope. OAuth endpoints use it.
func RespondRaw(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, statusCode, payload)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					RespondWithError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
