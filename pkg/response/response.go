package response

import (
	"encoding/json"
	"errors"
	"net/http"
)

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
	})
}

func Error(w http.ResponseWriter, status int, code string, message string) {
	JSON(w, status, map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	})
}

// codedError is implemented by domain errors that carry their own HTTP status
// and error code.
type codedError interface {
	error
	HTTPStatus() int
	ErrorCode() string
	PublicMessage() string
}

// Fail writes err as an error envelope, falling back to 500 for errors that
// carry no status.
func Fail(w http.ResponseWriter, err error) {
	var coded codedError
	if errors.As(err, &coded) {
		Error(w, coded.HTTPStatus(), coded.ErrorCode(), coded.PublicMessage())
		return
	}
	Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
}
