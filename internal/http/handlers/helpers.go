package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"resto-console/internal/console"
	"resto-console/internal/gateway"
	"resto-console/internal/middleware"
	"resto-console/pkg/response"
)

const maxBodyBytes = 1 << 20

func zapError(err error) zap.Field {
	return zap.Error(err)
}

func readPathString(r *http.Request, key string) string {
	return strings.TrimSpace(chi.URLParam(r, key))
}

func readPathInt(r *http.Request, key string) (int, error) {
	value := readPathString(r, key)
	if value == "" {
		return 0, errMissingParam
	}
	return strconv.Atoi(value)
}

var errMissingParam = errors.New("missing param")

func decodeJSON(r *http.Request, dest any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is required")
		}
		return err
	}
	return nil
}

// consoleSession resolves the caller's console session and a context that
// forwards the caller's token to the backend. It writes the error response
// itself when it returns false.
func (h *Handler) consoleSession(w http.ResponseWriter, r *http.Request) (*console.Session, context.Context, bool) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok || authCtx.UserID == "" {
		response.Error(w, http.StatusUnauthorized, string(console.ErrUnauthorized), "Authorization token required")
		return nil, nil, false
	}
	if h.Sessions == nil {
		response.Error(w, http.StatusServiceUnavailable, string(console.ErrSessionClosed), "Console is not available")
		return nil, nil, false
	}
	sess, err := h.Sessions.Acquire(authCtx.UserID, authCtx.Token)
	if err != nil {
		response.Fail(w, err)
		return nil, nil, false
	}
	return sess, gateway.WithToken(r.Context(), authCtx.Token), true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ce *console.Error
	if errors.As(err, &ce) {
		if ce.StatusCode >= http.StatusInternalServerError {
			h.Logger.Warn("console request failed",
				zap.String("path", r.URL.Path),
				zap.String("requestId", middleware.RequestIDFrom(r.Context())),
				zapError(err),
			)
		}
		response.Fail(w, err)
		return
	}
	h.Logger.Error("console request failed",
		zap.String("path", r.URL.Path),
		zap.String("requestId", middleware.RequestIDFrom(r.Context())),
		zapError(err),
	)
	response.Fail(w, err)
}
