package httpapi

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"resto-console/internal/config"
	"resto-console/internal/http/handlers"
	"resto-console/internal/middleware"
	"resto-console/internal/ws"
	"resto-console/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func NewRouter(logger *zap.Logger, cfg config.Config, h *handlers.Handler, wsServer *ws.Server) http.Handler {
	stats := middleware.NewOperationStats()

	r := chi.NewRouter()
	r.Use(requestLogger(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Telemetry(logger, stats))

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Requested-With",
				"X-Request-Id",
				"x-token",
				"Cache-Control",
				"Pragma",
			},
			ExposedHeaders:   []string{"X-Request-Id", "Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/console", func(r chi.Router) {
		r.Use(setResponseHeader("Cache-Control", "no-store"))
		r.Use(middleware.ConsoleAuth(cfg.JWTSecret))

		r.Get("/state", h.ConsoleState)
		r.Post("/reservations/load", h.ConsoleLoadReservations)
		r.Delete("/reservations/{id}", h.ConsoleRemoveReservation)
		r.Put("/selection", h.ConsoleSelectReservation)
		r.Post("/modals/close", h.ConsoleCloseModals)
		r.Post("/modals/{kind}", h.ConsoleShowModal)
		r.Get("/catalog", h.ConsoleCatalog)
		r.Put("/draft", h.ConsoleBuildDraft)
		r.Put("/draft/items/{productId}/{axis}/{index}", h.ConsoleSetUnit)
		r.Post("/draft/commit", h.ConsoleCommit)
		r.Get("/draft/ticket", h.ConsoleTicket)
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(middleware.InternalAuth(cfg.InternalAPISecret))
		r.Post("/events/reservation", h.InternalReservationEvent)
		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			response.Success(w, stats.Summary())
		})
	})

	if wsServer != nil {
		r.Get("/ws/console", wsServer.ConsoleWS)
	}

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("origin", r.Header.Get("Origin")),
			)
		})
	}
}

func setResponseHeader(name string, value string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(name, value)
			next.ServeHTTP(w, r)
		})
	}
}
