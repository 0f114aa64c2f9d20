package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shareit/internal/config"
	"shareit/internal/domain"
	"shareit/internal/metrics"
	"shareit/internal/models"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// passthroughHeaders are copied from the server answer to the caller.
var passthroughHeaders = []string{"Content-Type", "Content-Disposition"}

// Gateway validates incoming requests and proxies the valid ones to the server.
type Gateway struct {
	client    *ServerClient
	validator *Validator
	limits    domain.RateLimitStore
	limitCfg  config.GatewayRateLimitConfig
	server    *http.Server
	logger    *zerolog.Logger
}

func New(cfg *config.Config, client *ServerClient, limits domain.RateLimitStore, logger *zerolog.Logger) *Gateway {
	g := &Gateway{
		client:    client,
		validator: NewValidator(time.Now),
		limits:    limits,
		limitCfg:  cfg.Gateway.RateLimit,
		logger:    logger,
	}

	mux := http.NewServeMux()
	g.routes(mux)

	origins := cfg.Gateway.CORS.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", models.UserIDHeader, models.RequestIDHeader},
		ExposedHeaders: []string{models.RequestIDHeader, "Content-Disposition"},
	})

	g.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Gateway.Port),
		Handler:           g.observe(corsHandler.Handler(g.limit(mux))),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Gateway.RequestTimeout + 30*time.Second,
	}

	return g
}

func (g *Gateway) routes(mux *http.ServeMux) {
	v := g.validator

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /users", g.proxy(bodyOf[UserCreate](v)))
	mux.HandleFunc("GET /users", g.proxy())
	mux.HandleFunc("GET /users/{id}", g.proxy(requirePathID))
	mux.HandleFunc("PATCH /users/{id}", g.proxy(requirePathID, bodyOf[UserPatch](v)))
	mux.HandleFunc("DELETE /users/{id}", g.proxy(requirePathID))

	mux.HandleFunc("POST /items", g.proxy(requireUser, bodyOf[ItemCreate](v)))
	mux.HandleFunc("GET /items", g.proxy(requireUser, pageOf(v)))
	mux.HandleFunc("GET /items/search", g.proxy(requireUser, pageOf(v)))
	mux.HandleFunc("GET /items/{id}", g.proxy(requireUser, requirePathID))
	mux.HandleFunc("PATCH /items/{id}", g.proxy(requireUser, requirePathID, bodyOf[ItemPatch](v)))
	mux.HandleFunc("POST /items/{id}/comment", g.proxy(requireUser, requirePathID, bodyOf[CommentCreate](v)))

	mux.HandleFunc("POST /bookings", g.proxy(requireUser, bodyOf[BookingCreate](v)))
	mux.HandleFunc("PATCH /bookings/{id}", g.proxy(requireUser, requirePathID, requireApproved))
	mux.HandleFunc("GET /bookings/{id}", g.proxy(requireUser, requirePathID))
	mux.HandleFunc("GET /bookings", g.proxy(requireUser, requireState, pageOf(v)))
	mux.HandleFunc("GET /bookings/owner", g.proxy(requireUser, requireState, pageOf(v)))
	mux.HandleFunc("GET /bookings/owner/export", g.proxy(requireUser, requireState))

	mux.HandleFunc("POST /requests", g.proxy(requireUser, bodyOf[RequestCreate](v)))
	mux.HandleFunc("GET /requests", g.proxy(requireUser))
	mux.HandleFunc("GET /requests/all", g.proxy(requireUser, pageOf(v)))
	mux.HandleFunc("GET /requests/{id}", g.proxy(requireUser, requirePathID))
}

// Handler returns the fully wrapped handler.
func (g *Gateway) Handler() http.Handler {
	return g.server.Handler
}

func (g *Gateway) Start() error {
	g.logger.Info().Str("addr", g.server.Addr).Msg("Gateway listening")
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	return g.server.Shutdown(ctx)
}

// proxy runs the checks in order and forwards the request when all pass.
func (g *Gateway) proxy(checks ...check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		for _, c := range checks {
			if err := c(r, body); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}

		resp, err := g.client.Forward(r.Context(), r.Method, r.URL.Path, r.URL.RawQuery, r.Header, body)
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("upstream request failed")
			writeError(w, http.StatusBadGateway, "upstream unavailable")
			return
		}

		for _, name := range passthroughHeaders {
			if v := resp.Header.Get(name); v != "" {
				w.Header().Set(name, v)
			}
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write(resp.Body)
	}
}

// limit counts requests per acting user. Requests without a usable user header pass through.
func (g *Gateway) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.limits == nil || g.limitCfg.Requests <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		userID, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(models.UserIDHeader)), 10, 64)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		allowed, err := g.limits.CheckRateLimit(r.Context(), userID, g.limitCfg.Requests, g.limitCfg.Window)
		if err != nil {
			// fail open
			zerolog.Ctx(r.Context()).Warn().Err(err).Int64("user_id", userID).Msg("Rate limit check failed")
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			metrics.IncRateLimited("gateway")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// observe assigns the request id forwarded upstream, then logs and counts every request.
func (g *Gateway) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(models.RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
			r.Header.Set(models.RequestIDHeader, requestID)
		}
		w.Header().Set(models.RequestIDHeader, requestID)

		reqLogger := g.logger.With().Str("request_id", requestID).Logger()
		r = r.WithContext(reqLogger.WithContext(r.Context()))

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.IncHTTP("gateway", route, recorder.status)

		reqLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("gateway request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
