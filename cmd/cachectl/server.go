package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/go-cachekit/pkg/cache"
	"github.com/Sternrassler/go-cachekit/pkg/config"
	"github.com/Sternrassler/go-cachekit/pkg/logging"
	"github.com/Sternrassler/go-cachekit/pkg/metrics"
	"github.com/Sternrassler/go-cachekit/pkg/policy"
)

// maxBodyBytes limits PUT bodies.
const maxBodyBytes = 1 << 20

func serveCmd(flags *globalFlags) *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the cache over HTTP",
		Long:  "Expose the configured cache as a JSON key/value HTTP service with health, readiness and metrics endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if listenAddr == "" {
				listenAddr = ":" + cfg.Port
			}

			p, err := cfg.Policy()
			if err != nil {
				return err
			}

			store, err := openStore(commandContext(cmd), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			return runServer(listenAddr, cfg, newServer(store, p, logging.NewLogger("server")))
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (default :$PORT)")
	return cmd
}

func runServer(addr string, cfg *config.Config, srv *server) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		srv.logger.Info().
			Str("addr", addr).
			Str("backend", srv.store.Backend()).
			Str("namespace", cfg.Namespace).
			Msg("Starting cache server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		srv.logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("cache server error: %w", err)
	}
}

// server exposes a Store over HTTP.
type server struct {
	store  *cache.Store
	policy *policy.Policy
	logger zerolog.Logger
}

func newServer(store *cache.Store, p *policy.Policy, logger zerolog.Logger) *server {
	if p == nil {
		p = policy.Default()
	}
	return &server{store: store, policy: p, logger: logger}
}

func (s *server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.readyHandler).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/v1/cache").Subrouter()
	api.HandleFunc("", s.purgeHandler).Methods(http.MethodDelete)
	api.HandleFunc("/{key}/ttl", s.ttlHandler).Methods(http.MethodGet)
	api.HandleFunc("/{key}", s.getHandler).Methods(http.MethodGet)
	api.HandleFunc("/{key}", s.putHandler).Methods(http.MethodPut)
	api.HandleFunc("/{key}", s.deleteHandler).Methods(http.MethodDelete)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *server) readyHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ready",
		"backend":  s.store.Backend(),
		"degraded": s.store.Degraded(),
	})
}

func (s *server) getHandler(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var raw json.RawMessage
	if !s.store.Get(r.Context(), key, &raw) {
		w.Header().Set("X-Cache", "MISS")
		s.writeError(w, http.StatusNotFound, "key not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "HIT")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(raw); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to write response")
	}
}

func (s *server) putHandler(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	opts, err := s.setOptions(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "body too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "could not read body")
		return
	}
	if !json.Valid(body) {
		s.writeError(w, http.StatusBadRequest, "body must be valid JSON")
		return
	}

	if err := s.store.Set(r.Context(), key, json.RawMessage(body), opts); err != nil {
		s.writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// setOptions resolves the TTL from ?ttl=, ?use_case= or the policy default.
func (s *server) setOptions(r *http.Request) (cache.SetOptions, error) {
	q := r.URL.Query()
	if q.Has("ttl") {
		ttl, err := strconv.Atoi(q.Get("ttl"))
		if err != nil {
			return cache.SetOptions{}, fmt.Errorf("invalid ttl %q", q.Get("ttl"))
		}
		return cache.WithTTL(ttl), nil
	}
	return s.policy.Get(q.Get("use_case")).SetOptions(), nil
}

func (s *server) deleteHandler(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.Del(r.Context(), mux.Vars(r)["key"])
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (s *server) ttlHandler(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	seconds, ok := s.store.TTL(r.Context(), key)
	if !ok {
		s.writeJSON(w, http.StatusOK, map[string]any{"key": key, "ttl_seconds": nil})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"key": key, "ttl_seconds": seconds})
}

func (s *server) purgeHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("prefix") {
		s.writeError(w, http.StatusBadRequest, "prefix query parameter is required")
		return
	}

	n, err := s.store.DeleteByPrefix(r.Context(), q.Get("prefix"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (s *server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cache.ErrUnscopedPurge):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case cache.IsSerializationError(err):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Warn().Err(err).Msg("Cache operation failed")
		s.writeError(w, http.StatusBadGateway, "cache backend unavailable")
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write response")
	}
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}
