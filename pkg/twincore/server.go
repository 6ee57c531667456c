// Package twincore provides the base HTTP server, CLI flags, middleware chain,
// and response helpers for the fake wildlife monitoring API.
package twincore

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Config holds the server configuration, parsed from CLI flags.
type Config struct {
	Port      int
	Latency   time.Duration
	FailRate  float64
	SeedFile  string
	Verbose   bool
	JWTSecret string
	Name      string    // used in logs
	LogOutput io.Writer // defaults to os.Stdout
}

// ParseFlags parses the common CLI flags and returns a Config.
func ParseFlags(name string) *Config {
	cfg := &Config{Name: name}
	flag.IntVar(&cfg.Port, "port", 0, "HTTP listen port")
	flag.DurationVar(&cfg.Latency, "latency", 0, "Base simulated latency")
	flag.Float64Var(&cfg.FailRate, "fail-rate", 0.0, "Random failure rate 0.0-1.0")
	flag.StringVar(&cfg.SeedFile, "seed-file", "", "Path to JSON fixture for initial state")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Enable request logging")
	flag.StringVar(&cfg.JWTSecret, "jwt-secret", "", "HMAC secret for issued tokens (random if empty)")
	flag.Parse()

	if cfg.Port == 0 {
		if p := os.Getenv("PORT"); p != "" {
			fmt.Sscanf(p, "%d", &cfg.Port)
		}
	}
	return cfg
}

// Twin is the base server. It wraps a chi router with the common
// middleware and manages the listener lifecycle.
type Twin struct {
	Config *Config
	Router *chi.Mux
	Logger *slog.Logger
	mw     *Middleware
	mu     sync.RWMutex // guards Config during runtime updates
}

// New creates a Twin with the given config.
func New(cfg *Config) *Twin {
	out := cfg.LogOutput
	if out == nil {
		out = os.Stdout
	}
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})).
		With("twin", cfg.Name)

	r := chi.NewRouter()
	t := &Twin{
		Config: cfg,
		Router: r,
		Logger: logger,
	}
	t.mw = NewMiddleware(t, logger)

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(t.mw.RequestLog)
	r.Use(t.mw.LatencyInjection)
	r.Use(t.mw.RandomFailure)

	return t
}

// Middleware returns the middleware instance (request log, fault registry).
func (t *Twin) Middleware() *Middleware {
	return t.mw
}

func (t *Twin) latency() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Config.Latency
}

func (t *Twin) failRate() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Config.FailRate
}

func (t *Twin) verbose() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Config.Verbose
}

// GetConfig returns the runtime configuration. Implements admin.ConfigProvider.
func (t *Twin) GetConfig() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return map[string]any{
		"name":      t.Config.Name,
		"port":      t.Config.Port,
		"latency":   t.Config.Latency.String(),
		"fail_rate": t.Config.FailRate,
		"verbose":   t.Config.Verbose,
	}
}

// UpdateConfig applies runtime updates to latency, fail_rate and verbose.
// Every key is validated before any is applied.
func (t *Twin) UpdateConfig(updates map[string]any) error {
	var (
		latency  *time.Duration
		failRate *float64
		verbose  *bool
	)
	for k, v := range updates {
		switch k {
		case "latency":
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("latency must be a duration string")
			}
			d, err := time.ParseDuration(s)
			if err != nil {
				return fmt.Errorf("invalid latency duration: %w", err)
			}
			if d < 0 {
				return fmt.Errorf("latency must not be negative")
			}
			latency = &d
		case "fail_rate":
			f, ok := v.(float64)
			if !ok {
				return fmt.Errorf("fail_rate must be a number")
			}
			if f < 0 || f > 1 {
				return fmt.Errorf("fail_rate must be between 0.0 and 1.0")
			}
			failRate = &f
		case "verbose":
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("verbose must be a boolean")
			}
			verbose = &b
		case "name", "port", "jwt_secret":
			return fmt.Errorf("%s cannot be changed at runtime", k)
		default:
			return fmt.Errorf("unknown config key: %s", k)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if latency != nil {
		t.Config.Latency = *latency
	}
	if failRate != nil {
		t.Config.FailRate = *failRate
	}
	if verbose != nil {
		t.Config.Verbose = *verbose
	}
	return nil
}

// Serve listens on the configured port until ctx is cancelled or the
// process receives SIGINT/SIGTERM, then shuts down gracefully.
func (t *Twin) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", t.Config.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      t.Router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		t.Logger.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listening on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	t.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ServeHTTP implements http.Handler so a Twin can back an httptest.Server.
func (t *Twin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t.Router.ServeHTTP(w, r)
}

// JSON writes v as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Success writes the API's success envelope:
// {"success": true, "messages": [...], <payload fields>}.
func Success(w http.ResponseWriter, status int, payload map[string]any, messages ...string) {
	body := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		body[k] = v
	}
	if messages == nil {
		messages = []string{}
	}
	body["success"] = true
	body["messages"] = messages
	JSON(w, status, body)
}

// Error writes the API's failure envelope. 4xx responses are client errors,
// everything else server errors.
func Error(w http.ResponseWriter, status int, messages ...string) {
	errType := "server"
	if status >= 400 && status < 500 {
		errType = "client"
	}
	if messages == nil {
		messages = []string{http.StatusText(status)}
	}
	JSON(w, status, map[string]any{
		"success":   false,
		"messages":  messages,
		"errorType": errType,
	})
}
