package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"pagespeed-tracker/internal/domain"
	"pagespeed-tracker/internal/endpoints"
	"pagespeed-tracker/internal/util"
)

const RequestIDHeader = "X-Request-ID"

type Options struct {
	StaticDir    string
	CORSOrigins  []string
	DefaultLimit int
}

// NewHandler returns the full HTTP stack: CORS around the mux router.
func NewHandler(metricStore domain.MetricStore, webSlogger *util.MetricsLogger, opts Options) http.Handler {
	r := NewRouter(metricStore, webSlogger, opts)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

func NewRouter(metricStore domain.MetricStore, webSlogger *util.MetricsLogger, opts Options) *mux.Router {
	r := mux.NewRouter()

	addRoutes(r, metricStore, webSlogger, opts)

	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(webSlogger))

	return r
}

func addRoutes(r *mux.Router, metricStore domain.MetricStore, webSlogger *util.MetricsLogger, opts Options) {

	metricsHandler := &endpoints.Metrics{}
	metricsHandler.Init(metricStore, webSlogger, opts.DefaultLimit)

	r.HandleFunc("/health", endpoints.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/metrics", metricsHandler.CreateMetricHandler).Methods(http.MethodPost)
	r.HandleFunc("/metrics", metricsHandler.ListMetricsHandler).Methods(http.MethodGet)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		endpoints.APIResponse{}.WriteErrorResponseWithStatusCode(w,
			fmt.Errorf("%w: %s %s", endpoints.ErrMethodNotAllowed, req.Method, req.URL.Path), http.StatusMethodNotAllowed)
	})

	if opts.StaticDir != "" {
		if info, err := os.Stat(opts.StaticDir); err == nil && info.IsDir() {
			r.PathPrefix("/").Handler(http.FileServer(http.Dir(opts.StaticDir))).Methods(http.MethodGet, http.MethodHead)
		} else {
			webSlogger.LogEvent(util.LOG_LEVEL_WARN, "Static directory not found, front-end disabled:", opts.StaticDir)
		}
	}
}

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// Run serves until SIGINT/SIGTERM, then shuts down gracefully and returns.
func Run(addr string, handler http.Handler) error {
	server := NewServer(addr, handler)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s", server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return err
	case <-quit:
	}

	println()
	log.Println("Shutting down server...")

	if err := gracefulShutdown(server, 25*time.Second); err != nil {
		log.Printf("Server stopped with error: %s", err.Error())
		return err
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	log.Println("Server stopped gracefully.")
	return nil
}

func gracefulShutdown(server *http.Server, maximumTime time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), maximumTime)
	defer cancel()

	return server.Shutdown(ctx)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
			r.Header.Set(RequestIDHeader, requestID)
		}
		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *util.MetricsLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.LogEvent(util.LOG_LEVEL_INFO, fmt.Sprintf("Request: %s %s -> %d (%s) id=%s",
				r.Method, r.RequestURI, rec.status, time.Since(start), r.Header.Get(RequestIDHeader)))
		})
	}
}
