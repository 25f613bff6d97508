/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging through logrus
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the widget

ROUTE GROUPS:
  /api/state, /api/budget, /api/expenses   Budget and balance
  /api/savings/*                            Savings goal
  /api/providers, /api/transfers/*          Mobile money
  /api/rates/*, /api/conversions/*          Currency conversion
  /api/activity                             Activity log
  /api/scenarios/*                          Demo scenarios
  /api/reset                                Wallet reset (dev only)
  /*                                        Static files (widget)

STATIC FILE SERVING:
  Serves the widget from StaticDir. Unknown paths fall back to
  index.html so client-side routes work.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/bensave/serve.go: Server startup
*/
package api

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	StaticDir      string // empty disables static serving
	Logger         logrus.FieldLogger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Location"},
		AllowCredentials: false,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.GetState)
		r.Post("/reset", h.ResetWallet)

		r.Post("/budget", h.SetBudget)
		r.Post("/expenses", h.AddExpense)

		r.Post("/savings/goal", h.SetSavingsGoal)

		r.Get("/providers", h.ListProviders)
		r.Route("/transfers", func(r chi.Router) {
			r.Post("/", h.StartTransfer)
			r.Get("/{id}", h.GetTransfer)
		})

		r.Get("/rates/{currency}", h.GetRate)
		r.Route("/conversions", func(r chi.Router) {
			r.Post("/", h.Convert)
			r.Post("/apply", h.ApplyConversion)
			r.Delete("/", h.DiscardConversion)
		})

		r.Get("/activity", h.ListActivity)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	if opts.StaticDir != "" {
		if _, err := os.Stat(opts.StaticDir); err == nil {
			r.Get("/*", staticHandler(opts.StaticDir))
		} else {
			opts.Logger.WithField("dir", opts.StaticDir).Warn("Static directory not found, serving API only")
		}
	}

	return r
}

// staticHandler serves files from dir with index.html as the fallback for
// anything that does not exist.
func staticHandler(dir string) http.HandlerFunc {
	fileServer := http.FileServer(http.Dir(dir))
	return func(w http.ResponseWriter, r *http.Request) {
		fullPath := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		info, err := os.Stat(fullPath)
		if err != nil || (info.IsDir() && !hasIndex(fullPath)) {
			// SPA routing: serve index.html
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		fileServer.ServeHTTP(w, r)
	}
}

func hasIndex(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "index.html"))
	return err == nil
}

// requestLogger logs one line per request through logrus.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.WithFields(logrus.Fields{
					"method":     r.Method,
					"path":       r.URL.Path,
					"status":     ww.Status(),
					"bytes":      ww.BytesWritten(),
					"duration":   time.Since(start).String(),
					"request_id": middleware.GetReqID(r.Context()),
				}).Info("Request handled")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
