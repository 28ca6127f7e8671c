package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"promptfusion/internal/http/handlers"
	"promptfusion/internal/middleware"
)

// Options configures the cross-cutting middleware.
type Options struct {
	Logger          zerolog.Logger
	CORSOrigins     []string
	RateLimitPerMin int
	// JWTSecret enables bearer-token auth. Empty trusts X-User-ID.
	JWTSecret string
	// StaticDir serves filesystem blobs under /static when set.
	StaticDir string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.CORSOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	if opts.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}

	r.Group(func(r chi.Router) {
		r.Use(
			middleware.Authenticate(opts.JWTSecret),
			middleware.RateLimit(opts.RateLimitPerMin, time.Minute),
		)

		r.Route("/v1/jobs", func(r chi.Router) {
			r.Post("/", app.SubmitJob)
			r.Get("/", app.ListJobs)
			r.Get("/estimate", app.EstimateJob)
			r.Get("/{id}", app.GetJob)
			r.Post("/{id}/cancel", app.CancelJob)
			r.Get("/{id}/archive", app.JobArchive)
		})
		r.Route("/v1/credits", func(r chi.Router) {
			r.Get("/", app.CreditBalance)
			r.Get("/history", app.CreditHistory)
			r.Post("/reload", app.CreditReload)
		})
	})

	return r
}
