package httpapi

import (
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"posterstudio/internal/auth"
	"posterstudio/internal/http/handlers"
	"posterstudio/internal/middleware"
	"posterstudio/internal/storage"
)

type Options struct {
	Logger             zerolog.Logger
	Authenticator      auth.Authenticator
	CORSAllowedOrigins []string
	// TrustedProxies may set X-Forwarded-For; everyone else is keyed on the
	// connecting address.
	TrustedProxies []netip.Prefix
	// StartRateLimit is the number of generation starts allowed per client
	// IP per minute.
	StartRateLimit int
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP(opts.TrustedProxies),
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
	)
	if len(opts.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(middleware.Authenticate(opts.Authenticator, opts.Logger))

	r.Get("/healthz", app.Health)
	r.Get("/readyz", app.Ready)
	r.Get(storage.SignedPathPrefix+"{bucket}/*", app.ServeFile)

	r.Route("/api", func(r chi.Router) {
		r.Get("/openapi.json", app.OpenAPIJSON)
		r.Get("/docs", app.OpenAPIDocs)

		r.Get("/themes", app.ListThemes)

		r.Route("/admin/themes", func(r chi.Router) {
			r.Get("/", app.AdminListThemes)
			r.Post("/", app.AdminCreateTheme)
			r.Put("/{id}", app.AdminUpdateTheme)
			r.Delete("/{id}", app.AdminDeleteTheme)
		})

		r.Route("/generations", func(r chi.Router) {
			r.Get("/", app.ListGenerations)
			r.With(middleware.RateLimit(opts.StartRateLimit, time.Minute)).Post("/start", app.StartGeneration)
			r.Get("/{id}", app.GetGeneration)
		})
	})

	return r
}
