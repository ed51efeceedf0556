package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/phrazzld/coursehub-api/internal/api"
	"github.com/phrazzld/coursehub-api/internal/api/middleware"
	"github.com/phrazzld/coursehub-api/internal/api/shared"
	"github.com/unrolled/secure"
)

// routes builds the HTTP handler tree.
func (app *application) routes() http.Handler {
	r := chi.NewRouter()

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'",
		SSLRedirect:           app.config.Server.Production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.TraceMiddleware(app.logger))
	r.Use(app.metrics.Middleware)
	r.Use(secureMiddleware.Handler)

	health := api.NewHealthHandler(app.checkers, app.logger)
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	r.Method(http.MethodGet, "/metrics", app.metrics.Handler())

	authMiddleware := middleware.NewAuthMiddleware(app.verifier)
	enrollmentHandler := api.NewEnrollmentHandler(app.ledger, app.query, app.logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Route("/user/courses", func(r chi.Router) {
			r.Get("/in-progress", enrollmentHandler.ListInProgress)
			r.Get("/completed", enrollmentHandler.ListCompleted)
			r.Get("/enrollments", enrollmentHandler.ListMine)
			r.Get("/enrollments/{id}", enrollmentHandler.Get)
			r.With(app.enrollLimiter()).Post("/enroll", enrollmentHandler.Enroll)
			r.Delete("/{id}", enrollmentHandler.Cancel)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Post("/{id}/approve", enrollmentHandler.Approve)
				r.Post("/{id}/reject", enrollmentHandler.Reject)
				r.Post("/{id}/complete", enrollmentHandler.Complete)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Get("/sessions/{id}/enrollments", enrollmentHandler.ListSessionEnrollments)
		})
	})

	return r
}

// enrollLimiter limits enroll requests per caller. A limit of zero disables
// it.
func (app *application) enrollLimiter() func(http.Handler) http.Handler {
	limit := app.config.RateLimit.EnrollPerMinute
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(limit, time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if caller, ok := shared.GetCaller(r.Context()); ok {
				return "user:" + strconv.FormatInt(caller.UserID, 10), nil
			}
			return httprate.KeyByIP(r)
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			shared.RespondWithError(w, r, http.StatusTooManyRequests, "Too many enrollment requests")
		}),
	)
}
