package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"productshot/internal/http/handlers"
	"productshot/internal/middleware"
)

// Options carries the request pipeline settings that are not handler state.
type Options struct {
	JWTSecret     string
	CORSOrigins   []string
	CountryLookup middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.Recoverer,
		middleware.CORS(opts.CORSOrigins),
		middleware.Country(opts.CountryLookup),
		middleware.Logger(app.Logger),
	)

	r.Get("/v1/healthz", app.Health)
	// Signed URLs carry their own authorization.
	r.Get("/v1/storage/{bucket}/*", app.DownloadObject)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret))

		r.Post("/v1/generations", app.CreateGeneration)
		r.Get("/v1/jobs/{job_id}", app.GetJob)
		r.Post("/v1/projects/{project_id}/assets", app.UploadAsset)
		r.Get("/v1/assets/{asset_id}", app.GetAsset)
		r.Get("/v1/credits", app.Credits)
		r.Get("/v1/usage", app.Usage)
	})

	return r
}
