package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"

	httpapi "github.com/yourorg/presentation-api/http"
	"github.com/yourorg/presentation-api/internal/export"
	"github.com/yourorg/presentation-api/internal/paginate"
	"github.com/yourorg/presentation-api/internal/quota"
)

type routerDeps struct {
	Exporter *export.Exporter
	Quota    *quota.Manager
	Geometry paginate.Geometry
	Brand    string
}

func BuildRouter(deps routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(httprate.LimitByIP(100, 1*time.Minute)) // renders are CPU-bound, cap per client
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"ok":true}`)) })

	httpapi.RegisterExport(r, httpapi.ExportDeps{Exporter: deps.Exporter})
	httpapi.RegisterPreview(r, httpapi.PreviewDeps{Geometry: deps.Geometry, Brand: deps.Brand})
	httpapi.RegisterQuota(r, httpapi.QuotaDeps{Quota: deps.Quota})

	return r
}
