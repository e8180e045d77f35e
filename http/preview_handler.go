package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/yourorg/presentation-api/internal/model"
	"github.com/yourorg/presentation-api/internal/paginate"
	"github.com/yourorg/presentation-api/internal/slides"
)

type PreviewDeps struct {
	Geometry paginate.Geometry
	Brand    string
}

type PreviewRequest struct {
	Property    model.PropertyRecord     `json:"property"`
	Comparables []model.ComparableRecord `json:"comparables,omitempty"`
	Narrative   *model.NarrativeBlock    `json:"narrative,omitempty"`
	UserNotes   string                   `json:"user_notes,omitempty"`
}

// RegisterPreview exposes a build-only endpoint: derived statistics plus page
// and slide counts, with no quota traffic. UIs use it for the preview step.
func RegisterPreview(r chi.Router, d PreviewDeps) {
	geom := d.Geometry
	if geom.PageWidth == 0 {
		geom = paginate.Letter()
	}
	r.Post("/v1/presentations/preview", func(w http.ResponseWriter, req *http.Request) {
		var body PreviewRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, req, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
		m, err := model.Build(body.Property, body.Comparables, body.Narrative, body.UserNotes)
		if err != nil {
			var ve *model.ValidationError
			if errors.As(err, &ve) {
				writeError(w, req, http.StatusUnprocessableEntity, ve.Reason, ve.Error())
				return
			}
			writeError(w, req, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		pages, err := paginate.Paginate(m, geom, d.Brand)
		if err != nil {
			writeError(w, req, http.StatusInternalServerError, "render_failed", err.Error())
			return
		}
		deck := slides.Compose(m, d.Brand)

		resp := map[string]any{
			"ok":          true,
			"page_count":  len(pages),
			"slide_count": len(deck),
			"comparables": len(m.Comparables),
		}
		if m.AveragePrice != nil {
			resp["average_price"] = *m.AveragePrice
			resp["average_price_per_sqft"] = *m.AveragePricePerSqft
		}
		render.JSON(w, req, resp)
	})
}
