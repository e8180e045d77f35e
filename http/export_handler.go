package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/yourorg/presentation-api/internal/deliver"
	"github.com/yourorg/presentation-api/internal/export"
	"github.com/yourorg/presentation-api/internal/model"
	"github.com/yourorg/presentation-api/internal/quota"
	renderpkg "github.com/yourorg/presentation-api/internal/render"
	"github.com/yourorg/presentation-api/internal/tier"
)

type ExportDeps struct {
	Exporter *export.Exporter
}

type ExportRequest struct {
	AccountID        string                   `json:"account_id"`
	Property         model.PropertyRecord     `json:"property"`
	Comparables      []model.ComparableRecord `json:"comparables,omitempty"`
	Narrative        *model.NarrativeBlock    `json:"narrative,omitempty"`
	UserNotes        string                   `json:"user_notes,omitempty"`
	FetchComparables bool                     `json:"fetch_comparables,omitempty"`
	Format           string                   `json:"format"`
	Channel          string                   `json:"channel"`
	Destination      deliver.Destination      `json:"destination"`
}

func RegisterExport(r chi.Router, d ExportDeps) {
	r.Post("/v1/exports", func(w http.ResponseWriter, req *http.Request) {
		var body ExportRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, req, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
		if body.AccountID == "" {
			writeError(w, req, http.StatusBadRequest, "account_required", "account_id is required")
			return
		}
		format, err := tier.ParseFormat(body.Format)
		if err != nil {
			writeError(w, req, http.StatusBadRequest, "invalid_format", err.Error())
			return
		}
		channel, err := tier.ParseChannel(body.Channel)
		if err != nil {
			writeError(w, req, http.StatusBadRequest, "invalid_channel", err.Error())
			return
		}

		result, err := d.Exporter.Export(req.Context(), export.Request{
			AccountID:        body.AccountID,
			Property:         body.Property,
			Comparables:      body.Comparables,
			Narrative:        body.Narrative,
			UserNotes:        body.UserNotes,
			FetchComparables: body.FetchComparables,
			Format:           format,
			Channel:          channel,
			Destination:      body.Destination,
		})
		if err != nil {
			writeExportError(w, req, err)
			return
		}

		resp := map[string]any{
			"ok":         true,
			"receipt_id": result.Receipt.ID,
			"channel":    string(result.Receipt.Channel),
			"filename":   result.Receipt.Filename,
		}
		if result.Receipt.ProviderID != "" {
			resp["provider_id"] = result.Receipt.ProviderID
		}
		if a := result.Receipt.Artifact; a != nil {
			resp["mime"] = a.MIME
			resp["payload"] = base64.StdEncoding.EncodeToString(a.Payload)
		}
		render.JSON(w, req, resp)
	})
}

// writeExportError maps pipeline errors onto status codes, keeping the stable
// machine-readable reason in the body.
func writeExportError(w http.ResponseWriter, req *http.Request, err error) {
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		writeError(w, req, http.StatusUnprocessableEntity, ve.Reason, ve.Error())
		return
	}
	var qe *quota.ExceededError
	if errors.As(err, &qe) {
		render.Status(req, http.StatusTooManyRequests)
		render.JSON(w, req, map[string]any{
			"error": "quota_exceeded",
			"used":  qe.Used,
			"limit": qe.Limit,
		})
		return
	}
	var de *deliver.Error
	if errors.As(err, &de) {
		switch de.Reason {
		case deliver.ReasonNotPermitted:
			writeError(w, req, http.StatusForbidden, de.Reason, de.Error())
		case deliver.ReasonValidation:
			writeError(w, req, http.StatusBadRequest, de.Reason, de.Error())
		default:
			writeError(w, req, http.StatusBadGateway, de.Reason, de.Error())
		}
		return
	}
	var re *renderpkg.RenderError
	if errors.As(err, &re) {
		writeError(w, req, http.StatusInternalServerError, "render_failed", re.Error())
		return
	}
	if errors.Is(err, quota.ErrAccountNotFound) {
		writeError(w, req, http.StatusNotFound, "account_not_found", err.Error())
		return
	}
	writeError(w, req, http.StatusInternalServerError, "internal_error", err.Error())
}

func writeError(w http.ResponseWriter, req *http.Request, status int, reason, detail string) {
	render.Status(req, status)
	render.JSON(w, req, map[string]any{"error": reason, "detail": detail})
}
