package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/yourorg/presentation-api/internal/quota"
	"github.com/yourorg/presentation-api/internal/tier"
)

type QuotaDeps struct {
	Quota *quota.Manager
}

// RegisterQuota exposes the usage snapshot UIs display next to the export
// buttons.
func RegisterQuota(r chi.Router, d QuotaDeps) {
	r.Get("/v1/accounts/{accountID}/quota", func(w http.ResponseWriter, req *http.Request) {
		accountID := chi.URLParam(req, "accountID")
		used, limit, err := d.Quota.Usage(req.Context(), accountID)
		if err != nil {
			if errors.Is(err, quota.ErrAccountNotFound) {
				writeError(w, req, http.StatusNotFound, "account_not_found", err.Error())
				return
			}
			writeError(w, req, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		resp := map[string]any{
			"ok":        true,
			"account":   accountID,
			"period":    d.Quota.Period(),
			"used":      used,
			"unlimited": limit == tier.UnlimitedExports,
		}
		if limit != tier.UnlimitedExports {
			resp["limit"] = limit
			remaining := limit - used
			if remaining < 0 {
				remaining = 0
			}
			resp["remaining"] = remaining
		}
		render.JSON(w, req, resp)
	})
}
