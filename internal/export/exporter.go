package export

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yourorg/presentation-api/internal/comps"
	"github.com/yourorg/presentation-api/internal/deliver"
	"github.com/yourorg/presentation-api/internal/events"
	"github.com/yourorg/presentation-api/internal/model"
	"github.com/yourorg/presentation-api/internal/paginate"
	"github.com/yourorg/presentation-api/internal/quota"
	"github.com/yourorg/presentation-api/internal/render"
	"github.com/yourorg/presentation-api/internal/tier"
)

// Request is one export: inputs, output format, delivery channel.
type Request struct {
	AccountID string

	Property    model.PropertyRecord
	Comparables []model.ComparableRecord
	Narrative   *model.NarrativeBlock
	UserNotes   string

	// FetchComparables pulls comparables from the provider when the caller
	// supplied none.
	FetchComparables bool

	Format      tier.Format
	Channel     tier.Channel
	Destination deliver.Destination
}

// Result reports a completed export.
type Result struct {
	Receipt *deliver.Receipt
	Model   *model.PresentationModel
}

// ReceiptStore persists delivery receipts for reporting. Optional.
type ReceiptStore interface {
	SaveReceipt(ctx context.Context, accountID string, r *deliver.Receipt) error
}

// Exporter runs the pipeline: build, capability check, quota authorize,
// render, dispatch, quota commit. Quota is committed only after render and
// dispatch both succeeded; any failure in between releases the reservation.
type Exporter struct {
	Quota      *quota.Manager
	Dispatcher *deliver.Dispatcher
	Comps      comps.Provider   // optional
	Events     events.Publisher // optional
	Receipts   ReceiptStore     // optional
	Geometry   paginate.Geometry
	Brand      string
}

func (e *Exporter) Export(ctx context.Context, req Request) (*Result, error) {
	acct, err := e.Quota.Account(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	// Tier gate first: a doomed request must not touch quota or transports.
	if err := e.Dispatcher.Permitted(acct.Tier, req.Channel, req.Format); err != nil {
		return nil, err
	}
	// Same for malformed input, before the provider round trip below.
	if err := model.Validate(req.Property); err != nil {
		return nil, err
	}

	comparables := req.Comparables
	if len(comparables) == 0 && req.FetchComparables && e.Comps != nil {
		fetched, err := e.Comps.Fetch(ctx, req.Property)
		if err != nil {
			// the provider is best effort; the presentation falls back to
			// the no-comparables treatment
			slog.Warn("comparables fetch failed", "account_id", req.AccountID, "err", err)
		} else {
			comparables = fetched
		}
	}

	m, err := model.Build(req.Property, comparables, req.Narrative, req.UserNotes)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	auth, err := e.Quota.TryConsume(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			e.Quota.Release(auth)
		}
	}()

	artifact, err := e.renderArtifact(m, req.Format)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dest := req.Destination
	if dest.Subject == "" {
		dest.Subject = "Property Presentation - " + req.Property.Address
	}
	receipt, err := e.Dispatcher.Dispatch(ctx, artifact, req.Channel, dest)
	if err != nil {
		return nil, err
	}

	if err := e.Quota.Commit(ctx, auth); err != nil {
		// Delivered but not charged; surface the error so the caller can
		// retry Commit with the same token without double-charging.
		return nil, fmt.Errorf("export delivered but quota commit failed: %w", err)
	}
	committed = true

	if e.Receipts != nil {
		if err := e.Receipts.SaveReceipt(ctx, req.AccountID, receipt); err != nil {
			slog.Warn("receipt save failed", "receipt_id", receipt.ID, "err", err)
		}
	}
	if e.Events != nil {
		e.Events.PublishExportCompleted(ctx, events.ExportCompleted{
			AccountID: req.AccountID,
			Token:     auth.Token,
			Format:    req.Format,
			Channel:   req.Channel,
			Filename:  artifact.Filename,
		})
	}
	return &Result{Receipt: receipt, Model: m}, nil
}

func (e *Exporter) renderArtifact(m *model.PresentationModel, f tier.Format) (*render.Artifact, error) {
	switch f {
	case tier.FormatDocument:
		return render.Document(m, e.geometry(), e.Brand)
	case tier.FormatSlides:
		return render.Slides(m, e.Brand)
	}
	return nil, &render.RenderError{Stage: "format", Err: fmt.Errorf("unknown format %q", f)}
}

func (e *Exporter) geometry() paginate.Geometry {
	if e.Geometry.PageWidth == 0 {
		return paginate.Letter()
	}
	return e.Geometry
}
