package events

import (
    "context"

    "github.com/yourorg/presentation-api/internal/tier"
)

// ExportCompleted is published after an export has rendered, dispatched and
// committed quota.
type ExportCompleted struct {
    AccountID string
    Token     string
    Format    tier.Format
    Channel   tier.Channel
    Filename  string
}

type Publisher interface {
    PublishExportCompleted(ctx context.Context, evt ExportCompleted)
    SubscribeExportCompleted() <-chan ExportCompleted
}

type inMemory struct{ ch chan ExportCompleted }

func NewInMemory(buffer int) Publisher {
    if buffer <= 0 { buffer = 256 }
    return &inMemory{ch: make(chan ExportCompleted, buffer)}
}

func (m *inMemory) PublishExportCompleted(_ context.Context, evt ExportCompleted) {
    select { case m.ch <- evt: default: }
}

func (m *inMemory) SubscribeExportCompleted() <-chan ExportCompleted { return m.ch }
