package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/polysettle/internal/domain"
	"github.com/alejandrodnm/polysettle/internal/ports"
)

// Snapshot es el estado final de un mercado con su log de eventos.
type Snapshot struct {
	Market domain.Market  `json:"market"`
	Events []domain.Event `json:"events"`
}

// Snapshot lee el mercado y sus eventos.
func (e *Engine) Snapshot(ctx context.Context, marketID uint64) (Snapshot, error) {
	m, err := e.Market(ctx, marketID)
	if err != nil {
		return Snapshot{}, err
	}
	events, err := e.run.Store().Events(ctx, marketID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("settlement.Snapshot: market %d: %w", marketID, err)
	}
	return Snapshot{Market: m, Events: events}, nil
}

// ArchiveSettled sube un snapshot JSON de cada mercado terminal.
// Las keys son deterministas, así que repetir la operación sobrescribe.
func (e *Engine) ArchiveSettled(ctx context.Context, archiver ports.Archiver) (int, error) {
	markets, err := e.Markets(ctx)
	if err != nil {
		return 0, err
	}
	archived := 0
	for _, m := range markets {
		if !m.Status.Terminal() {
			continue
		}
		snap, err := e.Snapshot(ctx, m.ID)
		if err != nil {
			return archived, err
		}
		body, err := json.Marshal(snap)
		if err != nil {
			return archived, fmt.Errorf("settlement.ArchiveSettled: encode market %d: %w", m.ID, err)
		}
		key := fmt.Sprintf("markets/%d.json", m.ID)
		if err := archiver.Put(ctx, key, body); err != nil {
			return archived, fmt.Errorf("settlement.ArchiveSettled: %w", err)
		}
		archived++
	}
	slog.Info("settled markets archived", "count", archived)
	return archived, nil
}
