package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/polysettle/internal/domain"
	"github.com/alejandrodnm/polysettle/internal/ports"
)

// DefaultFetchWorkers limita las consultas concurrentes al feed.
const DefaultFetchWorkers = 4

// Provider responde preguntas pendientes con datos de un feed externo.
// No tiene loop propio: AnswerPending se dispara desde fuera.
type Provider struct {
	registry *Registry
	feed     ports.AnswerFeed
	identity string
	workers  int
	batch    int
}

// NewProvider crea un Provider que firma como identity.
func NewProvider(registry *Registry, feed ports.AnswerFeed, identity string, workers int) *Provider {
	if workers <= 0 {
		workers = DefaultFetchWorkers
	}
	return &Provider{registry: registry, feed: feed, identity: identity, workers: workers, batch: domain.MaxBatch}
}

// SetBatchSize limita el tamaño de cada BatchAnswer a 1..MaxBatch.
func (p *Provider) SetBatchSize(n int) {
	p.batch = max(1, min(n, domain.MaxBatch))
}

// AnswerPending consulta el feed para cada pregunta pendiente de ids y envía
// las respuestas en lotes del tamaño configurado. Devuelve cuántas se aplicaron.
// Las preguntas que el feed aún no conoce se saltan.
func (p *Provider) AnswerPending(ctx context.Context, ids []uint64) (int, error) {
	var (
		mu    sync.Mutex
		items []AnswerItem
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, id := range ids {
		g.Go(func() error {
			q, err := p.registry.Question(gctx, id)
			if err != nil {
				slog.Warn("provider: question lookup failed", "question_id", id, "err", err)
				return nil
			}
			if q.Status != domain.AnswerPending || q.Refunded {
				return nil
			}
			payload, err := p.feed.FetchAnswer(gctx, q)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				slog.Debug("provider: no answer yet", "question_id", id)
				return nil
			case gctx.Err() != nil:
				return gctx.Err()
			case err != nil:
				slog.Warn("provider: fetch failed", "question_id", id, "err", err)
				return nil
			}
			mu.Lock()
			items = append(items, AnswerItem{QuestionID: id, Payload: payload})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("oracle.AnswerPending: %w", err)
	}

	applied := 0
	for start := 0; start < len(items); start += p.batch {
		end := min(start+p.batch, len(items))
		results, err := p.registry.BatchAnswer(ctx, p.identity, items[start:end])
		if err != nil {
			return applied, fmt.Errorf("oracle.AnswerPending: %w", err)
		}
		for i, res := range results {
			if res != nil {
				slog.Warn("provider: answer rejected", "question_id", items[start+i].QuestionID, "err", res)
				continue
			}
			applied++
		}
	}
	slog.Info("provider run complete", "requested", len(ids), "fetched", len(items), "applied", applied)
	return applied, nil
}
