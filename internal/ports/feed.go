package ports

import (
	"context"

	"github.com/alejandrodnm/polysettle/internal/domain"
)

// AnswerFeed es la fuente externa de datos que usa el provider del oráculo.
type AnswerFeed interface {
	// FetchAnswer devuelve domain.ErrNotFound si la fuente aún no tiene respuesta.
	FetchAnswer(ctx context.Context, q domain.Question) (domain.AnswerPayload, error)
}
