package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventMarketCreated     EventKind = "market_created"
	EventPositionTaken     EventKind = "position_taken"
	EventMarketResolved    EventKind = "market_resolved"
	EventPeriodResolved    EventKind = "period_resolved"
	EventConditionChecked  EventKind = "condition_checked"
	EventMarketCancelled   EventKind = "market_cancelled"
	EventWinningsClaimed   EventKind = "winnings_claimed"
	EventRefundClaimed     EventKind = "refund_claimed"
	EventFeesWithdrawn     EventKind = "fees_withdrawn"
	EventFeeRateUpdated    EventKind = "fee_rate_updated"
	EventQuestionAsked     EventKind = "question_asked"
	EventQuestionAnswered  EventKind = "question_answered"
	EventBountyRefunded    EventKind = "bounty_refunded"
	EventProviderWithdrawn EventKind = "provider_withdrawn"
	EventOracleUpdated     EventKind = "oracle_updated"
	EventPaymentSettled    EventKind = "payment_settled"
)

// Event es una entrada del log de auditoría. Se persiste en la misma
// transacción que la operación que lo produce.
type Event struct {
	ID         string       `json:"id"`
	Kind       EventKind    `json:"kind"`
	MarketID   uint64       `json:"market_id,omitempty"`
	QuestionID uint64       `json:"question_id,omitempty"`
	Actor      string       `json:"actor,omitempty"`
	Side       int          `json:"side"`
	Amount     uint64       `json:"amount,omitempty"`
	Fee        uint64       `json:"fee,omitempty"`
	Status     MarketStatus `json:"status,omitempty"`
	Ref        string       `json:"ref,omitempty"`
	At         time.Time    `json:"at"`
}

func NewEvent(kind EventKind, at time.Time) Event {
	return Event{
		ID:   uuid.NewString(),
		Kind: kind,
		Side: NoSide,
		At:   at,
	}
}
