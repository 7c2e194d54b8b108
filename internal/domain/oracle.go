package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

// QuestionType es el tipo de respuesta esperado.
type QuestionType string

const (
	QuestionGeneral QuestionType = "general"
	QuestionPrice   QuestionType = "price"
	QuestionYesNo   QuestionType = "yes_no"
	QuestionNumeric QuestionType = "numeric"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionGeneral, QuestionPrice, QuestionYesNo, QuestionNumeric:
		return true
	}
	return false
}

// AnswerStatus es el estado de una pregunta al oráculo.
type AnswerStatus string

const (
	AnswerPending   AnswerStatus = "pending"
	AnswerAnswered  AnswerStatus = "answered"
	AnswerDisputed  AnswerStatus = "disputed"
	AnswerFinalized AnswerStatus = "finalized"
)

const (
	DefaultOracleFee uint64 = 10_000_000
	MaxConfidence           = 100
	MaxBatch                = 20
)

// OracleState es el record singleton del registro de oráculo.
type OracleState struct {
	Authority       string    `json:"authority"`
	Provider        string    `json:"provider"`
	Fee             uint64    `json:"fee"`
	QuestionCounter uint64    `json:"question_counter"`
	ProviderBalance uint64    `json:"provider_balance"`
	CreatedAt       time.Time `json:"created_at"`
}

func (s *OracleState) NextQuestionID() (uint64, error) {
	id, err := CheckedAdd(s.QuestionCounter, 1)
	if err != nil {
		return 0, err
	}
	s.QuestionCounter = id
	return id, nil
}

// Question es una pregunta con bounty pagado por el requester.
type Question struct {
	ID          uint64       `json:"id"`
	Requester   string       `json:"requester"`
	Type        QuestionType `json:"type"`
	Text        string       `json:"text"`
	ContentHash string       `json:"content_hash"`
	Bounty      uint64       `json:"bounty"`
	AskedAt     time.Time    `json:"asked_at"`
	Deadline    time.Time    `json:"deadline"`
	Status      AnswerStatus `json:"status"`
	Refunded    bool         `json:"refunded"`
}

// Answered es true para Answered y Finalized.
func (q Question) Answered() bool {
	return q.Status == AnswerAnswered || q.Status == AnswerFinalized
}

// RefundOpensAt es el instante a partir del cual el requester puede recuperar el bounty.
func (q Question) RefundOpensAt() time.Time {
	return q.Deadline.Add(GracePeriod)
}

// ContentHash es keccak256 del texto de la pregunta, en hex.
func ContentHash(text string) string {
	return crypto.Keccak256Hash([]byte(text)).Hex()
}

// AnswerPayload es lo que envía el provider.
type AnswerPayload struct {
	Confidence uint8  `json:"confidence"`
	Bool       bool   `json:"bool"`
	Numeric    uint64 `json:"numeric"`
	Text       string `json:"text,omitempty"`
	Source     string `json:"source,omitempty"`
}

// Answer es la única respuesta aceptada de una pregunta.
type Answer struct {
	QuestionID uint64    `json:"question_id"`
	Provider   string    `json:"provider"`
	Confidence uint8     `json:"confidence"`
	Bool       bool      `json:"bool"`
	Numeric    uint64    `json:"numeric"`
	Text       string    `json:"text,omitempty"`
	Source     string    `json:"source,omitempty"`
	AnsweredAt time.Time `json:"answered_at"`
}

// AnswerView es la vista read-only que consume la resolución de mercados.
// Confidence 0 significa "todavía sin respuesta".
type AnswerView struct {
	Confidence uint8
	Bool       bool
	Numeric    uint64
}

func (v AnswerView) Answered() bool { return v.Confidence > 0 }

// ViewOf construye la vista. Una pregunta no respondida da confidence 0.
func ViewOf(q Question, a *Answer) AnswerView {
	if a == nil || !q.Answered() {
		return AnswerView{}
	}
	return AnswerView{Confidence: a.Confidence, Bool: a.Bool, Numeric: a.Numeric}
}
