package domain

import (
	"strconv"
	"strings"
)

// Namespace agrupa los records del store por tipo.
type Namespace string

const (
	NamespaceRegistry    Namespace = "registry"
	NamespaceMarket      Namespace = "market"
	NamespacePosition    Namespace = "position"
	NamespaceOracle      Namespace = "oracle"
	NamespaceQuestion    Namespace = "question"
	NamespaceAnswer      Namespace = "answer"
	NamespaceFacilitator Namespace = "facilitator"
	NamespacePayment     Namespace = "payment"
	NamespaceBalance     Namespace = "balance"
)

// Key es la dirección determinista de un record: (namespace, id[, sub]).
// ID 0 significa "singleton" (registry, oracle, facilitator).
type Key struct {
	Namespace Namespace
	ID        uint64
	Sub       string
}

func (k Key) String() string {
	var sb strings.Builder
	sb.WriteString(string(k.Namespace))
	if k.ID != 0 {
		sb.WriteByte('/')
		sb.WriteString(strconv.FormatUint(k.ID, 10))
	}
	if k.Sub != "" {
		sb.WriteByte('/')
		sb.WriteString(k.Sub)
	}
	return sb.String()
}

func RegistryKey() Key { return Key{Namespace: NamespaceRegistry} }
func MarketKey(id uint64) Key { return Key{Namespace: NamespaceMarket, ID: id} }
func QuestionKey(id uint64) Key { return Key{Namespace: NamespaceQuestion, ID: id} }
func AnswerKey(questionID uint64) Key { return Key{Namespace: NamespaceAnswer, ID: questionID} }
func OracleKey() Key { return Key{Namespace: NamespaceOracle} }
func FacilitatorKey() Key { return Key{Namespace: NamespaceFacilitator} }
func PaymentKey(id string) Key { return Key{Namespace: NamespacePayment, Sub: id} }
func BalanceKey(account string) Key { return Key{Namespace: NamespaceBalance, Sub: account} }

func PositionKey(marketID uint64, participant string) Key {
	return Key{Namespace: NamespacePosition, ID: marketID, Sub: participant}
}

// Cuentas del ledger de valor.
const (
	FeeVault         = "vault/fees"
	OracleEscrow     = "escrow/oracle"
	FacilitatorVault = "vault/facilitator"
)

func ParticipantAccount(id string) string {
	return "participant/" + id
}

func MarketEscrow(marketID uint64) string {
	return "escrow/market/" + strconv.FormatUint(marketID, 10)
}
