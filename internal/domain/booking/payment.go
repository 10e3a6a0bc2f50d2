package booking

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rentworks/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PaymentType classifies ledger entries. Only received payments reduce the
// balance due; subhire and staff costs are job costs tracked against the
// booking for margin reporting.
type PaymentType string

const (
	PaymentTypeReceived  PaymentType = "PAYMENT_RECEIVED"
	PaymentTypeSubhire   PaymentType = "SUBHIRE_COST"
	PaymentTypeStaffCost PaymentType = "STAFF_COST"
)

// IsValid checks if the payment type is valid
func (t PaymentType) IsValid() bool {
	switch t {
	case PaymentTypeReceived, PaymentTypeSubhire, PaymentTypeStaffCost:
		return true
	}
	return false
}

// Payment is one append-only ledger entry within the Booking aggregate,
// stored as JSONB
type Payment struct {
	ID         uuid.UUID       `json:"id"`
	Type       PaymentType     `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	Reference  string          `json:"reference,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// NewPayment creates a ledger entry
func NewPayment(pType PaymentType, amount valueobject.Money, reference string, now time.Time) Payment {
	return Payment{
		ID:         uuid.New(),
		Type:       pType,
		Amount:     amount.Amount(),
		Reference:  reference,
		RecordedAt: now,
	}
}

// AmountMoney returns the entry amount as Money
func (p Payment) AmountMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(p.Amount)
}

// PaymentLedger is the append-only payment list, a GORM Scanner/Valuer for
// JSONB storage
type PaymentLedger []Payment

// TotalReceived sums the received payments only
func (l PaymentLedger) TotalReceived() valueobject.Money {
	total := decimal.Zero
	for _, p := range l {
		if p.Type == PaymentTypeReceived {
			total = total.Add(p.Amount)
		}
	}
	return valueobject.NewMoneyUSD(total)
}

// Value implements driver.Valuer for GORM to store as JSONB
func (l PaymentLedger) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for GORM to read from JSONB
func (l *PaymentLedger) Scan(value interface{}) error {
	if value == nil {
		*l = PaymentLedger{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan PaymentLedger: unsupported type")
	}

	if len(bytes) == 0 {
		*l = PaymentLedger{}
		return nil
	}

	return json.Unmarshal(bytes, l)
}

// CollectionNote is an audit entry on the receivable side of the booking
type CollectionNote struct {
	ID        uuid.UUID `json:"id"`
	Actor     string    `json:"actor"`
	Note      string    `json:"note"`
	WrittenAt time.Time `json:"written_at"`
}

// CollectionNotes is stored as JSONB alongside the payment ledger
type CollectionNotes []CollectionNote

// Value implements driver.Valuer for GORM to store as JSONB
func (n CollectionNotes) Value() (driver.Value, error) {
	if n == nil {
		return "[]", nil
	}
	return json.Marshal(n)
}

// Scan implements sql.Scanner for GORM to read from JSONB
func (n *CollectionNotes) Scan(value interface{}) error {
	if value == nil {
		*n = CollectionNotes{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan CollectionNotes: unsupported type")
	}

	if len(bytes) == 0 {
		*n = CollectionNotes{}
		return nil
	}

	return json.Unmarshal(bytes, n)
}
