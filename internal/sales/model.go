package sales

import (
	"time"

	"github.com/noah-isme/kasir-kopi/internal/cart"
	"github.com/noah-isme/kasir-kopi/internal/docstore"
	"github.com/noah-isme/kasir-kopi/internal/pricing"
)

// Collection holds sale records.
const Collection = "transactions"

// PaymentCash is the only payment method the register accepts.
const PaymentCash = "cash"

// Source tells how a sale was completed.
type Source string

// Sale sources.
const (
	SourceDirect Source = "direct"
	SourceTab    Source = "tab"
)

// Transaction is an immutable sale record.
type Transaction struct {
	ID            string              `json:"id"`
	Items         []cart.LineSnapshot `json:"items"`
	TotalAmount   pricing.Money       `json:"totalAmount"`
	PaymentMethod string              `json:"paymentMethod"`
	AmountPaid    pricing.Money       `json:"amountPaid"`
	Change        pricing.Money       `json:"change"`
	Source        Source              `json:"source"`
	TabID         string              `json:"tabId,omitempty"`
	CustomerName  string              `json:"customerName,omitempty"`
	StationID     string              `json:"stationId,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
}

// Stage assigns an id when missing and stages the record's creation on tx.
// CreatedAt is stamped by the store at commit.
func Stage(tx docstore.Tx, t *Transaction) error {
	if t.ID == "" {
		t.ID = docstore.NewRef(Collection).ID
	}
	if t.PaymentMethod == "" {
		t.PaymentMethod = PaymentCash
	}
	return tx.Create(docstore.Ref{Collection: Collection, ID: t.ID}, t)
}

// DayRange returns the local calendar day containing t as [start, end).
func DayRange(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
