package tabs

import (
	"fmt"
	"net/http"
	"time"

	"github.com/noah-isme/kasir-kopi/internal/cart"
	"github.com/noah-isme/kasir-kopi/internal/common"
	"github.com/noah-isme/kasir-kopi/internal/pricing"
)

// Collection holds open tab documents.
const Collection = "openTabs"

// Status of a tab. Paid tabs are deleted, so stored tabs are always open.
type Status string

// Tab statuses.
const (
	StatusOpen Status = "open"
	StatusPaid Status = "paid"
)

var (
	// ErrInvalidCustomerName is returned for a blank tab name.
	ErrInvalidCustomerName = common.NewCodedError("INVALID_CUSTOMER_NAME", http.StatusUnprocessableEntity, "customer name is required")
	// ErrTabNotFound is returned for an unknown or already closed tab.
	ErrTabNotFound = common.NewCodedError("TAB_NOT_FOUND", http.StatusNotFound, "open tab not found")
	// ErrTabAbandoned is returned when none of a tab's products still exist.
	ErrTabAbandoned = common.NewCodedError("TAB_ABANDONED", http.StatusConflict, "none of the tab's products are available")
)

// OpenTab is a held order whose stock is already deducted.
type OpenTab struct {
	ID           string              `json:"id"`
	CustomerName string              `json:"customerName"`
	Items        []cart.LineSnapshot `json:"items"`
	TotalAmount  pricing.Money       `json:"totalAmount"`
	Status       Status              `json:"status"`
	StationID    string              `json:"stationId,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
}

// ProductUnavailableWarning names a tab line dropped on restore because its
// product left the catalog.
type ProductUnavailableWarning struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
}

func (w ProductUnavailableWarning) String() string {
	return fmt.Sprintf("%s is no longer on the menu; %d dropped", w.Name, w.Quantity)
}
