package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteRequest is the solicitation sent to one vendor.
type QuoteRequest struct {
	SessionID string
	ItemID    string
	Quantity  int
	Urgency   Urgency
	Deadline  time.Time
}

// Quote is a vendor's raw response before validation. Prices are nullable so
// that a missing price can be told apart from a zero price.
type Quote struct {
	VendorID         string
	UnitPrice        decimal.NullDecimal
	TotalPrice       decimal.NullDecimal
	DeliveryTimeDays int
	Terms            string
}
