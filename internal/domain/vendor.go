package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Vendor is a supplier entry in the vendor directory.
type Vendor struct {
	ID               string          `json:"id" koanf:"id"`
	Name             string          `json:"name" koanf:"name"`
	Category         string          `json:"category" koanf:"category"`
	Endpoint         string          `json:"endpoint,omitempty" koanf:"endpoint"`
	Active           bool            `json:"active" koanf:"active"`
	FulfillmentRate  float64         `json:"fulfillment_rate" koanf:"fulfillment_rate"`
	PriceVolatility  float64         `json:"price_volatility" koanf:"price_volatility"`
	BaseUnitPrice    decimal.Decimal `json:"base_unit_price" koanf:"-"`
	BaseDeliveryDays int             `json:"base_delivery_days" koanf:"base_delivery_days"`
	Terms            string          `json:"terms,omitempty" koanf:"terms"`
}

// IsSimulated reports whether quotes for this vendor come from the local simulator.
func (v *Vendor) IsSimulated() bool {
	return v.Endpoint == ""
}

// Item is an inventory item that can be replenished.
type Item struct {
	ID              string    `json:"id" koanf:"id"`
	Name            string    `json:"name" koanf:"name"`
	Category        string    `json:"category" koanf:"category"`
	CurrentStock    int       `json:"current_stock" koanf:"current_stock"`
	ReorderLevel    int       `json:"reorder_level" koanf:"reorder_level"`
	MaxStockLevel   int       `json:"max_stock_level" koanf:"max_stock_level"`
	MinReorderBatch int       `json:"min_reorder_batch" koanf:"min_reorder_batch"`
	UpdatedAt       time.Time `json:"updated_at" koanf:"-"`
}

// StockStatus classifies the item's stock level against its thresholds.
func (i *Item) StockStatus() string {
	switch {
	case i.CurrentStock <= 0:
		return "out_of_stock"
	case i.CurrentStock <= i.ReorderLevel/2:
		return "critical"
	case i.CurrentStock <= i.ReorderLevel:
		return "low"
	default:
		return "ok"
	}
}

// PurchaseOrder is the record created when an approved proposal is committed.
type PurchaseOrder struct {
	ID               string          `json:"id"`
	SessionID        string          `json:"session_id"`
	ItemID           string          `json:"item_id"`
	VendorID         string          `json:"vendor_id"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	DeliveryTimeDays int             `json:"delivery_time_days"`
	CreatedAt        time.Time       `json:"created_at"`
}

// StockMovement records a change to an item's stock level.
type StockMovement struct {
	ID            string    `json:"id"`
	ItemID        string    `json:"item_id"`
	Delta         int       `json:"delta"`
	QuantityAfter int       `json:"quantity_after"`
	Reason        string    `json:"reason"`
	CreatedAt     time.Time `json:"created_at"`
}
