package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// VendorProposal is a vendor's quoted terms for one demand.
type VendorProposal struct {
	VendorID          string          `json:"vendor_id"`
	VendorName        string          `json:"vendor_name"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	TotalPrice        decimal.Decimal `json:"total_price"`
	DeliveryTimeDays  int             `json:"delivery_time_days"`
	Terms             string          `json:"terms"`
	ConfidenceScore   float64         `json:"confidence_score"`
	VendorReliability float64         `json:"vendor_reliability"`
	ResponseLatency   time.Duration   `json:"response_latency_ns"`
	ReceivedAt        time.Time       `json:"received_at"`
}

// ApprovalDecision is the single human decision recorded against a session.
type ApprovalDecision struct {
	SessionID string    `json:"session_id"`
	Approved  bool      `json:"approved"`
	Notes     string    `json:"notes"`
	DecidedBy string    `json:"decided_by"`
	DecidedAt time.Time `json:"decided_at"`
}
