// Package vendorclient solicits quotes from vendors, either over gRPC or from
// the built-in simulator.
//
// The wire protocol has no generated stubs. Requests and responses are
// google.protobuf.Struct messages carried by the default proto codec on a
// single unary method.
package vendorclient

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
)

const (
	ServiceName       = "verichain.vendor.v1.VendorQuoteService"
	RequestQuoteName  = "RequestQuote"
	RequestQuoteRoute = "/" + ServiceName + "/" + RequestQuoteName
)

// Struct field names.
const (
	fieldSessionID      = "session_id"
	fieldItemID         = "item_id"
	fieldQuantity       = "quantity"
	fieldUrgency        = "urgency"
	fieldDeadlineUnixMs = "deadline_unix_ms"
	fieldVendorID       = "vendor_id"
	fieldUnitPrice      = "unit_price"
	fieldTotalPrice     = "total_price"
	fieldDeliveryDays   = "delivery_time_days"
	fieldTerms          = "terms"
)

// EncodeRequest converts a quote request to its wire form.
func EncodeRequest(req domain.QuoteRequest) (*structpb.Struct, error) {
	fields := map[string]any{
		fieldSessionID: req.SessionID,
		fieldItemID:    req.ItemID,
		fieldQuantity:  float64(req.Quantity),
		fieldUrgency:   string(req.Urgency),
	}
	if !req.Deadline.IsZero() {
		fields[fieldDeadlineUnixMs] = float64(req.Deadline.UnixMilli())
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode quote request: %w", err)
	}
	return s, nil
}

// DecodeRequest parses a wire request.
func DecodeRequest(s *structpb.Struct) (domain.QuoteRequest, error) {
	f := s.GetFields()
	qty, ok := intField(f, fieldQuantity)
	if !ok || qty <= 0 {
		return domain.QuoteRequest{}, fmt.Errorf("quote request: invalid %s", fieldQuantity)
	}
	req := domain.QuoteRequest{
		SessionID: f[fieldSessionID].GetStringValue(),
		ItemID:    f[fieldItemID].GetStringValue(),
		Quantity:  qty,
		Urgency:   domain.Urgency(f[fieldUrgency].GetStringValue()),
	}
	if req.ItemID == "" {
		return domain.QuoteRequest{}, fmt.Errorf("quote request: missing %s", fieldItemID)
	}
	if ms, ok := intField(f, fieldDeadlineUnixMs); ok {
		req.Deadline = time.UnixMilli(int64(ms))
	}
	return req, nil
}

// EncodeQuote converts a vendor quote to its wire form. Prices travel as
// decimal strings so that no precision is lost.
func EncodeQuote(q domain.Quote) (*structpb.Struct, error) {
	fields := map[string]any{
		fieldVendorID:     q.VendorID,
		fieldDeliveryDays: float64(q.DeliveryTimeDays),
		fieldTerms:        q.Terms,
	}
	if q.UnitPrice.Valid {
		fields[fieldUnitPrice] = q.UnitPrice.Decimal.String()
	}
	if q.TotalPrice.Valid {
		fields[fieldTotalPrice] = q.TotalPrice.Decimal.String()
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode quote: %w", err)
	}
	return s, nil
}

// DecodeQuote parses a wire quote. Missing or unparsable prices decode as
// null so that validation can reject them with a reason.
func DecodeQuote(s *structpb.Struct) *domain.Quote {
	f := s.GetFields()
	days, ok := intField(f, fieldDeliveryDays)
	if !ok {
		days = -1
	}
	return &domain.Quote{
		VendorID:         f[fieldVendorID].GetStringValue(),
		UnitPrice:        decimalField(f, fieldUnitPrice),
		TotalPrice:       decimalField(f, fieldTotalPrice),
		DeliveryTimeDays: days,
		Terms:            f[fieldTerms].GetStringValue(),
	}
}

func intField(f map[string]*structpb.Value, key string) (int, bool) {
	v, ok := f[key]
	if !ok {
		return 0, false
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		if math.IsNaN(k.NumberValue) || math.IsInf(k.NumberValue, 0) {
			return 0, false
		}
		return int(k.NumberValue), true
	case *structpb.Value_StringValue:
		n, err := strconv.Atoi(strings.TrimSpace(k.StringValue))
		return n, err == nil
	default:
		return 0, false
	}
}

func decimalField(f map[string]*structpb.Value, key string) decimal.NullDecimal {
	v, ok := f[key]
	if !ok {
		return decimal.NullDecimal{}
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		d, err := decimal.NewFromString(strings.TrimSpace(k.StringValue))
		if err != nil {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(d)
	case *structpb.Value_NumberValue:
		if math.IsNaN(k.NumberValue) || math.IsInf(k.NumberValue, 0) {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(decimal.NewFromFloat(k.NumberValue))
	default:
		return decimal.NullDecimal{}
	}
}
