// Package catalog loads the vendor directory and item catalog from YAML and
// seeds them into the store.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
)

// EnvPrefix selects environment overrides for catalog defaults, e.g.
// VERICHAIN_CATALOG_DEFAULTS__TERMS=net 45 sets defaults.terms.
const EnvPrefix = "VERICHAIN_CATALOG_"

// Defaults fill in vendor fields the catalog leaves empty.
type Defaults struct {
	Terms            string  `koanf:"terms"`
	FulfillmentRate  float64 `koanf:"fulfillment_rate"`
	PriceVolatility  float64 `koanf:"price_volatility"`
	BaseDeliveryDays int     `koanf:"base_delivery_days"`
}

// VendorEntry is a vendor as written in the catalog file. Prices are
// strings so they parse straight into decimals.
type VendorEntry struct {
	ID               string   `koanf:"id"`
	Name             string   `koanf:"name"`
	Category         string   `koanf:"category"`
	Endpoint         string   `koanf:"endpoint"`
	Active           *bool    `koanf:"active"`
	FulfillmentRate  *float64 `koanf:"fulfillment_rate"`
	PriceVolatility  *float64 `koanf:"price_volatility"`
	BaseUnitPrice    string   `koanf:"base_unit_price"`
	BaseDeliveryDays int      `koanf:"base_delivery_days"`
	Terms            string   `koanf:"terms"`
}

// File is the top-level catalog document.
type File struct {
	Defaults Defaults      `koanf:"defaults"`
	Vendors  []VendorEntry `koanf:"vendors"`
	Items    []domain.Item `koanf:"items"`
}

// Catalog is the validated catalog.
type Catalog struct {
	Vendors []domain.Vendor
	Items   []domain.Item
}

// Load reads the catalog YAML at path, then overlays environment overrides
// for the defaults section.
func Load(path string) (*Catalog, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	var f File
	if err := k.Unmarshal("", &f); err != nil {
		return nil, fmt.Errorf("unmarshalling catalog: %w", err)
	}
	return f.Build()
}

// LoadIfExists is Load that returns an empty catalog when path does not exist.
func LoadIfExists(path string) (*Catalog, error) {
	if path == "" {
		return &Catalog{}, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &Catalog{}, nil
		}
		return nil, fmt.Errorf("accessing catalog %s: %w", path, err)
	}
	return Load(path)
}

// Build validates the document and applies defaults.
func (f *File) Build() (*Catalog, error) {
	var errs []error
	c := &Catalog{}

	seen := make(map[string]bool)
	for i, e := range f.Vendors {
		v, err := e.toVendor(f.Defaults)
		if err != nil {
			errs = append(errs, fmt.Errorf("vendors[%d]: %w", i, err))
			continue
		}
		if seen[v.ID] {
			errs = append(errs, fmt.Errorf("vendors[%d]: duplicate id %q", i, v.ID))
			continue
		}
		seen[v.ID] = true
		c.Vendors = append(c.Vendors, v)
	}

	seen = make(map[string]bool)
	for i, item := range f.Items {
		if err := validateItem(item); err != nil {
			errs = append(errs, fmt.Errorf("items[%d]: %w", i, err))
			continue
		}
		if seen[item.ID] {
			errs = append(errs, fmt.Errorf("items[%d]: duplicate id %q", i, item.ID))
			continue
		}
		seen[item.ID] = true
		c.Items = append(c.Items, item)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return c, nil
}

func (e VendorEntry) toVendor(d Defaults) (domain.Vendor, error) {
	if e.ID == "" {
		return domain.Vendor{}, errors.New("id is required")
	}
	if e.Category == "" {
		return domain.Vendor{}, fmt.Errorf("vendor %s: category is required", e.ID)
	}

	v := domain.Vendor{
		ID:               e.ID,
		Name:             e.Name,
		Category:         e.Category,
		Endpoint:         e.Endpoint,
		Active:           true,
		FulfillmentRate:  d.FulfillmentRate,
		PriceVolatility:  d.PriceVolatility,
		BaseDeliveryDays: e.BaseDeliveryDays,
		Terms:            e.Terms,
	}
	if v.Name == "" {
		v.Name = e.ID
	}
	if e.Active != nil {
		v.Active = *e.Active
	}
	if e.FulfillmentRate != nil {
		v.FulfillmentRate = *e.FulfillmentRate
	}
	if e.PriceVolatility != nil {
		v.PriceVolatility = *e.PriceVolatility
	}
	if v.BaseDeliveryDays == 0 {
		v.BaseDeliveryDays = d.BaseDeliveryDays
	}
	if v.Terms == "" {
		v.Terms = d.Terms
	}

	if v.FulfillmentRate < 0 || v.FulfillmentRate > 1 {
		return v, fmt.Errorf("vendor %s: fulfillment_rate must be within [0,1]", e.ID)
	}
	if v.PriceVolatility < 0 || v.PriceVolatility > 1 {
		return v, fmt.Errorf("vendor %s: price_volatility must be within [0,1]", e.ID)
	}
	if v.BaseDeliveryDays < 0 {
		return v, fmt.Errorf("vendor %s: base_delivery_days must be non-negative", e.ID)
	}

	if e.BaseUnitPrice != "" {
		price, err := decimal.NewFromString(strings.TrimSpace(e.BaseUnitPrice))
		if err != nil {
			return v, fmt.Errorf("vendor %s: base_unit_price %q: %w", e.ID, e.BaseUnitPrice, err)
		}
		if !price.IsPositive() {
			return v, fmt.Errorf("vendor %s: base_unit_price must be positive", e.ID)
		}
		v.BaseUnitPrice = price
	} else if v.IsSimulated() {
		return v, fmt.Errorf("vendor %s: simulated vendors need a base_unit_price", e.ID)
	}
	return v, nil
}

func validateItem(item domain.Item) error {
	switch {
	case item.ID == "":
		return errors.New("id is required")
	case item.Category == "":
		return fmt.Errorf("item %s: category is required", item.ID)
	case item.CurrentStock < 0:
		return fmt.Errorf("item %s: current_stock must be non-negative", item.ID)
	case item.ReorderLevel < 0:
		return fmt.Errorf("item %s: reorder_level must be non-negative", item.ID)
	case item.MaxStockLevel < item.ReorderLevel:
		return fmt.Errorf("item %s: max_stock_level must be at least reorder_level", item.ID)
	case item.MinReorderBatch < 0:
		return fmt.Errorf("item %s: min_reorder_batch must be non-negative", item.ID)
	}
	return nil
}

// Seeder is the store surface the catalog writes to.
type Seeder interface {
	UpsertVendor(ctx context.Context, v domain.Vendor) error
	UpsertItem(ctx context.Context, item domain.Item) error
	GetItem(ctx context.Context, itemID string) (*domain.Item, error)
}

// Seed writes the catalog into the store. Existing items keep their current
// stock level; only their metadata and thresholds are refreshed.
func (c *Catalog) Seed(ctx context.Context, s Seeder) error {
	for _, v := range c.Vendors {
		if err := s.UpsertVendor(ctx, v); err != nil {
			return fmt.Errorf("seed vendor %s: %w", v.ID, err)
		}
	}
	for _, item := range c.Items {
		existing, err := s.GetItem(ctx, item.ID)
		switch {
		case err == nil:
			item.CurrentStock = existing.CurrentStock
		case !errors.Is(err, domain.ErrItemNotFound):
			return fmt.Errorf("seed item %s: %w", item.ID, err)
		}
		if err := s.UpsertItem(ctx, item); err != nil {
			return fmt.Errorf("seed item %s: %w", item.ID, err)
		}
	}
	return nil
}
