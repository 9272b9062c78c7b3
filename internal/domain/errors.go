package domain

import "errors"

// ErrItemNotFound is returned by catalogs when an item id is unknown.
var ErrItemNotFound = errors.New("item not found")

// ErrInsufficientStock is returned when a sale exceeds the stock on hand.
var ErrInsufficientStock = errors.New("insufficient stock")
