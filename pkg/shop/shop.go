// Package shop is the print-shop business layer behind the voice assistant.
//
// It owns customers, the product catalog, and quote/invoice documents with
// grouped line items and decoration records, persisted in SQLite. The voice
// pipeline reaches it exclusively through the tools in Tools.
package shop

import (
	"errors"
	"fmt"
	"time"
)

// Document kinds.
const (
	KindQuote   = "quote"
	KindInvoice = "invoice"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("shop: not found")

	// ErrNoItems is returned when a document is created without line items.
	ErrNoItems = errors.New("shop: document requires at least one line item")
)

// ValidationError reports a rejected write with a human-readable reason.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("shop: invalid %s: %s", e.Field, e.Reason)
}

// Customer is a print-shop customer record.
type Customer struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// Product is a catalog entry with the reference unit price.
type Product struct {
	ID             string
	SKU            string
	Name           string
	UnitPriceCents int64
}

// LineItem is one priced position on a document. Items carry an optional
// group label so garments, setup fees and shipping can be presented together.
type LineItem struct {
	ID             string
	DocumentID     string
	ProductSKU     string
	Description    string
	GroupName      string
	Quantity       int
	UnitPriceCents int64
}

// Decoration is a print/embroidery record attached to a document.
type Decoration struct {
	ID         string
	DocumentID string
	Kind       string
	Location   string
	PriceCents int64
}

// Document is a quote or invoice with its computed total.
type Document struct {
	ID          string
	Number      string
	Kind        string
	CustomerID  string
	Status      string
	TotalCents  int64
	CreatedAt   time.Time
	Items       []LineItem
	Decorations []Decoration
}

// LineItemInput describes a line item to persist.
type LineItemInput struct {
	ProductSKU     string
	Description    string
	GroupName      string
	Quantity       int
	UnitPriceCents int64
}

// DecorationInput describes a decoration record to persist.
type DecorationInput struct {
	Kind       string
	Location   string
	PriceCents int64
}

// CreateDocumentParams bundles everything needed to create a document.
type CreateDocumentParams struct {
	Kind        string
	CustomerID  string
	Items       []LineItemInput
	Decorations []DecorationInput
}

// Cents converts a decimal currency amount to cents.
func Cents(amount float64) int64 {
	if amount >= 0 {
		return int64(amount*100 + 0.5)
	}
	return int64(amount*100 - 0.5)
}

// Dollars formats cents as a decimal currency string.
func Dollars(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
