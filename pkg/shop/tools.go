package shop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Tool is a shop operation the assistant can invoke during conversation.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
	Handler     func(args map[string]interface{}) (string, error)
}

// ToolsConfig holds dependencies for shop tools.
type ToolsConfig struct {
	Store *Store

	// Timeout bounds each tool's database work. Zero means 10 seconds.
	Timeout time.Duration
}

// Tools returns the shop tools the assistant can call.
func Tools(cfg ToolsConfig) []Tool {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return []Tool{
		{
			Name: "create_quote",
			Description: `Create a quote for a customer. Use when someone asks to quote a print job, e.g. "quote 50 shirts for Acme with a front print". Each item needs a description, quantity and unit price in dollars; items for known catalog products can pass the product SKU instead of a price. Decorations (screen print, embroidery, DTG) are listed separately with their location and price.`,
			Parameters: map[string]interface{}{
				"customer_name": map[string]interface{}{
					"type":        "string",
					"description": "Customer the quote is for; created if unknown",
				},
				"items": map[string]interface{}{
					"type":        "array",
					"description": "Line items to quote",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"description": map[string]interface{}{"type": "string"},
							"quantity":    map[string]interface{}{"type": "integer"},
							"unit_price":  map[string]interface{}{"type": "number", "description": "Unit price in dollars; omit to use the catalog price"},
							"product_sku": map[string]interface{}{"type": "string", "description": "Catalog SKU, if known"},
							"group":       map[string]interface{}{"type": "string", "description": "Optional group label, e.g. garments or fees"},
						},
						"required": []interface{}{"description", "quantity"},
					},
				},
				"decorations": map[string]interface{}{
					"type":        "array",
					"description": "Print or embroidery work on the job",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"kind":     map[string]interface{}{"type": "string", "description": "e.g. screen_print, embroidery, dtg"},
							"location": map[string]interface{}{"type": "string", "description": "e.g. front chest, full back"},
							"price":    map[string]interface{}{"type": "number", "description": "Price in dollars"},
						},
						"required": []interface{}{"kind"},
					},
				},
			},
			Handler: createDocumentHandler(cfg.Store, KindQuote, timeout),
		},

		{
			Name: "create_invoice",
			Description: `Create an invoice for a customer. Same shape as create_quote; use when the customer has confirmed the job and wants to be billed.`,
			Parameters: map[string]interface{}{
				"customer_name": map[string]interface{}{
					"type":        "string",
					"description": "Customer the invoice is for; created if unknown",
				},
				"items": map[string]interface{}{
					"type":        "array",
					"description": "Line items to bill",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"description": map[string]interface{}{"type": "string"},
							"quantity":    map[string]interface{}{"type": "integer"},
							"unit_price":  map[string]interface{}{"type": "number"},
							"product_sku": map[string]interface{}{"type": "string"},
							"group":       map[string]interface{}{"type": "string"},
						},
						"required": []interface{}{"description", "quantity"},
					},
				},
				"decorations": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"kind":     map[string]interface{}{"type": "string"},
							"location": map[string]interface{}{"type": "string"},
							"price":    map[string]interface{}{"type": "number"},
						},
						"required": []interface{}{"kind"},
					},
				},
			},
			Handler: createDocumentHandler(cfg.Store, KindInvoice, timeout),
		},

		{
			Name: "lookup_customer",
			Description: `Look up a customer and their recent quotes and invoices. Use when someone asks "what did we quote Acme" or "does Acme have open invoices".`,
			Parameters: map[string]interface{}{
				"customer_name": map[string]interface{}{
					"type":        "string",
					"description": "Customer name to look up",
				},
			},
			Handler: func(args map[string]interface{}) (string, error) {
				name, _ := args["customer_name"].(string)
				if strings.TrimSpace(name) == "" {
					return "Which customer should I look up?", nil
				}

				ctx, cancel := context.WithTimeout(context.Background(), timeout)
				defer cancel()

				customer, err := cfg.Store.GetCustomerByName(ctx, name)
				if errors.Is(err, ErrNotFound) {
					return fmt.Sprintf("I don't have a customer named %s on file.", name), nil
				}
				if err != nil {
					return fmt.Sprintf("Customer lookup failed: %v", err), nil
				}

				docs, err := cfg.Store.ListDocumentsForCustomer(ctx, customer.ID, 5)
				if err != nil {
					return fmt.Sprintf("Document lookup failed: %v", err), nil
				}
				if len(docs) == 0 {
					return fmt.Sprintf("%s is on file but has no quotes or invoices yet.", customer.Name), nil
				}

				var b strings.Builder
				fmt.Fprintf(&b, "%s has %d recent document(s): ", customer.Name, len(docs))
				for i, d := range docs {
					if i > 0 {
						b.WriteString("; ")
					}
					fmt.Fprintf(&b, "%s %s for $%s (%s)", d.Kind, d.Number, Dollars(d.TotalCents), d.Status)
				}
				return b.String(), nil
			},
		},

		{
			Name: "get_document",
			Description: `Read back a quote or invoice by its number, e.g. "what's on quote Q-2026-0012".`,
			Parameters: map[string]interface{}{
				"number": map[string]interface{}{
					"type":        "string",
					"description": "Document number, e.g. Q-2026-0012 or INV-2026-0003",
				},
			},
			Handler: func(args map[string]interface{}) (string, error) {
				number, _ := args["number"].(string)
				if strings.TrimSpace(number) == "" {
					return "Which document number should I read back?", nil
				}

				ctx, cancel := context.WithTimeout(context.Background(), timeout)
				defer cancel()

				doc, err := cfg.Store.GetDocumentByNumber(ctx, strings.ToUpper(strings.TrimSpace(number)))
				if errors.Is(err, ErrNotFound) {
					return fmt.Sprintf("I couldn't find a document numbered %s.", number), nil
				}
				if err != nil {
					return fmt.Sprintf("Document lookup failed: %v", err), nil
				}

				var b strings.Builder
				fmt.Fprintf(&b, "%s %s totals $%s with %d item(s): ", doc.Kind, doc.Number, Dollars(doc.TotalCents), len(doc.Items))
				for i, it := range doc.Items {
					if i > 0 {
						b.WriteString("; ")
					}
					fmt.Fprintf(&b, "%dx %s at $%s", it.Quantity, it.Description, Dollars(it.UnitPriceCents))
				}
				for _, d := range doc.Decorations {
					fmt.Fprintf(&b, "; %s %s at $%s", d.Kind, d.Location, Dollars(d.PriceCents))
				}
				return b.String(), nil
			},
		},

		{
			Name:        "list_products",
			Description: `List the product catalog with prices. Use when someone asks what blanks or services are available, or needs a price to build a quote.`,
			Parameters:  map[string]interface{}{},
			Handler: func(args map[string]interface{}) (string, error) {
				ctx, cancel := context.WithTimeout(context.Background(), timeout)
				defer cancel()

				products, err := cfg.Store.ListProducts(ctx)
				if err != nil {
					return fmt.Sprintf("Catalog lookup failed: %v", err), nil
				}
				if len(products) == 0 {
					return "The catalog is empty.", nil
				}

				var b strings.Builder
				for i, p := range products {
					if i > 0 {
						b.WriteString("; ")
					}
					fmt.Fprintf(&b, "%s (%s) $%s", p.Name, p.SKU, Dollars(p.UnitPriceCents))
				}
				return b.String(), nil
			},
		},
	}
}

func createDocumentHandler(store *Store, kind string, timeout time.Duration) func(map[string]interface{}) (string, error) {
	return func(args map[string]interface{}) (string, error) {
		name, _ := args["customer_name"].(string)
		if strings.TrimSpace(name) == "" {
			return fmt.Sprintf("I need a customer name to create the %s.", kind), nil
		}

		params := CreateDocumentParams{Kind: kind}
		if raw, ok := args["items"].([]interface{}); ok {
			for _, entry := range raw {
				m, ok := entry.(map[string]interface{})
				if !ok {
					continue
				}
				item := LineItemInput{
					Description: stringArg(m, "description"),
					GroupName:   stringArg(m, "group"),
					ProductSKU:  stringArg(m, "product_sku"),
					Quantity:    intArg(m, "quantity"),
				}
				if price, ok := m["unit_price"].(float64); ok {
					item.UnitPriceCents = Cents(price)
				}
				params.Items = append(params.Items, item)
			}
		}
		if raw, ok := args["decorations"].([]interface{}); ok {
			for _, entry := range raw {
				m, ok := entry.(map[string]interface{})
				if !ok {
					continue
				}
				dec := DecorationInput{
					Kind:     stringArg(m, "kind"),
					Location: stringArg(m, "location"),
				}
				if price, ok := m["price"].(float64); ok {
					dec.PriceCents = Cents(price)
				}
				params.Decorations = append(params.Decorations, dec)
			}
		}
		if len(params.Items) == 0 {
			return fmt.Sprintf("I need at least one line item to create the %s.", kind), nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		customer, created, err := store.FindOrCreateCustomer(ctx, name)
		if err != nil {
			return fmt.Sprintf("Couldn't resolve the customer: %v", err), nil
		}
		params.CustomerID = customer.ID

		doc, err := store.CreateDocument(ctx, params)
		var verr *ValidationError
		if errors.As(err, &verr) {
			return fmt.Sprintf("That doesn't look right: %s.", verr.Reason), nil
		}
		if err != nil {
			return fmt.Sprintf("Failed to create the %s: %v", kind, err), nil
		}

		msg := fmt.Sprintf("Created %s %s for %s totaling $%s.", kind, doc.Number, customer.Name, Dollars(doc.TotalCents))
		if created {
			msg += fmt.Sprintf(" %s was added as a new customer.", customer.Name)
		}
		return msg, nil
	}
}

func stringArg(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func intArg(m map[string]interface{}, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
