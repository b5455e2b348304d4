package shop

import (
	"context"
	"strings"
	"testing"
)

func toolByName(t *testing.T, tools []Tool, name string) Tool {
	t.Helper()
	for _, tool := range tools {
		if tool.Name == name {
			return tool
		}
	}
	t.Fatalf("tool %q not registered", name)
	return Tool{}
}

func TestCreateQuoteTool(t *testing.T) {
	store := testStore(t)
	tools := Tools(ToolsConfig{Store: store})
	create := toolByName(t, tools, "create_quote")

	t.Run("creates document with items and decorations", func(t *testing.T) {
		result, err := create.Handler(map[string]interface{}{
			"customer_name": "Acme",
			"items": []interface{}{
				map[string]interface{}{
					"description": "Basic tee",
					"quantity":    float64(50),
					"unit_price":  8.50,
					"group":       "garments",
				},
			},
			"decorations": []interface{}{
				map[string]interface{}{
					"kind":     "screen_print",
					"location": "front chest",
					"price":    150.0,
				},
			},
		})
		if err != nil {
			t.Fatalf("Handler() error = %v", err)
		}
		if !strings.Contains(result, "Q-") {
			t.Errorf("result missing document number: %q", result)
		}
		if !strings.Contains(result, "575.00") {
			t.Errorf("result missing total: %q", result)
		}
		if !strings.Contains(result, "new customer") {
			t.Errorf("result should mention the new customer: %q", result)
		}
	})

	t.Run("missing customer name", func(t *testing.T) {
		result, err := create.Handler(map[string]interface{}{
			"items": []interface{}{
				map[string]interface{}{"description": "Tee", "quantity": float64(1), "unit_price": 1.0},
			},
		})
		if err != nil {
			t.Fatalf("Handler() error = %v", err)
		}
		if !strings.Contains(result, "customer name") {
			t.Errorf("result = %q", result)
		}
	})

	t.Run("missing items", func(t *testing.T) {
		result, err := create.Handler(map[string]interface{}{"customer_name": "Acme"})
		if err != nil {
			t.Fatalf("Handler() error = %v", err)
		}
		if !strings.Contains(result, "line item") {
			t.Errorf("result = %q", result)
		}
	})

	t.Run("validation failure reads conversationally", func(t *testing.T) {
		seedTee(t, store)
		result, err := create.Handler(map[string]interface{}{
			"customer_name": "Acme",
			"items": []interface{}{
				map[string]interface{}{
					"description": "Basic tee",
					"quantity":    float64(10),
					"unit_price":  100.0,
					"product_sku": "TEE-BASIC",
				},
			},
		})
		if err != nil {
			t.Fatalf("Handler() error = %v", err)
		}
		if !strings.Contains(result, "doesn't look right") {
			t.Errorf("result = %q", result)
		}
	})
}

func TestLookupAndReadbackTools(t *testing.T) {
	store := testStore(t)
	tools := Tools(ToolsConfig{Store: store})
	ctx := context.Background()

	customer, _, err := store.FindOrCreateCustomer(ctx, "Acme")
	if err != nil {
		t.Fatalf("FindOrCreateCustomer() error = %v", err)
	}
	doc, err := store.CreateDocument(ctx, CreateDocumentParams{
		Kind:       KindQuote,
		CustomerID: customer.ID,
		Items:      []LineItemInput{{Description: "Hoodie", Quantity: 20, UnitPriceCents: 2800}},
	})
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}

	t.Run("lookup_customer", func(t *testing.T) {
		lookup := toolByName(t, tools, "lookup_customer")
		result, err := lookup.Handler(map[string]interface{}{"customer_name": "Acme"})
		if err != nil {
			t.Fatalf("Handler() error = %v", err)
		}
		if !strings.Contains(result, doc.Number) {
			t.Errorf("result missing %s: %q", doc.Number, result)
		}
	})

	t.Run("lookup_customer unknown", func(t *testing.T) {
		lookup := toolByName(t, tools, "lookup_customer")
		result, err := lookup.Handler(map[string]interface{}{"customer_name": "Ghost LLC"})
		if err != nil {
			t.Fatalf("Handler() error = %v", err)
		}
		if !strings.Contains(result, "don't have") {
			t.Errorf("result = %q", result)
		}
	})

	t.Run("get_document", func(t *testing.T) {
		get := toolByName(t, tools, "get_document")
		result, err := get.Handler(map[string]interface{}{"number": strings.ToLower(doc.Number)})
		if err != nil {
			t.Fatalf("Handler() error = %v", err)
		}
		if !strings.Contains(result, "Hoodie") || !strings.Contains(result, "560.00") {
			t.Errorf("result = %q", result)
		}
	})

	t.Run("list_products", func(t *testing.T) {
		seedTee(t, store)
		list := toolByName(t, tools, "list_products")
		result, err := list.Handler(map[string]interface{}{})
		if err != nil {
			t.Fatalf("Handler() error = %v", err)
		}
		if !strings.Contains(result, "TEE-BASIC") {
			t.Errorf("result = %q", result)
		}
	})
}
