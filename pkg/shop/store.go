package shop

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/printworks/voicedesk/internal/log"
)

// priceTolerance is how far a quoted unit price may deviate from the
// catalog price before the write is rejected. Quotes routinely discount
// or mark up, so the band is wide; it exists to catch order-of-magnitude
// transcription mistakes, not to enforce list price.
const priceTolerance = 0.5

const schema = `
CREATE TABLE IF NOT EXISTS customers (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE COLLATE NOCASE,
	email      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
	id               TEXT PRIMARY KEY,
	sku              TEXT NOT NULL UNIQUE COLLATE NOCASE,
	name             TEXT NOT NULL,
	unit_price_cents INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id          TEXT PRIMARY KEY,
	number      TEXT NOT NULL UNIQUE,
	kind        TEXT NOT NULL,
	customer_id TEXT NOT NULL REFERENCES customers(id),
	status      TEXT NOT NULL DEFAULT 'open',
	total_cents INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS line_items (
	id               TEXT PRIMARY KEY,
	document_id      TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	product_sku      TEXT NOT NULL DEFAULT '',
	description      TEXT NOT NULL,
	group_name       TEXT NOT NULL DEFAULT '',
	quantity         INTEGER NOT NULL,
	unit_price_cents INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS decorations (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	kind        TEXT NOT NULL,
	location    TEXT NOT NULL DEFAULT '',
	price_cents INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS counters (
	kind  TEXT NOT NULL,
	year  INTEGER NOT NULL,
	value INTEGER NOT NULL,
	PRIMARY KEY (kind, year)
);

CREATE INDEX IF NOT EXISTS idx_documents_customer ON documents(customer_id);
CREATE INDEX IF NOT EXISTS idx_line_items_document ON line_items(document_id);
`

// Store persists shop records in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	clock  func() time.Time
}

// Open opens (creating if needed) the shop database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{
		db:     db,
		logger: log.With("component", "shop"),
		clock:  time.Now,
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// FindOrCreateCustomer returns the customer with the given name, creating
// the record if it does not exist. Matching is case-insensitive. The bool
// reports whether a new record was created.
func (s *Store) FindOrCreateCustomer(ctx context.Context, name string) (*Customer, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, &ValidationError{Field: "customer name", Reason: "must not be empty"}
	}

	c := &Customer{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM customers WHERE name = ?`, name,
	).Scan(&c.ID, &c.Name, &c.Email, &c.CreatedAt)
	if err == nil {
		return c, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("query customer: %w", err)
	}

	c = &Customer{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: s.clock().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO customers (id, name, email, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.Email, c.CreatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert customer: %w", err)
	}

	s.logger.Info("customer created", "id", c.ID, "name", c.Name)
	return c, true, nil
}

// GetCustomerByName looks up a customer by exact (case-insensitive) name.
func (s *Store) GetCustomerByName(ctx context.Context, name string) (*Customer, error) {
	c := &Customer{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM customers WHERE name = ?`, strings.TrimSpace(name),
	).Scan(&c.ID, &c.Name, &c.Email, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query customer: %w", err)
	}
	return c, nil
}

// UpsertProduct inserts or updates a catalog product, keyed by SKU.
func (s *Store) UpsertProduct(ctx context.Context, p Product) error {
	if strings.TrimSpace(p.SKU) == "" {
		return &ValidationError{Field: "sku", Reason: "must not be empty"}
	}
	if p.UnitPriceCents < 0 {
		return &ValidationError{Field: "unit price", Reason: "must not be negative"}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (id, sku, name, unit_price_cents) VALUES (?, ?, ?, ?)
		 ON CONFLICT(sku) DO UPDATE SET name = excluded.name, unit_price_cents = excluded.unit_price_cents`,
		p.ID, p.SKU, p.Name, p.UnitPriceCents,
	)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// GetProduct looks up a catalog product by SKU.
func (s *Store) GetProduct(ctx context.Context, sku string) (*Product, error) {
	p := &Product{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, sku, name, unit_price_cents FROM products WHERE sku = ?`, sku,
	).Scan(&p.ID, &p.SKU, &p.Name, &p.UnitPriceCents)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return p, nil
}

// ListProducts returns the catalog ordered by SKU.
func (s *Store) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sku, name, unit_price_cents FROM products ORDER BY sku`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.UnitPriceCents); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// NextDocumentNumber allocates the next sequential number for the given
// document kind, scoped to the current year, e.g. "Q-2026-0007". Allocation
// happens inside a transaction so concurrent callers never collide.
func (s *Store) NextDocumentNumber(ctx context.Context, kind string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	number, err := s.nextNumberTx(ctx, tx, kind)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit counter: %w", err)
	}
	return number, nil
}

// nextNumberTx bumps and reads the counter inside the caller's
// transaction. Rolling the transaction back returns the number to the
// pool, so a failed document create never burns one.
func (s *Store) nextNumberTx(ctx context.Context, tx *sql.Tx, kind string) (string, error) {
	prefix, err := kindPrefix(kind)
	if err != nil {
		return "", err
	}
	year := s.clock().UTC().Year()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO counters (kind, year, value) VALUES (?, ?, 1)
		 ON CONFLICT(kind, year) DO UPDATE SET value = value + 1`,
		kind, year,
	); err != nil {
		return "", fmt.Errorf("bump counter: %w", err)
	}

	var value int
	if err := tx.QueryRowContext(ctx,
		`SELECT value FROM counters WHERE kind = ? AND year = ?`, kind, year,
	).Scan(&value); err != nil {
		return "", fmt.Errorf("read counter: %w", err)
	}

	return fmt.Sprintf("%s-%d-%04d", prefix, year, value), nil
}

// CreateDocument persists a quote or invoice with its line items and
// decorations, validates quoted prices against the catalog, and returns the
// document with its total computed.
func (s *Store) CreateDocument(ctx context.Context, params CreateDocumentParams) (*Document, error) {
	if params.Kind != KindQuote && params.Kind != KindInvoice {
		return nil, &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown document kind %q", params.Kind)}
	}
	if len(params.Items) == 0 {
		return nil, ErrNoItems
	}

	for i := range params.Items {
		if err := s.validateItem(ctx, &params.Items[i]); err != nil {
			return nil, err
		}
	}
	for _, d := range params.Decorations {
		if strings.TrimSpace(d.Kind) == "" {
			return nil, &ValidationError{Field: "decoration", Reason: "kind must not be empty"}
		}
		if d.PriceCents < 0 {
			return nil, &ValidationError{Field: "decoration", Reason: "price must not be negative"}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Number allocation shares the document transaction; if any insert
	// below fails, the rollback releases the number too.
	number, err := s.nextNumberTx(ctx, tx, params.Kind)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		ID:         uuid.NewString(),
		Number:     number,
		Kind:       params.Kind,
		CustomerID: params.CustomerID,
		Status:     "open",
		CreatedAt:  s.clock().UTC(),
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (id, number, kind, customer_id, status, total_cents, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		doc.ID, doc.Number, doc.Kind, doc.CustomerID, doc.Status, doc.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}

	for _, in := range params.Items {
		item := LineItem{
			ID:             uuid.NewString(),
			DocumentID:     doc.ID,
			ProductSKU:     in.ProductSKU,
			Description:    in.Description,
			GroupName:      in.GroupName,
			Quantity:       in.Quantity,
			UnitPriceCents: in.UnitPriceCents,
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO line_items (id, document_id, product_sku, description, group_name, quantity, unit_price_cents)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.DocumentID, item.ProductSKU, item.Description, item.GroupName, item.Quantity, item.UnitPriceCents,
		); err != nil {
			return nil, fmt.Errorf("insert line item: %w", err)
		}
		doc.Items = append(doc.Items, item)
	}

	for _, in := range params.Decorations {
		dec := Decoration{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Kind:       in.Kind,
			Location:   in.Location,
			PriceCents: in.PriceCents,
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO decorations (id, document_id, kind, location, price_cents) VALUES (?, ?, ?, ?, ?)`,
			dec.ID, dec.DocumentID, dec.Kind, dec.Location, dec.PriceCents,
		); err != nil {
			return nil, fmt.Errorf("insert decoration: %w", err)
		}
		doc.Decorations = append(doc.Decorations, dec)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit document: %w", err)
	}

	if doc.TotalCents, err = s.RecomputeTotal(ctx, doc.ID); err != nil {
		return nil, err
	}

	s.logger.Info("document created",
		"number", doc.Number,
		"kind", doc.Kind,
		"items", len(doc.Items),
		"total", Dollars(doc.TotalCents))
	return doc, nil
}

// validateItem checks a line item input and fills the unit price from the
// catalog when the caller left it at zero for a known SKU.
func (s *Store) validateItem(ctx context.Context, in *LineItemInput) error {
	if strings.TrimSpace(in.Description) == "" {
		return &ValidationError{Field: "line item", Reason: "description must not be empty"}
	}
	if in.Quantity <= 0 {
		return &ValidationError{Field: "line item", Reason: "quantity must be positive"}
	}
	if in.UnitPriceCents < 0 {
		return &ValidationError{Field: "line item", Reason: "unit price must not be negative"}
	}
	if in.ProductSKU == "" {
		return nil
	}

	p, err := s.GetProduct(ctx, in.ProductSKU)
	if errors.Is(err, ErrNotFound) {
		return &ValidationError{Field: "line item", Reason: fmt.Sprintf("unknown product %q", in.ProductSKU)}
	}
	if err != nil {
		return err
	}

	if in.UnitPriceCents == 0 {
		in.UnitPriceCents = p.UnitPriceCents
		return nil
	}
	if p.UnitPriceCents > 0 {
		diff := float64(in.UnitPriceCents-p.UnitPriceCents) / float64(p.UnitPriceCents)
		if diff > priceTolerance || diff < -priceTolerance {
			return &ValidationError{
				Field: "line item",
				Reason: fmt.Sprintf("price %s for %s is too far from catalog price %s",
					Dollars(in.UnitPriceCents), in.ProductSKU, Dollars(p.UnitPriceCents)),
			}
		}
	}
	return nil
}

// RecomputeTotal recalculates a document total from its line items and
// decorations and stores the result.
func (s *Store) RecomputeTotal(ctx context.Context, docID string) (int64, error) {
	var itemTotal, decoTotal int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(quantity * unit_price_cents), 0) FROM line_items WHERE document_id = ?`, docID,
	).Scan(&itemTotal); err != nil {
		return 0, fmt.Errorf("sum line items: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(price_cents), 0) FROM decorations WHERE document_id = ?`, docID,
	).Scan(&decoTotal); err != nil {
		return 0, fmt.Errorf("sum decorations: %w", err)
	}

	total := itemTotal + decoTotal
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET total_cents = ? WHERE id = ?`, total, docID)
	if err != nil {
		return 0, fmt.Errorf("store total: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrNotFound
	}
	return total, nil
}

// GetDocumentByNumber loads a document and its items by document number.
func (s *Store) GetDocumentByNumber(ctx context.Context, number string) (*Document, error) {
	doc := &Document{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, number, kind, customer_id, status, total_cents, created_at
		 FROM documents WHERE number = ?`, number,
	).Scan(&doc.ID, &doc.Number, &doc.Kind, &doc.CustomerID, &doc.Status, &doc.TotalCents, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, product_sku, description, group_name, quantity, unit_price_cents
		 FROM line_items WHERE document_id = ?`, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("query line items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ID, &it.DocumentID, &it.ProductSKU, &it.Description, &it.GroupName, &it.Quantity, &it.UnitPriceCents); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		doc.Items = append(doc.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	decos, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, kind, location, price_cents FROM decorations WHERE document_id = ?`, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("query decorations: %w", err)
	}
	defer decos.Close()
	for decos.Next() {
		var d Decoration
		if err := decos.Scan(&d.ID, &d.DocumentID, &d.Kind, &d.Location, &d.PriceCents); err != nil {
			return nil, fmt.Errorf("scan decoration: %w", err)
		}
		doc.Decorations = append(doc.Decorations, d)
	}
	return doc, decos.Err()
}

// ListDocumentsForCustomer returns a customer's documents, newest first.
func (s *Store) ListDocumentsForCustomer(ctx context.Context, customerID string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, number, kind, customer_id, status, total_cents, created_at
		 FROM documents WHERE customer_id = ? ORDER BY created_at DESC LIMIT ?`,
		customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Number, &d.Kind, &d.CustomerID, &d.Status, &d.TotalCents, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func kindPrefix(kind string) (string, error) {
	switch kind {
	case KindQuote:
		return "Q", nil
	case KindInvoice:
		return "INV", nil
	default:
		return "", &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown document kind %q", kind)}
	}
}
