package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/kilianp07/vending/core/model"
	corestore "github.com/kilianp07/vending/core/store"
	"github.com/kilianp07/vending/infra/logger"
)

// Config locates the database and the account seeded on first start.
type Config struct {
	Path            string `json:"path"`
	DefaultAdmin    string `json:"default_admin"`
	DefaultPassword string `json:"default_password"`
}

// SetDefaults applies the stock admin/admin123 account.
func (c *Config) SetDefaults() {
	if c.Path == "" {
		c.Path = "vending.db"
	}
	if c.DefaultAdmin == "" {
		c.DefaultAdmin = "admin"
	}
	if c.DefaultPassword == "" {
		c.DefaultPassword = "admin123"
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("store: path is required")
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS admins (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS products (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    price REAL NOT NULL,
    quantity INTEGER NOT NULL,
    image TEXT
);
CREATE TABLE IF NOT EXISTS sales (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    product_id INTEGER NOT NULL,
    quantity INTEGER NOT NULL,
    created_at TEXT NOT NULL,
    FOREIGN KEY (product_id) REFERENCES products(id)
);`

// saleTimeLayout has a fixed width so stored timestamps sort as text.
const saleTimeLayout = "2006-01-02T15:04:05.000000Z"

// SQLiteStore implements corestore.Store on SQLite.
type SQLiteStore struct {
	db  *sql.DB
	log logger.Logger
}

// NewSQLiteStore opens the database, creates the schema and seeds the
// default admin when it does not exist yet.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	cfg.SetDefaults()
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// a single connection serializes writers
	db.SetMaxOpenConns(1)
	s := &SQLiteStore{db: db, log: logger.New("store")}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if err := s.seedAdmin(cfg.DefaultAdmin, cfg.DefaultPassword); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) seedAdmin(username, password string) error {
	_, err := s.AdminByUsername(context.Background(), username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, corestore.ErrNotFound) {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash default password: %w", err)
	}
	if _, err := s.db.Exec(`INSERT INTO admins (username, password) VALUES (?, ?)`, username, string(hash)); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	s.log.Infof("default admin %q created", username)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (corestore.Product, error) {
	var p corestore.Product
	var img sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Quantity, &img); err != nil {
		return p, err
	}
	if img.Valid {
		p.Image = &img.String
	}
	return p, nil
}

// ListProducts returns every product ordered by id.
func (s *SQLiteStore) ListProducts(ctx context.Context) ([]corestore.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, price, quantity, image FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []corestore.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProduct returns one product or ErrNotFound.
func (s *SQLiteStore) GetProduct(ctx context.Context, id int) (corestore.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx,
		`SELECT id, name, price, quantity, image FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("product %d: %w", id, corestore.ErrNotFound)
	}
	return p, err
}

// CreateProduct inserts p. A zero ID lets the database pick one.
func (s *SQLiteStore) CreateProduct(ctx context.Context, p corestore.Product) (corestore.Product, error) {
	var id any
	if p.ID > 0 {
		id = p.ID
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO products (id, name, price, quantity, image) VALUES (?, ?, ?, ?, ?)`,
		id, p.Name, p.Price, p.Quantity, p.Image)
	if err != nil {
		return p, err
	}
	n, err := res.LastInsertId()
	if err != nil {
		return p, err
	}
	p.ID = int(n)
	return p, nil
}

// UpdateProduct changes the set fields and returns the updated row.
func (s *SQLiteStore) UpdateProduct(ctx context.Context, id int, u corestore.ProductUpdate) (corestore.Product, error) {
	if u.Empty() {
		return corestore.Product{}, corestore.ErrNoFields
	}
	var fields []string
	var args []any
	if u.Name != nil {
		fields = append(fields, "name = ?")
		args = append(args, *u.Name)
	}
	if u.Price != nil {
		fields = append(fields, "price = ?")
		args = append(args, *u.Price)
	}
	if u.Quantity != nil {
		fields = append(fields, "quantity = ?")
		args = append(args, *u.Quantity)
	}
	if u.Image != nil {
		fields = append(fields, "image = ?")
		args = append(args, *u.Image)
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, `UPDATE products SET `+strings.Join(fields, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return corestore.Product{}, fmt.Errorf("update product %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return corestore.Product{}, fmt.Errorf("product %d: %w", id, corestore.ErrNotFound)
	}
	return s.GetProduct(ctx, id)
}

// PlaceOrder decrements stock for lines with enough quantity left and
// records a sale per line. Nothing is written if any line has a
// non-positive quantity.
func (s *SQLiteStore) PlaceOrder(ctx context.Context, items []model.ItemRef) error {
	for _, it := range items {
		if it.Quantity <= 0 {
			return fmt.Errorf("product %d: %w", it.ID, corestore.ErrInvalidQuantity)
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	now := time.Now().UTC().Format(saleTimeLayout)
	for _, it := range items {
		res, err := tx.ExecContext(ctx,
			`UPDATE products SET quantity = quantity - ? WHERE id = ? AND quantity >= ?`,
			it.Quantity, it.ID, it.Quantity)
		if err != nil {
			return fmt.Errorf("decrement product %d: %w", it.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			s.log.Warnf("product %d: stock not decremented for quantity %d", it.ID, it.Quantity)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sales (product_id, quantity, created_at) VALUES (?, ?, ?)`,
			it.ID, it.Quantity, now); err != nil {
			return fmt.Errorf("record sale %d: %w", it.ID, err)
		}
	}
	return tx.Commit()
}

// ListSales returns sales created at or after since.
func (s *SQLiteStore) ListSales(ctx context.Context, since time.Time) ([]corestore.Sale, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, product_id, quantity, created_at FROM sales WHERE created_at >= ? ORDER BY id`,
		since.UTC().Format(saleTimeLayout))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []corestore.Sale
	for rows.Next() {
		var sale corestore.Sale
		var created string
		if err := rows.Scan(&sale.ID, &sale.ProductID, &sale.Quantity, &created); err != nil {
			return nil, err
		}
		if sale.CreatedAt, err = time.Parse(saleTimeLayout, created); err != nil {
			return nil, fmt.Errorf("sale %d: %w", sale.ID, err)
		}
		out = append(out, sale)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) adminWhere(ctx context.Context, where string, arg any) (corestore.Admin, error) {
	var a corestore.Admin
	err := s.db.QueryRowContext(ctx, `SELECT id, username, password FROM admins WHERE `+where, arg).
		Scan(&a.ID, &a.Username, &a.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return a, fmt.Errorf("admin: %w", corestore.ErrNotFound)
	}
	return a, err
}

// AdminByUsername looks an admin up by login name.
func (s *SQLiteStore) AdminByUsername(ctx context.Context, username string) (corestore.Admin, error) {
	return s.adminWhere(ctx, "username = ?", username)
}

// AdminByID looks an admin up by id.
func (s *SQLiteStore) AdminByID(ctx context.Context, id int) (corestore.Admin, error) {
	return s.adminWhere(ctx, "id = ?", id)
}

// UpdateAdmin replaces the username and password hash.
func (s *SQLiteStore) UpdateAdmin(ctx context.Context, id int, username, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE admins SET username = ?, password = ? WHERE id = ?`, username, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update admin %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("admin %d: %w", id, corestore.ErrNotFound)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
