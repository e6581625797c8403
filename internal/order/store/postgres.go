package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/James-Hooson/Bonsai-Biz/internal/order/domain"
	"github.com/James-Hooson/Bonsai-Biz/pkg/contracts"
	"github.com/James-Hooson/Bonsai-Biz/pkg/outbox"
)

const uniqueViolation = "23505"

//go:embed schema.sql
var schemaSQL string

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

type Postgres struct {
	db    DB
	topic string
}

// NewPostgres returns a Store over db. Completed orders are announced on topic
// through the outbox table.
func NewPostgres(db DB, topic string) *Postgres {
	if topic == "" {
		topic = contracts.DefaultTopic
	}
	return &Postgres{db: db, topic: topic}
}

func (s *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.db.Ping(ctx)
}

func (s *Postgres) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

const productColumns = `id, name, description, price::text, image, main_category, skill_level, rating, in_stock, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p     domain.Product
		id    string
		price string
	)
	if err := row.Scan(&id, &p.Name, &p.Description, &price, &p.Image, &p.Category, &p.SkillLevel, &p.Rating, &p.InStock, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("product %s price: %w", id, err)
	}
	p.ID = domain.ProductID(id)
	p.Price = d
	return p, nil
}

func (s *Postgres) GetProduct(ctx context.Context, id domain.ProductID) (domain.Product, error) {
	p, err := scanProduct(s.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, err
}

func (s *Postgres) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	if p.ID == "" {
		p.ID = domain.ProductID(uuid.NewString())
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO products(id, name, description, price, image, main_category, skill_level, rating, in_stock)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		string(p.ID), p.Name, p.Description, p.Price.String(), p.Image, p.Category, p.SkillLevel, p.Rating, p.InStock,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.Product{}, domain.ErrProductExists
	}
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func (s *Postgres) UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	err := s.db.QueryRow(ctx,
		`UPDATE products SET name=$2, description=$3, price=$4::numeric, image=$5, main_category=$6,
			skill_level=$7, rating=$8, in_stock=$9, updated_at=now()
		WHERE id=$1
		RETURNING created_at, updated_at`,
		string(p.ID), p.Name, p.Description, p.Price.String(), p.Image, p.Category, p.SkillLevel, p.Rating, p.InStock,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func (s *Postgres) DeleteProduct(ctx context.Context, id domain.ProductID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM products WHERE id=$1`, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

const orderColumns = `id, status, COALESCE(customer_email, ''), items, COALESCE(payment_session_id, ''), COALESCE(payment_transaction_id, ''), created_at, updated_at,
	COALESCE(payment_session_url, ''), COALESCE(idempotency_key, '')`

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		o      domain.Order
		id     string
		status string
		items  []byte
	)
	if err := row.Scan(&id, &status, &o.CustomerEmail, &items, &o.PaymentSessionID, &o.PaymentTransactionID, &o.CreatedAt, &o.UpdatedAt,
		&o.PaymentSessionURL, &o.IdempotencyKey); err != nil {
		return domain.Order{}, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return domain.Order{}, fmt.Errorf("order %s items: %w", id, err)
	}
	o.ID = domain.OrderID(id)
	o.Status = domain.OrderStatus(status)
	return o, nil
}

func (s *Postgres) CreateOrder(ctx context.Context, in NewOrder) (domain.Order, error) {
	if len(in.Items) == 0 {
		return domain.Order{}, errors.New("order must have at least one item")
	}
	items, err := json.Marshal(in.Items)
	if err != nil {
		return domain.Order{}, err
	}
	o := domain.Order{
		ID:             domain.OrderID(uuid.NewString()),
		Status:         domain.OrderStatusPending,
		CustomerEmail:  in.CustomerEmail,
		Items:          append([]domain.OrderItem(nil), in.Items...),
		IdempotencyKey: in.IdempotencyKey,
	}
	err = s.db.QueryRow(ctx,
		`INSERT INTO orders(id, status, customer_email, items, idempotency_key)
		VALUES ($1, 'pending', NULLIF($2, ''), $3, NULLIF($4, ''))
		RETURNING created_at, updated_at`,
		string(o.ID), in.CustomerEmail, string(items), in.IdempotencyKey,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.Order{}, domain.ErrDuplicateIdempotencyKey
	}
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (s *Postgres) GetOrder(ctx context.Context, id domain.OrderID) (domain.Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, err
}

func (s *Postgres) GetOrderByIdempotencyKey(ctx context.Context, key string) (domain.Order, error) {
	if key == "" {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	o, err := scanOrder(s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE idempotency_key=$1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, err
}

func (s *Postgres) AttachSession(ctx context.Context, id domain.OrderID, sessionID, sessionURL string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE orders SET payment_session_id=$2, payment_session_url=NULLIF($3, ''), updated_at=now() WHERE id=$1`,
		string(id), sessionID, sessionURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (s *Postgres) CompleteOrder(ctx context.Context, id domain.OrderID, c Completion) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE orders SET status='completed', payment_transaction_id=$2,
			customer_email=COALESCE(NULLIF(customer_email, ''), NULLIF($3, '')), updated_at=now()
		WHERE id=$1 AND status='pending'`,
		string(id), c.TransactionID, c.CustomerEmail,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, string(id)).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrOrderNotFound
		}
		return false, err
	}

	evt := contracts.NewEvent(contracts.EventOrderCompleted, string(id), map[string]any{
		"payment_transaction_id": c.TransactionID,
	})
	if err := outbox.Insert(ctx, tx, s.topic, evt); err != nil {
		return false, fmt.Errorf("outbox insert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Postgres) ListAbandoned(ctx context.Context, olderThan time.Time) ([]domain.Order, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		WHERE status='pending' AND payment_session_id IS NULL AND created_at < $1
		ORDER BY created_at`, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
