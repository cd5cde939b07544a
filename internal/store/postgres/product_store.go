package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

// ProductStore implements domain.ProductStore using PostgreSQL.
type ProductStore struct {
	pool *pgxpool.Pool
}

// NewProductStore creates a new ProductStore backed by the given pool.
func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

const productColumns = `id, seller_id, title, description, category, condition, rarity, photos,
	price, status, highest_bid, lowest_ask, bid_count, verification_status,
	verification_notes, view_count, created_at, updated_at`

func (s *ProductStore) Create(ctx context.Context, p domain.Product) error {
	const query = `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	photos := p.Photos
	if photos == nil {
		photos = []string{}
	}
	_, err := conn(ctx, s.pool).Exec(ctx, query,
		p.ID, p.SellerID, p.Title, p.Description, p.Category, p.Condition, p.Rarity, photos,
		p.Price, string(p.Status), nullDecimal(p.HighestBid), nullDecimal(p.LowestAsk), p.BidCount,
		p.VerificationStatus, p.VerificationNotes, p.ViewCount, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return wrap("create product "+p.ID, err)
	}
	return nil
}

// GetByID locks the row when called inside a transaction.
func (s *ProductStore) GetByID(ctx context.Context, id string) (domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if txFromContext(ctx) != nil {
		query += ` FOR UPDATE`
	}

	p, err := scanProduct(conn(ctx, s.pool).QueryRow(ctx, query, id))
	if err != nil {
		return domain.Product{}, wrap("get product "+id, err)
	}
	return p, nil
}

func (s *ProductStore) Update(ctx context.Context, p domain.Product) error {
	const query = `
		UPDATE products
		SET status = $2, highest_bid = $3, lowest_ask = $4, bid_count = $5, updated_at = $6
		WHERE id = $1`

	tag, err := conn(ctx, s.pool).Exec(ctx, query,
		p.ID, string(p.Status), nullDecimal(p.HighestBid), nullDecimal(p.LowestAsk), p.BidCount, p.UpdatedAt,
	)
	if err != nil {
		return wrap("update product "+p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update product %s: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}

func (s *ProductStore) List(ctx context.Context, f domain.ProductFilter, opts domain.ListOpts) ([]domain.Product, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.SellerID != "" {
		add("seller_id = $%d", f.SellerID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		add("title ILIKE $%d", "%"+escapeLike(q)+"%")
	}
	if opts.Since != nil {
		add("created_at >= $%d", *opts.Since)
	}
	if opts.Until != nil {
		add("created_at <= $%d", *opts.Until)
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	query, args = paginate(query, args, opts)

	rows, err := conn(ctx, s.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, wrap("list products", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, wrap("scan product", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list products rows", err)
	}
	return out, nil
}

func (s *ProductStore) IncrementViews(ctx context.Context, id string) error {
	tag, err := conn(ctx, s.pool).Exec(ctx, `UPDATE products SET view_count = view_count + 1 WHERE id = $1`, id)
	if err != nil {
		return wrap("increment views "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: increment views %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var (
		p          domain.Product
		status     string
		highestBid decimal.NullDecimal
		lowestAsk  decimal.NullDecimal
	)
	err := row.Scan(
		&p.ID, &p.SellerID, &p.Title, &p.Description, &p.Category, &p.Condition, &p.Rarity, &p.Photos,
		&p.Price, &status, &highestBid, &lowestAsk, &p.BidCount, &p.VerificationStatus,
		&p.VerificationNotes, &p.ViewCount, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Product{}, err
	}
	p.Status = domain.ProductStatus(status)
	p.HighestBid = decimalPtr(highestBid)
	p.LowestAsk = decimalPtr(lowestAsk)
	return p, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func decimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// paginate appends LIMIT/OFFSET placeholders after the existing args.
func paginate(query string, args []any, opts domain.ListOpts) (string, []any) {
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

var _ domain.ProductStore = (*ProductStore)(nil)
