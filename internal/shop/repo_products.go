package shop

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProductFilter dibangun lengkap dulu sebagai value, baru jadi satu query.
// Jangan pernah pass builder yg di-mutate antar branch.
type ProductFilter struct {
	Category string
	Search   string
	Limit    int
	Offset   int
}

func (f ProductFilter) where() (string, []any) {
	var conds []string
	var args []any
	if f.Category != "" {
		args = append(args, f.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const productCols = `id, name, description, price::text, stock, category, COALESCE(image, ''), created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock,
		&p.Category, &p.Image, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *Repo) ListProducts(ctx context.Context, f ProductFilter) ([]Product, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	where, args := f.where()
	args = append(args, limit, f.Offset)
	q := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY name LIMIT $%d OFFSET $%d`,
		productCols, where, len(args)-1, len(args))

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) GetProduct(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, E(KindNotFound, "product not found")
	}
	return p, err
}

func (r *Repo) CreateProduct(ctx context.Context, p Product) (Product, error) {
	p.ID = uuid.NewString()
	return scanProduct(r.DB.QueryRow(ctx, `
		INSERT INTO products(id, name, description, price, stock, category, image)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, NULLIF($7, ''))
		RETURNING `+productCols,
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.Category, p.Image))
}

func (r *Repo) UpdateProduct(ctx context.Context, p Product) (Product, error) {
	out, err := scanProduct(r.DB.QueryRow(ctx, `
		UPDATE products
		SET name=$2, description=$3, price=$4::numeric, stock=$5, category=$6,
		    image=NULLIF($7, ''), updated_at=now()
		WHERE id=$1
		RETURNING `+productCols,
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.Category, p.Image))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, E(KindNotFound, "product not found")
	}
	return out, err
}

func (r *Repo) DeleteProduct(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return E(KindNotFound, "product not found")
	}
	return nil
}
