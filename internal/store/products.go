package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const productColumns = `id, user_id, code, name, price, category, description, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.UserID, &p.Code, &p.Name, &p.Price, &p.Category,
		&p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return &p, nil
}

// CreateProduct inserts a catalog product.
func (s *PostgresStore) CreateProduct(ctx context.Context, p *Product) error {
	const q = `
INSERT INTO products (id, user_id, code, name, price, category, description)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at, updated_at;
`
	err := s.pool.QueryRow(ctx, q, p.ID, p.UserID, p.Code, p.Name, p.Price,
		p.Category, p.Description).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// ListProducts returns all products owned by the user.
func (s *PostgresStore) ListProducts(ctx context.Context, userID string) ([]Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

// GetProduct loads one owned product.
func (s *PostgresStore) GetProduct(ctx context.Context, userID, id string) (*Product, error) {
	return scanProduct(s.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 AND user_id = $2`, id, userID))
}

// UpdateProduct updates mutable product fields.
func (s *PostgresStore) UpdateProduct(ctx context.Context, p *Product) error {
	return s.execOne(ctx, `
UPDATE products SET code = $3, name = $4, price = $5, category = $6, description = $7, updated_at = NOW()
WHERE id = $1 AND user_id = $2`,
		p.ID, p.UserID, p.Code, p.Name, p.Price, p.Category, p.Description)
}

// DeleteProduct removes an owned product; variants and stock cascade.
func (s *PostgresStore) DeleteProduct(ctx context.Context, userID, id string) error {
	return s.execOne(ctx, `DELETE FROM products WHERE id = $1 AND user_id = $2`, id, userID)
}

// CreateVariant inserts a product variant.
func (s *PostgresStore) CreateVariant(ctx context.Context, v *Variant) error {
	const q = `
INSERT INTO variants (id, product_id, name, price)
VALUES ($1, $2, $3, $4)
RETURNING created_at;
`
	if err := s.pool.QueryRow(ctx, q, v.ID, v.ProductID, v.Name, v.Price).Scan(&v.CreatedAt); err != nil {
		return fmt.Errorf("insert variant: %w", err)
	}
	return nil
}

// ListVariants returns the variants of one product.
func (s *PostgresStore) ListVariants(ctx context.Context, productID string) ([]Variant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, product_id, name, price, created_at FROM variants WHERE product_id = $1 ORDER BY name`, productID)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	var out []Variant
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Name, &v.Price, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variants: %w", err)
	}
	return out, nil
}

// UpdateVariant updates a variant's name and price. The variant must hang off
// one of the caller's products.
func (s *PostgresStore) UpdateVariant(ctx context.Context, userID string, v *Variant) error {
	return s.execOne(ctx, `
UPDATE variants SET name = $3, price = $4
WHERE id = $1 AND product_id IN (SELECT id FROM products WHERE user_id = $2)`,
		v.ID, userID, v.Name, v.Price)
}

// DeleteVariant removes an owned variant; its stock rows keep a null variant.
func (s *PostgresStore) DeleteVariant(ctx context.Context, userID, id string) error {
	return s.execOne(ctx, `
DELETE FROM variants
WHERE id = $1 AND product_id IN (SELECT id FROM products WHERE user_id = $2)`, id, userID)
}

// AddStock inserts a batch of stock items, returning the inserted count.
func (s *PostgresStore) AddStock(ctx context.Context, items []StockItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	inserted := 0
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		for _, item := range items {
			_, err := tx.Exec(ctx, `
INSERT INTO stock_items (id, product_id, variant_id, data)
VALUES ($1, $2, $3, $4)`, item.ID, item.ProductID, item.VariantID, item.Data)
			if err != nil {
				return fmt.Errorf("insert stock item: %w", err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListStock returns the stock rows of one owned product.
func (s *PostgresStore) ListStock(ctx context.Context, userID, productID string) ([]StockItem, error) {
	const q = `
SELECT si.id, si.product_id, si.variant_id, si.data, si.is_sold, si.sold_at, si.created_at
FROM stock_items si
JOIN products p ON p.id = si.product_id
WHERE si.product_id = $1 AND p.user_id = $2
ORDER BY si.created_at DESC;
`
	rows, err := s.pool.Query(ctx, q, productID, userID)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	defer rows.Close()

	var out []StockItem
	for rows.Next() {
		var si StockItem
		if err := rows.Scan(&si.ID, &si.ProductID, &si.VariantID, &si.Data, &si.IsSold, &si.SoldAt, &si.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stock item: %w", err)
		}
		out = append(out, si)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock: %w", err)
	}
	return out, nil
}

// DeleteStock removes an unsold stock item owned by the user. Sold items
// are retained for transaction history.
func (s *PostgresStore) DeleteStock(ctx context.Context, userID, id string) error {
	const q = `
DELETE FROM stock_items si
USING products p
WHERE si.id = $1 AND p.id = si.product_id AND p.user_id = $2 AND NOT si.is_sold;
`
	ct, err := s.pool.Exec(ctx, q, id, userID)
	if err != nil {
		return fmt.Errorf("delete stock item: %w", err)
	}
	if ct.RowsAffected() == 0 {
		var sold bool
		err := s.pool.QueryRow(ctx, `
SELECT si.is_sold FROM stock_items si
JOIN products p ON p.id = si.product_id
WHERE si.id = $1 AND p.user_id = $2`, id, userID).Scan(&sold)
		if err == nil && sold {
			return ErrStockSold
		}
		return ErrNotFound
	}
	return nil
}

// GroupedStock aggregates the user's stock by product and variant.
func (s *PostgresStore) GroupedStock(ctx context.Context, userID string) ([]StockGroup, error) {
	const q = `
SELECT p.id, p.name, si.id, si.product_id, si.variant_id, COALESCE(v.name, ''), si.data, si.is_sold, si.sold_at, si.created_at
FROM products p
JOIN stock_items si ON si.product_id = p.id
LEFT JOIN variants v ON v.id = si.variant_id
WHERE p.user_id = $1
ORDER BY p.name, v.name NULLS FIRST, si.created_at DESC;
`
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("grouped stock: %w", err)
	}
	defer rows.Close()

	var groups []StockGroup
	for rows.Next() {
		var (
			productID, productName, variantName string
			si                                  StockItem
		)
		if err := rows.Scan(&productID, &productName, &si.ID, &si.ProductID, &si.VariantID,
			&variantName, &si.Data, &si.IsSold, &si.SoldAt, &si.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan grouped stock: %w", err)
		}
		appendStockRow(&groups, productID, productName, variantName, si)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grouped stock: %w", err)
	}
	return groups, nil
}

// appendStockRow folds one stock row into the product/variant grouping.
// Rows arrive ordered by product and variant, so only the tail groups are
// ever extended.
func appendStockRow(groups *[]StockGroup, productID, productName, variantName string, si StockItem) {
	if len(*groups) == 0 || (*groups)[len(*groups)-1].ProductID != productID {
		*groups = append(*groups, StockGroup{ProductID: productID, ProductName: productName})
	}
	group := &(*groups)[len(*groups)-1]

	var vg *StockVariantGroup
	for i := range group.Variants {
		sameNil := group.Variants[i].VariantID == nil && si.VariantID == nil
		sameID := group.Variants[i].VariantID != nil && si.VariantID != nil && *group.Variants[i].VariantID == *si.VariantID
		if sameNil || sameID {
			vg = &group.Variants[i]
			break
		}
	}
	if vg == nil {
		group.Variants = append(group.Variants, StockVariantGroup{VariantID: si.VariantID, VariantName: variantName})
		vg = &group.Variants[len(group.Variants)-1]
	}

	if si.IsSold {
		vg.Sold++
	} else {
		vg.Available++
	}
	vg.Items = append(vg.Items, si)
}
