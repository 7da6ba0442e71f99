package state

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/njoerd114/saleslive/internal/model"
)

const productColumns = `id, shop_id, name, price, gst`

const upsertProduct = `
	INSERT INTO products (` + productColumns + `)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
	    shop_id = excluded.shop_id,
	    name    = excluded.name,
	    price   = excluded.price,
	    gst     = excluded.gst`

// PutProduct inserts or replaces a product keyed by its ID.
func (s *Store) PutProduct(ctx context.Context, p *model.Product) error {
	if _, err := s.db.ExecContext(ctx, upsertProduct, p.ID, p.ShopID, p.Name, p.Price, p.GST); err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

// PutProducts upserts many products in one transaction, overwriting any
// existing rows with the same ID.
func (s *Store) PutProducts(ctx context.Context, products []*model.Product) error {
	if len(products) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, p := range products {
			if _, err := tx.ExecContext(ctx, upsertProduct, p.ID, p.ShopID, p.Name, p.Price, p.GST); err != nil {
				return fmt.Errorf("upserting product %q: %w", p.ID, err)
			}
		}
		return nil
	})
}

// GetProduct returns the product with the given ID, or (nil, nil) if absent.
func (s *Store) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	return scanProduct(row)
}

// ProductsByShop returns the products of a shop ordered by name.
func (s *Store) ProductsByShop(ctx context.Context, shopID string) ([]*model.Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products WHERE shop_id = ? ORDER BY name COLLATE NOCASE`
	rows, err := s.db.QueryContext(ctx, q, shopID)
	if err != nil {
		return nil, fmt.Errorf("querying products for shop %q: %w", shopID, err)
	}
	defer func() { _ = rows.Close() }()

	var products []*model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// DeleteProduct removes the product with the given ID.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	return nil
}

func scanProduct(sc scanner) (*model.Product, error) {
	var p model.Product
	err := sc.Scan(&p.ID, &p.ShopID, &p.Name, &p.Price, &p.GST)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("scanning product row: %w", err)
	}
	return &p, nil
}
