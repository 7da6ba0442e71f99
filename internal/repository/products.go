package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/njoerd114/saleslive/internal/model"
)

// SaveProduct inserts or replaces a product, assigning an ID when p has none.
func (r *Repository) SaveProduct(ctx context.Context, p *model.Product) (*model.Product, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	saved := *p
	if saved.ID == "" {
		saved.ID = uuid.NewString()
	}
	if err := r.store.PutProduct(ctx, &saved); err != nil {
		return nil, fmt.Errorf("saving product: %w", err)
	}
	r.remoteWrite(ctx, "save product", func(ctx context.Context) error {
		return r.remote.SetDocument(ctx, model.CollectionProducts, saved.ID, model.ProductDocument(&saved), false)
	})
	return &saved, nil
}

// GetProducts returns the shop's inventory ordered by name. The first read
// of a shop on this device restores its products from the remote store.
func (r *Repository) GetProducts(ctx context.Context, shopID string) ([]*model.Product, error) {
	if _, err := r.sync.RestoreProducts(ctx, shopID); err != nil {
		return nil, err
	}
	products, err := r.store.ProductsByShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	return orEmpty(products), nil
}

// DeleteProduct removes a product. Deleting an unknown product succeeds.
func (r *Repository) DeleteProduct(ctx context.Context, id string) error {
	if err := r.store.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("deleting product: %w", err)
	}
	r.remoteWrite(ctx, "delete product", func(ctx context.Context) error {
		return r.remote.DeleteDocument(ctx, model.CollectionProducts, id)
	})
	return nil
}
