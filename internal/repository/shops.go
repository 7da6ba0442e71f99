package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/njoerd114/saleslive/internal/model"
)

// CreateShop stores a new shop owned by ownerID.
func (r *Repository) CreateShop(ctx context.Context, name, ownerID string) (*model.Shop, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &model.ValidationError{Field: "shopName", Reason: "is required"}
	}
	shop := &model.Shop{
		ID:        uuid.NewString(),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: r.now(),
	}
	if err := r.store.PutShop(ctx, shop); err != nil {
		return nil, fmt.Errorf("creating shop: %w", err)
	}
	r.remoteWrite(ctx, "create shop", func(ctx context.Context) error {
		return r.remote.SetDocument(ctx, model.CollectionShops, shop.ID, model.ShopDocument(shop), false)
	})
	return shop, nil
}

// GetShopByID returns the shop, fetching it from the remote store when it is
// not known locally. It returns (nil, nil) if neither store has it.
func (r *Repository) GetShopByID(ctx context.Context, shopID string) (*model.Shop, error) {
	shop, err := r.store.GetShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if shop != nil {
		return shop, nil
	}
	return r.sync.RestoreShop(ctx, shopID)
}

// UpdateShop merges patch into the shop. A shop missing locally is created
// as a shell named [model.DefaultShopName] with no owner before the patch is
// applied. Only the patched fields are sent to the remote store.
func (r *Repository) UpdateShop(ctx context.Context, shopID string, patch model.ShopPatch) (*model.Shop, error) {
	if strings.TrimSpace(shopID) == "" {
		return nil, &model.ValidationError{Field: "shopId", Reason: "is required"}
	}
	shell := model.Shop{Name: model.DefaultShopName, CreatedAt: r.now()}
	shop, err := r.store.UpsertShop(ctx, shopID, patch, shell)
	if err != nil {
		return nil, fmt.Errorf("updating shop: %w", err)
	}
	if !patch.Empty() {
		r.remoteWrite(ctx, "update shop", func(ctx context.Context) error {
			return r.remote.SetDocument(ctx, model.CollectionShops, shopID, patch.Document(), true)
		})
	}
	return shop, nil
}
