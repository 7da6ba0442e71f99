package state

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/njoerd114/saleslive/internal/model"
)

const shopColumns = `shop_id, shop_name, owner_id, created_at, upi_id, upi_payee_name`

// PutShop inserts or replaces a shop keyed by its ID.
func (s *Store) PutShop(ctx context.Context, shop *model.Shop) error {
	return putShop(ctx, s.db, shop)
}

func putShop(ctx context.Context, ex execer, shop *model.Shop) error {
	const q = `
		INSERT INTO shops (` + shopColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(shop_id) DO UPDATE SET
		    shop_name      = excluded.shop_name,
		    owner_id       = excluded.owner_id,
		    created_at     = excluded.created_at,
		    upi_id         = excluded.upi_id,
		    upi_payee_name = excluded.upi_payee_name`
	_, err := ex.ExecContext(ctx, q,
		shop.ID, shop.Name, shop.OwnerID, toMillis(shop.CreatedAt), shop.UPIID, shop.UPIPayeeName)
	if err != nil {
		return fmt.Errorf("upserting shop %q: %w", shop.ID, err)
	}
	return nil
}

// GetShop returns the shop with the given ID, or (nil, nil) if absent.
func (s *Store) GetShop(ctx context.Context, id string) (*model.Shop, error) {
	return getShop(ctx, s.db, id)
}

func getShop(ctx context.Context, ex execer, id string) (*model.Shop, error) {
	row := ex.QueryRowContext(ctx, `SELECT `+shopColumns+` FROM shops WHERE shop_id = ?`, id)
	var shop model.Shop
	var created int64
	err := row.Scan(&shop.ID, &shop.Name, &shop.OwnerID, &created, &shop.UPIID, &shop.UPIPayeeName)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("scanning shop %q: %w", id, err)
	}
	shop.CreatedAt = fromMillis(created)
	return &shop, nil
}

// UpsertShop merges patch into the stored shop. If the shop does not exist,
// shell is stored with the patch applied on top. The merged shop is returned.
func (s *Store) UpsertShop(ctx context.Context, id string, patch model.ShopPatch, shell model.Shop) (*model.Shop, error) {
	var merged *model.Shop
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		shop, err := getShop(ctx, tx, id)
		if err != nil {
			return err
		}
		if shop == nil {
			shop = &shell
			shop.ID = id
		}
		patch.Apply(shop)
		merged = shop
		return putShop(ctx, tx, shop)
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}
