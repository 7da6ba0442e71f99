package sync

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/njoerd114/saleslive/internal/model"
)

// Bill fields that restores can be keyed by.
const (
	FieldShopID  = "shopId"
	FieldStaffID = "staffId"
)

// RestoreScope names the marker recorded once documents of collection with
// field == value have been pulled from the remote store.
func RestoreScope(collection, field, value string) string {
	return fmt.Sprintf("%s/%s/%s", collection, field, value)
}

// RestoreBills pulls the bills whose field equals value from the remote store,
// unless that key was restored before or the device is offline. A key is
// only marked restored once the remote store returned at least one bill. Local bills
// that are still PENDING are kept as they are. It returns the number of bills
// written locally.
func (e *Engine) RestoreBills(ctx context.Context, field, value string) (int, error) {
	return e.restore(ctx, model.CollectionBills, field, value, func(docs []model.Document) (int, error) {
		bills := make([]*model.Bill, 0, len(docs))
		for _, d := range docs {
			b, err := model.BillFromDocument(d)
			if err != nil {
				e.log.Warn("skipping undecodable remote bill", "error", err)
				continue
			}
			bills = append(bills, b)
		}
		return e.local.RestoreBills(ctx, bills)
	})
}

// RestoreProducts pulls the products of a shop from the remote store, unless
// the shop was restored before or the device is offline.
func (e *Engine) RestoreProducts(ctx context.Context, shopID string) (int, error) {
	return e.restore(ctx, model.CollectionProducts, FieldShopID, shopID, func(docs []model.Document) (int, error) {
		products := make([]*model.Product, 0, len(docs))
		for _, d := range docs {
			p, err := model.ProductFromDocument(d)
			if err != nil {
				e.log.Warn("skipping undecodable remote product", "error", err)
				continue
			}
			products = append(products, p)
		}
		if err := e.local.PutProducts(ctx, products); err != nil {
			return 0, err
		}
		return len(products), nil
	})
}

// restore implements the pull policy shared by collections. Remote failures
// are logged and swallowed: the caller still gets its local result, and since
// no marker is written the next read tries again. Local failures are returned.
func (e *Engine) restore(ctx context.Context, collection, field, value string, apply func([]model.Document) (int, error)) (int, error) {
	scope := RestoreScope(collection, field, value)

	_, done, err := e.local.SyncMarker(ctx, scope)
	if err != nil {
		return 0, err
	}
	if done || !e.conn.Online() {
		return 0, nil
	}

	ctx, span := e.tracer.Start(ctx, spanRestore)
	defer span.End()
	span.SetAttributes(attribute.String("sync.scope", scope))

	docs, err := e.remote.QueryEquals(ctx, collection, field, value)
	if err != nil {
		e.cntErrors.Add(ctx, 1)
		span.RecordError(err)
		e.log.Warn("remote restore failed, serving local data", "scope", scope, "error", err)
		return 0, nil
	}

	n, err := apply(docs)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("restoring %s: %w", scope, err)
	}
	// An empty remote result leaves the scope unmarked so later reads keep
	// pulling until another device has pushed something.
	if len(docs) > 0 {
		if err := e.local.SetSyncMarker(ctx, scope, e.now()); err != nil {
			return n, err
		}
	}

	if n > 0 {
		e.cntRestored.Add(ctx, int64(n))
	}
	span.SetAttributes(attribute.Int("sync.restored", n))
	e.log.Info("restored from remote", "scope", scope, "documents", len(docs), "written", n)
	return n, nil
}

// RestoreShop fetches a single shop missing from the local store. It returns
// (nil, nil) when offline, when the remote store has no such shop, or when the
// remote call fails.
func (e *Engine) RestoreShop(ctx context.Context, shopID string) (*model.Shop, error) {
	doc := e.fetch(ctx, model.CollectionShops, shopID)
	if doc == nil {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	shop, err := model.ShopFromDocument(doc)
	if err != nil {
		e.log.Warn("remote shop undecodable", "shop_id", shopID, "error", err)
		return nil, nil //nolint:nilnil // treated as not found
	}
	if shop.ID == "" {
		shop.ID = shopID
	}
	if err := e.local.PutShop(ctx, shop); err != nil {
		return nil, err
	}
	e.cntRestored.Add(ctx, 1)
	return shop, nil
}

// RestoreUser fetches a single user missing from the local store, with the
// same (nil, nil) rules as [Engine.RestoreShop].
func (e *Engine) RestoreUser(ctx context.Context, userID string) (*model.User, error) {
	doc := e.fetch(ctx, model.CollectionUsers, userID)
	if doc == nil {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	u, err := model.UserFromDocument(doc)
	if err != nil {
		e.log.Warn("remote user undecodable", "user_id", userID, "error", err)
		return nil, nil //nolint:nilnil // treated as not found
	}
	if u.ID == "" {
		u.ID = userID
	}
	if err := e.local.PutUser(ctx, u); err != nil {
		return nil, err
	}
	e.cntRestored.Add(ctx, 1)
	return u, nil
}

func (e *Engine) fetch(ctx context.Context, collection, id string) model.Document {
	if !e.conn.Online() {
		return nil
	}
	doc, err := e.remote.GetDocument(ctx, collection, id)
	if err != nil {
		e.cntErrors.Add(ctx, 1)
		e.log.Warn("remote fetch failed", "collection", collection, "id", id, "error", err)
		return nil
	}
	return doc
}
