package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/njoerd114/saleslive/internal/model"
	"github.com/njoerd114/saleslive/internal/state"
	engine "github.com/njoerd114/saleslive/internal/sync"
)

// BillInput is what a caller supplies to create a bill. Totals are derived.
type BillInput struct {
	ShopID    string            `json:"shopId"`
	StaffID   string            `json:"staffId"`
	StaffName string            `json:"staffName"`
	Items     []model.LineInput `json:"items"`
	Discount  float64           `json:"discount"`
	Tax       float64           `json:"tax"`
}

func (in BillInput) validate() error {
	if strings.TrimSpace(in.ShopID) == "" {
		return &model.ValidationError{Field: "shopId", Reason: "is required"}
	}
	if strings.TrimSpace(in.StaffID) == "" {
		return &model.ValidationError{Field: "staffId", Reason: "is required"}
	}
	return model.ValidateLines(in.Items, in.Discount, in.Tax)
}

// CreateBill stores a new PENDING, UNPAID bill and requests a push.
func (r *Repository) CreateBill(ctx context.Context, in BillInput) (*model.Bill, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	totals := model.ComputeTotals(in.Items, in.Discount, in.Tax)
	b := &model.Bill{
		ID:            uuid.NewString(),
		ShopID:        in.ShopID,
		StaffID:       in.StaffID,
		StaffName:     in.StaffName,
		Subtotal:      totals.Subtotal,
		Discount:      in.Discount,
		Tax:           in.Tax,
		TotalAmount:   totals.Total,
		CreatedAt:     r.now(),
		SyncStatus:    model.SyncPending,
		PaymentStatus: model.PaymentUnpaid,
		Items:         make([]model.BillItem, len(in.Items)),
	}
	for i, l := range in.Items {
		b.Items[i] = model.BillItem{
			ID:        uuid.NewString(),
			BillID:    b.ID,
			Name:      strings.TrimSpace(l.Name),
			Qty:       l.Qty,
			Rate:      l.Rate,
			LineTotal: totals.LineTotals[i],
		}
	}

	if err := r.store.PutBill(ctx, b); err != nil {
		return nil, fmt.Errorf("creating bill: %w", err)
	}
	r.log.Info("bill created", "bill_id", b.ID, "shop_id", b.ShopID, "total", b.TotalAmount)
	r.sync.Trigger()
	return b, nil
}

// MarkBillAsPaid records payment locally and re-queues the bill. When online
// it also updates the remote copy right away and, once acknowledged, marks
// the local bill SYNCED. A push is requested either way.
func (r *Repository) MarkBillAsPaid(ctx context.Context, billID string) error {
	found, err := r.store.SetPaymentStatus(ctx, billID, model.PaymentPaid)
	if err != nil {
		return fmt.Errorf("marking bill paid: %w", err)
	}
	if !found {
		return fmt.Errorf("bill %q: %w", billID, ErrNotFound)
	}
	defer r.sync.Trigger()

	b, err := r.store.GetBill(ctx, billID)
	if err != nil {
		return fmt.Errorf("reloading bill: %w", err)
	}
	if b == nil {
		return nil
	}

	at := r.now()
	fields := model.Document{
		"paymentStatus": string(model.PaymentPaid),
		"syncStatus":    string(model.SyncSynced),
		"syncedAt":      at.UnixMilli(),
	}
	acked := r.remoteWrite(ctx, "mark paid", func(ctx context.Context) error {
		return r.remote.UpdateFields(ctx, model.CollectionBills, billID, fields)
	})
	if !acked {
		return nil
	}
	if _, err := r.store.MarkBillsSynced(ctx, []state.BillRef{{ID: b.ID, Revision: b.Revision}}, at); err != nil {
		return fmt.Errorf("marking bill synced: %w", err)
	}
	return nil
}

// GetBillsByShop returns the shop's bills, newest first. The first read of a
// shop on this device restores its bills from the remote store.
func (r *Repository) GetBillsByShop(ctx context.Context, shopID string) ([]*model.Bill, error) {
	if _, err := r.sync.RestoreBills(ctx, engine.FieldShopID, shopID); err != nil {
		return nil, err
	}
	bills, err := r.store.BillsByShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	return orEmpty(bills), nil
}

// GetBillsByStaff returns the bills created by a staff member, newest first,
// with the same restore rule as [Repository.GetBillsByShop].
func (r *Repository) GetBillsByStaff(ctx context.Context, staffID string) ([]*model.Bill, error) {
	if _, err := r.sync.RestoreBills(ctx, engine.FieldStaffID, staffID); err != nil {
		return nil, err
	}
	bills, err := r.store.BillsByStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}
	return orEmpty(bills), nil
}
