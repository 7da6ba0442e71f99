package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/njoerd114/saleslive/internal/model"
)

const billColumns = `bill_id, shop_id, staff_id, staff_name, subtotal, discount, tax, total_amount,
	created_at, synced_at, sync_status, payment_status, revision`

// itemsChunk bounds the number of bill IDs per IN (...) clause.
const itemsChunk = 500

// BillRef identifies a bill at a specific local revision.
type BillRef struct {
	ID       string
	Revision int64
}

// PutBill inserts or replaces a bill together with its items. Replacing an
// existing bill bumps its revision.
func (s *Store) PutBill(ctx context.Context, b *model.Bill) error {
	const q = `
		INSERT INTO bills (` + billColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(bill_id) DO UPDATE SET
		    shop_id        = excluded.shop_id,
		    staff_id       = excluded.staff_id,
		    staff_name     = excluded.staff_name,
		    subtotal       = excluded.subtotal,
		    discount       = excluded.discount,
		    tax            = excluded.tax,
		    total_amount   = excluded.total_amount,
		    created_at     = excluded.created_at,
		    synced_at      = excluded.synced_at,
		    sync_status    = excluded.sync_status,
		    payment_status = excluded.payment_status,
		    revision       = bills.revision + 1`
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, q, billArgs(b)...); err != nil {
			return fmt.Errorf("upserting bill %q: %w", b.ID, err)
		}
		if err := replaceItems(ctx, tx, b); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `SELECT revision FROM bills WHERE bill_id = ?`, b.ID).Scan(&b.Revision)
	})
}

// RestoreBills upserts bills fetched from the remote store and stores them
// as SYNCED. A local bill that is still PENDING is never overwritten, since it
// holds changes the remote store has not seen yet. It returns the number of
// bills written.
func (s *Store) RestoreBills(ctx context.Context, bills []*model.Bill) (int, error) {
	const q = `
		INSERT INTO bills (` + billColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(bill_id) DO UPDATE SET
		    shop_id        = excluded.shop_id,
		    staff_id       = excluded.staff_id,
		    staff_name     = excluded.staff_name,
		    subtotal       = excluded.subtotal,
		    discount       = excluded.discount,
		    tax            = excluded.tax,
		    total_amount   = excluded.total_amount,
		    created_at     = excluded.created_at,
		    synced_at      = excluded.synced_at,
		    sync_status    = excluded.sync_status,
		    payment_status = excluded.payment_status,
		    revision       = bills.revision + 1
		WHERE bills.sync_status != 'PENDING'`
	written := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, b := range bills {
			// The remote store already holds this bill, whatever status it
			// was written with.
			restored := *b
			restored.SyncStatus = model.SyncSynced
			b = &restored

			res, err := tx.ExecContext(ctx, q, billArgs(b)...)
			if err != nil {
				return fmt.Errorf("restoring bill %q: %w", b.ID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("restoring bill %q: %w", b.ID, err)
			}
			if n == 0 {
				continue
			}
			if err := replaceItems(ctx, tx, b); err != nil {
				return err
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// GetBill returns the bill with the given ID including its items, or
// (nil, nil) if absent.
func (s *Store) GetBill(ctx context.Context, id string) (*model.Bill, error) {
	bills, err := s.queryBills(ctx, `SELECT `+billColumns+` FROM bills WHERE bill_id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(bills) == 0 {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	return bills[0], nil
}

// BillsByShop returns the bills of a shop, newest first.
func (s *Store) BillsByShop(ctx context.Context, shopID string) ([]*model.Bill, error) {
	return s.queryBills(ctx,
		`SELECT `+billColumns+` FROM bills WHERE shop_id = ? ORDER BY created_at DESC`, shopID)
}

// BillsByStaff returns the bills created by a staff member, newest first.
func (s *Store) BillsByStaff(ctx context.Context, staffID string) ([]*model.Bill, error) {
	return s.queryBills(ctx,
		`SELECT `+billColumns+` FROM bills WHERE staff_id = ? ORDER BY created_at DESC`, staffID)
}

// BillsByShopBetween returns the bills of a shop created within [from, to],
// newest first. It is served by the (shop_id, created_at) index.
func (s *Store) BillsByShopBetween(ctx context.Context, shopID string, from, to time.Time) ([]*model.Bill, error) {
	return s.queryBills(ctx,
		`SELECT `+billColumns+` FROM bills
		 WHERE shop_id = ? AND created_at BETWEEN ? AND ?
		 ORDER BY created_at DESC`,
		shopID, from.UnixMilli(), to.UnixMilli())
}

// BillsByStaffBetween returns the bills of a staff member created within
// [from, to], newest first.
func (s *Store) BillsByStaffBetween(ctx context.Context, staffID string, from, to time.Time) ([]*model.Bill, error) {
	return s.queryBills(ctx,
		`SELECT `+billColumns+` FROM bills
		 WHERE staff_id = ? AND created_at BETWEEN ? AND ?
		 ORDER BY created_at DESC`,
		staffID, from.UnixMilli(), to.UnixMilli())
}

// PendingBills returns every bill awaiting upload, oldest first.
func (s *Store) PendingBills(ctx context.Context) ([]*model.Bill, error) {
	return s.queryBills(ctx,
		`SELECT `+billColumns+` FROM bills WHERE sync_status = 'PENDING' ORDER BY created_at`)
}

// CountPending returns the number of bills awaiting upload. An empty shopID
// counts across all shops.
func (s *Store) CountPending(ctx context.Context, shopID string) (int, error) {
	q := `SELECT COUNT(*) FROM bills WHERE sync_status = 'PENDING'`
	var args []any
	if shopID != "" {
		q += ` AND shop_id = ?`
		args = append(args, shopID)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting pending bills: %w", err)
	}
	return n, nil
}

// SetPaymentStatus records a payment change and re-queues the bill for upload
// by resetting it to PENDING. It reports false if the bill does not exist.
func (s *Store) SetPaymentStatus(ctx context.Context, id string, status model.PaymentStatus) (bool, error) {
	const q = `
		UPDATE bills
		SET payment_status = ?, sync_status = 'PENDING', revision = revision + 1
		WHERE bill_id = ?`
	res, err := s.db.ExecContext(ctx, q, string(status), id)
	if err != nil {
		return false, fmt.Errorf("setting payment status of bill %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("setting payment status of bill %q: %w", id, err)
	}
	return n > 0, nil
}

// MarkBillsSynced flips the given bills to SYNCED with syncedAt = at. A bill
// whose revision changed since ref was taken is left PENDING, because the
// remote store holds an older version of it. It returns the number of bills
// marked.
func (s *Store) MarkBillsSynced(ctx context.Context, refs []BillRef, at time.Time) (int, error) {
	const q = `
		UPDATE bills SET sync_status = 'SYNCED', synced_at = ?
		WHERE bill_id = ? AND revision = ?`
	marked := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, ref := range refs {
			res, err := tx.ExecContext(ctx, q, at.UnixMilli(), ref.ID, ref.Revision)
			if err != nil {
				return fmt.Errorf("marking bill %q synced: %w", ref.ID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("marking bill %q synced: %w", ref.ID, err)
			}
			marked += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}

// --- helpers -----------------------------------------------------------------

func billArgs(b *model.Bill) []any {
	status := b.SyncStatus
	if status == "" {
		status = model.SyncPending
	}
	payment := b.PaymentStatus
	if payment == "" {
		payment = model.PaymentUnpaid
	}
	return []any{
		b.ID, b.ShopID, b.StaffID, b.StaffName,
		b.Subtotal, b.Discount, b.Tax, b.TotalAmount,
		b.CreatedAt.UnixMilli(), nullMillis(b.SyncedAt), string(status), string(payment),
	}
}

func replaceItems(ctx context.Context, tx *sql.Tx, b *model.Bill) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM bill_items WHERE bill_id = ?`, b.ID); err != nil {
		return fmt.Errorf("clearing items of bill %q: %w", b.ID, err)
	}
	const q = `
		INSERT INTO bill_items (item_id, bill_id, position, name, qty, rate, line_total)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	for i, it := range b.Items {
		if _, err := tx.ExecContext(ctx, q, it.ID, b.ID, i, it.Name, it.Qty, it.Rate, it.LineTotal); err != nil {
			return fmt.Errorf("inserting item %q of bill %q: %w", it.ID, b.ID, err)
		}
	}
	return nil
}

// queryBills runs a bill query and attaches items. Rows are fully read and
// closed before items are loaded, since the store holds a single connection.
func (s *Store) queryBills(ctx context.Context, q string, args ...any) ([]*model.Bill, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying bills: %w", err)
	}

	var bills []*model.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		bills = append(bills, b)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterating bills: %w", err)
	}
	_ = rows.Close()

	if err := s.attachItems(ctx, bills); err != nil {
		return nil, err
	}
	return bills, nil
}

func (s *Store) attachItems(ctx context.Context, bills []*model.Bill) error {
	byID := make(map[string]*model.Bill, len(bills))
	for _, b := range bills {
		b.Items = []model.BillItem{}
		byID[b.ID] = b
	}

	for start := 0; start < len(bills); start += itemsChunk {
		end := min(start+itemsChunk, len(bills))
		args := make([]any, 0, end-start)
		for _, b := range bills[start:end] {
			args = append(args, b.ID)
		}

		q := `SELECT item_id, bill_id, name, qty, rate, line_total FROM bill_items
		      WHERE bill_id IN (` + placeholders(len(args)) + `) ORDER BY bill_id, position`
		rows, err := s.db.QueryContext(ctx, q, args...)
		if err != nil {
			return fmt.Errorf("querying bill items: %w", err)
		}
		for rows.Next() {
			var it model.BillItem
			if err := rows.Scan(&it.ID, &it.BillID, &it.Name, &it.Qty, &it.Rate, &it.LineTotal); err != nil {
				_ = rows.Close()
				return fmt.Errorf("scanning bill item row: %w", err)
			}
			if b := byID[it.BillID]; b != nil {
				b.Items = append(b.Items, it)
			}
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return fmt.Errorf("iterating bill items: %w", err)
		}
	}
	return nil
}

func scanBill(sc scanner) (*model.Bill, error) {
	var b model.Bill
	var created int64
	var synced sql.NullInt64
	var syncStatus, payment string
	err := sc.Scan(&b.ID, &b.ShopID, &b.StaffID, &b.StaffName,
		&b.Subtotal, &b.Discount, &b.Tax, &b.TotalAmount,
		&created, &synced, &syncStatus, &payment, &b.Revision)
	if err != nil {
		return nil, fmt.Errorf("scanning bill row: %w", err)
	}
	b.CreatedAt = fromMillis(created)
	if synced.Valid {
		b.SyncedAt = fromMillis(synced.Int64)
	}
	b.SyncStatus = model.SyncStatus(syncStatus)
	b.PaymentStatus = model.PaymentStatus(payment)
	return &b, nil
}
