package model

import (
	"fmt"
	"time"
)

// Document is the field map exchanged with the remote store. Timestamps are
// Unix epoch milliseconds; an unset timestamp is nil.
type Document map[string]any

// WriteOp selects what a batched [Write] does.
type WriteOp int

const (
	// WriteSet replaces the whole document.
	WriteSet WriteOp = iota
	// WriteMerge overwrites only the fields present in Data.
	WriteMerge
	// WriteDelete removes the document.
	WriteDelete
)

// Write is one entry of an all-or-nothing remote batch.
type Write struct {
	Collection string
	ID         string
	Op         WriteOp
	Data       Document
}

// --- encode ------------------------------------------------------------------

func millis(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

// UserDocument encodes u for the users collection.
func UserDocument(u *User) Document {
	return Document{
		"userId":    u.ID,
		"name":      u.Name,
		"email":     u.Email,
		"role":      string(u.Role),
		"shopId":    u.ShopID,
		"isActive":  u.IsActive,
		"createdAt": millis(u.CreatedAt),
	}
}

// ShopDocument encodes s for the shops collection. Optional payment fields
// are omitted when empty.
func ShopDocument(s *Shop) Document {
	d := Document{
		"shopId":    s.ID,
		"shopName":  s.Name,
		"ownerId":   s.OwnerID,
		"createdAt": millis(s.CreatedAt),
	}
	if s.UPIID != "" {
		d["upiId"] = s.UPIID
	}
	if s.UPIPayeeName != "" {
		d["upiPayeeName"] = s.UPIPayeeName
	}
	return d
}

// ProductDocument encodes p for the products collection.
func ProductDocument(p *Product) Document {
	return Document{
		"id":     p.ID,
		"shopId": p.ShopID,
		"name":   p.Name,
		"price":  p.Price,
		"gst":    p.GST,
	}
}

// BillDocument encodes b, including its items, for the bills collection.
func BillDocument(b *Bill) Document {
	items := make([]any, 0, len(b.Items))
	for _, it := range b.Items {
		items = append(items, map[string]any{
			"itemId":    it.ID,
			"billId":    it.BillID,
			"name":      it.Name,
			"qty":       int64(it.Qty),
			"rate":      it.Rate,
			"lineTotal": it.LineTotal,
		})
	}
	return Document{
		"billId":        b.ID,
		"shopId":        b.ShopID,
		"staffId":       b.StaffID,
		"staffName":     b.StaffName,
		"subtotal":      b.Subtotal,
		"discount":      b.Discount,
		"tax":           b.Tax,
		"totalAmount":   b.TotalAmount,
		"createdAt":     millis(b.CreatedAt),
		"syncedAt":      millis(b.SyncedAt),
		"syncStatus":    string(b.SyncStatus),
		"paymentStatus": string(b.PaymentStatus),
		"items":         items,
	}
}

// InviteDocument encodes inv for the invites collection.
func InviteDocument(inv *Invite) Document {
	return Document{
		"email":     inv.Email,
		"shopId":    inv.ShopID,
		"role":      string(inv.Role),
		"name":      inv.Name,
		"invitedBy": inv.InvitedBy,
		"createdAt": millis(inv.CreatedAt),
		"status":    string(inv.Status),
	}
}

// --- decode ------------------------------------------------------------------

// UserFromDocument decodes a users document.
func UserFromDocument(d Document) (*User, error) {
	var r reader
	u := &User{
		ID:        r.str(d, "userId"),
		Name:      r.str(d, "name"),
		Email:     r.str(d, "email"),
		Role:      Role(r.str(d, "role")),
		ShopID:    r.str(d, "shopId"),
		IsActive:  r.boolean(d, "isActive"),
		CreatedAt: r.time(d, "createdAt"),
	}
	if r.err != nil {
		return nil, fmt.Errorf("decoding user: %w", r.err)
	}
	return u, nil
}

// ShopFromDocument decodes a shops document.
func ShopFromDocument(d Document) (*Shop, error) {
	var r reader
	s := &Shop{
		ID:           r.str(d, "shopId"),
		Name:         r.str(d, "shopName"),
		OwnerID:      r.str(d, "ownerId"),
		CreatedAt:    r.time(d, "createdAt"),
		UPIID:        r.str(d, "upiId"),
		UPIPayeeName: r.str(d, "upiPayeeName"),
	}
	if r.err != nil {
		return nil, fmt.Errorf("decoding shop: %w", r.err)
	}
	return s, nil
}

// ProductFromDocument decodes a products document.
func ProductFromDocument(d Document) (*Product, error) {
	var r reader
	p := &Product{
		ID:     r.str(d, "id"),
		ShopID: r.str(d, "shopId"),
		Name:   r.str(d, "name"),
		Price:  r.float(d, "price"),
		GST:    r.float(d, "gst"),
	}
	if r.err != nil {
		return nil, fmt.Errorf("decoding product: %w", r.err)
	}
	return p, nil
}

// BillFromDocument decodes a bills document.
func BillFromDocument(d Document) (*Bill, error) {
	var r reader
	b := &Bill{
		ID:            r.str(d, "billId"),
		ShopID:        r.str(d, "shopId"),
		StaffID:       r.str(d, "staffId"),
		StaffName:     r.str(d, "staffName"),
		Subtotal:      r.float(d, "subtotal"),
		Discount:      r.float(d, "discount"),
		Tax:           r.float(d, "tax"),
		TotalAmount:   r.float(d, "totalAmount"),
		CreatedAt:     r.time(d, "createdAt"),
		SyncedAt:      r.time(d, "syncedAt"),
		SyncStatus:    SyncStatus(r.str(d, "syncStatus")),
		PaymentStatus: PaymentStatus(r.str(d, "paymentStatus")),
	}
	if b.PaymentStatus == "" {
		b.PaymentStatus = PaymentUnpaid
	}

	if raw, ok := d["items"]; ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("decoding bill %q: items is %T, want list", b.ID, raw)
		}
		b.Items = make([]BillItem, 0, len(list))
		for i, el := range list {
			m, ok := el.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("decoding bill %q: item %d is %T, want map", b.ID, i, el)
			}
			item := Document(m)
			b.Items = append(b.Items, BillItem{
				ID:        r.str(item, "itemId"),
				BillID:    r.str(item, "billId"),
				Name:      r.str(item, "name"),
				Qty:       int(r.integer(item, "qty")),
				Rate:      r.float(item, "rate"),
				LineTotal: r.float(item, "lineTotal"),
			})
		}
	}
	if r.err != nil {
		return nil, fmt.Errorf("decoding bill %q: %w", b.ID, r.err)
	}
	return b, nil
}

// InviteFromDocument decodes an invites document.
func InviteFromDocument(d Document) (*Invite, error) {
	var r reader
	inv := &Invite{
		Email:     r.str(d, "email"),
		ShopID:    r.str(d, "shopId"),
		Role:      Role(r.str(d, "role")),
		Name:      r.str(d, "name"),
		InvitedBy: r.str(d, "invitedBy"),
		CreatedAt: r.time(d, "createdAt"),
		Status:    InviteStatus(r.str(d, "status")),
	}
	if r.err != nil {
		return nil, fmt.Errorf("decoding invite: %w", r.err)
	}
	return inv, nil
}

// reader extracts typed fields from a Document and remembers the first
// type mismatch. Missing keys and nil values decode to the zero value.
type reader struct {
	err error
}

func (r *reader) fail(key string, v any, want string) {
	if r.err == nil {
		r.err = fmt.Errorf("field %q is %T, want %s", key, v, want)
	}
}

func (r *reader) str(d Document, key string) string {
	v, ok := d[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		r.fail(key, v, "string")
	}
	return s
}

func (r *reader) boolean(d Document, key string) bool {
	v, ok := d[key]
	if !ok || v == nil {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		r.fail(key, v, "bool")
	}
	return b
}

// float accepts both integer and floating point encodings; the remote store
// returns whole numbers as int64.
func (r *reader) float(d Document, key string) float64 {
	switch v := d[key].(type) {
	case nil:
		return 0
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		r.fail(key, v, "number")
		return 0
	}
}

func (r *reader) integer(d Document, key string) int64 {
	switch v := d[key].(type) {
	case nil:
		return 0
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		r.fail(key, v, "integer")
		return 0
	}
}

// time decodes epoch milliseconds. time.Time values are accepted too, since
// documents written by other clients may carry native timestamps.
func (r *reader) time(d Document, key string) time.Time {
	switch v := d[key].(type) {
	case nil:
		return time.Time{}
	case time.Time:
		return v.Truncate(time.Millisecond)
	default:
		ms := r.integer(d, key)
		if ms == 0 {
			return time.Time{}
		}
		return time.UnixMilli(ms)
	}
}
