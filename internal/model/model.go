// Package model defines the entities shared by the local store, the remote
// store adapter, the sync engine, and the repositories.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Remote collection names.
const (
	CollectionUsers    = "users"
	CollectionShops    = "shops"
	CollectionBills    = "bills"
	CollectionProducts = "products"
	CollectionInvites  = "invites"
)

// Role is the access level of a user within its shop.
type Role string

const (
	RoleOwner Role = "owner"
	RoleStaff Role = "staff"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleStaff
}

// SyncStatus records whether the local copy of a bill has been acknowledged
// by the remote store.
type SyncStatus string

const (
	SyncPending SyncStatus = "PENDING"
	SyncSynced  SyncStatus = "SYNCED"
)

// PaymentStatus records whether a bill's amount has been collected.
type PaymentStatus string

const (
	PaymentPaid   PaymentStatus = "PAID"
	PaymentUnpaid PaymentStatus = "UNPAID"
)

// InviteStatus tracks whether a staff invite has been consumed by a login.
type InviteStatus string

const (
	InvitePending InviteStatus = "pending"
	InviteClaimed InviteStatus = "claimed"
)

// DefaultShopName is used when a shop shell is synthesized on update.
const DefaultShopName = "My Store"

// ErrInvalid is wrapped by every [ValidationError].
var ErrInvalid = errors.New("invalid input")

// ValidationError reports a rejected field before any store mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap lets callers match any validation failure with errors.Is(err, ErrInvalid).
func (e *ValidationError) Unwrap() error { return ErrInvalid }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// User is a person who can sign in to a shop.
type User struct {
	ID        string    `json:"userId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	ShopID    string    `json:"shopId"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// Shop is a business with exactly one owner.
type Shop struct {
	ID           string    `json:"shopId"`
	Name         string    `json:"shopName"`
	OwnerID      string    `json:"ownerId"`
	CreatedAt    time.Time `json:"createdAt"`
	UPIID        string    `json:"upiId,omitempty"`
	UPIPayeeName string    `json:"upiPayeeName,omitempty"`
}

// Product is an inventory entry offered by a shop.
type Product struct {
	ID     string  `json:"id"`
	ShopID string  `json:"shopId"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	// GST is a percentage, e.g. 18 for 18 %.
	GST float64 `json:"gst"`
}

// Validate checks the fields required before a product is stored.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.ShopID) == "" {
		return invalid("shopId", "is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return invalid("name", "is required")
	}
	if p.Price < 0 {
		return invalid("price", "must not be negative")
	}
	if p.GST < 0 {
		return invalid("gst", "must not be negative")
	}
	return nil
}

// BillItem is one immutable line of a bill.
type BillItem struct {
	ID        string  `json:"itemId"`
	BillID    string  `json:"billId"`
	Name      string  `json:"name"`
	Qty       int     `json:"qty"`
	Rate      float64 `json:"rate"`
	LineTotal float64 `json:"lineTotal"`
}

// Bill is a sales transaction. Line items and totals never change after
// creation; only SyncStatus, SyncedAt and PaymentStatus do.
type Bill struct {
	ID            string        `json:"billId"`
	ShopID        string        `json:"shopId"`
	StaffID       string        `json:"staffId"`
	StaffName     string        `json:"staffName"`
	Subtotal      float64       `json:"subtotal"`
	Discount      float64       `json:"discount"`
	Tax           float64       `json:"tax"`
	TotalAmount   float64       `json:"totalAmount"`
	CreatedAt     time.Time     `json:"createdAt"`
	SyncedAt      time.Time     `json:"syncedAt"` // zero until the first acknowledged push
	SyncStatus    SyncStatus    `json:"syncStatus"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	Items         []BillItem    `json:"items"`

	// Revision counts local mutations. Local only; never sent to the remote store.
	Revision int64 `json:"-"`
}

// Invite authorizes an email address to join a shop as staff on first login.
// It only exists in the remote store.
type Invite struct {
	Email     string       `json:"email"`
	ShopID    string       `json:"shopId"`
	Role      Role         `json:"role"`
	Name      string       `json:"name"`
	InvitedBy string       `json:"invitedBy"`
	CreatedAt time.Time    `json:"createdAt"`
	Status    InviteStatus `json:"status"`
}

// NormalizeEmail lower-cases and trims an email address. Invite records are
// keyed by the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Now returns the current time truncated to the millisecond precision used by
// both stores.
func Now() time.Time {
	return time.Now().Truncate(time.Millisecond)
}
