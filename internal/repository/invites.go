package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/njoerd114/saleslive/internal/model"
)

// staffNamespace seeds the name-based IDs of invited staff placeholders.
var staffNamespace = uuid.MustParse("6f1c8a52-4d1e-4c39-9a57-3b0d2f8e7c11")

// PlaceholderUserID returns the user ID given to an invited staff member
// before their first login. The same email always yields the same ID.
func PlaceholderUserID(email string) string {
	return uuid.NewSHA1(staffNamespace, []byte(model.NormalizeEmail(email))).String()
}

// InviteInput is what an owner supplies to invite a staff member.
type InviteInput struct {
	ShopID    string `json:"shopId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	InvitedBy string `json:"invitedBy"`
}

// StaffInvite is the outcome of inviting a staff member. Published reports
// whether the invite reached the remote store; until it has, the invitee
// cannot log in and the invite should be resent with
// [Repository.ResendStaffInvite] once the device is online.
type StaffInvite struct {
	User      *model.User   `json:"user"`
	Invite    *model.Invite `json:"invite"`
	Published bool          `json:"published"`
}

// CreateStaffInvite adds a placeholder staff user to the shop and publishes
// the invite a login flow uses to admit them. It fails with
// [ErrDuplicateEmail] before writing anything if a local user already has
// the email.
func (r *Repository) CreateStaffInvite(ctx context.Context, in InviteInput) (*StaffInvite, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, &model.ValidationError{Field: "name", Reason: "is required"}
	}
	if !validEmail(in.Email) {
		return nil, &model.ValidationError{Field: "email", Reason: "must be an email address"}
	}
	if strings.TrimSpace(in.ShopID) == "" {
		return nil, &model.ValidationError{Field: "shopId", Reason: "is required"}
	}

	email := model.NormalizeEmail(in.Email)
	existing, err := r.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("checking email: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%s: %w", email, ErrDuplicateEmail)
	}

	u := &model.User{
		ID:        PlaceholderUserID(email),
		Name:      name,
		Email:     email,
		Role:      model.RoleStaff,
		ShopID:    in.ShopID,
		IsActive:  true,
		CreatedAt: r.now(),
	}
	if err := r.store.PutUser(ctx, u); err != nil {
		return nil, fmt.Errorf("storing invited user: %w", err)
	}

	si := r.publishInvite(ctx, u, in.InvitedBy)
	r.log.Info("staff invited", "shop_id", in.ShopID, "user_id", u.ID, "published", si.Published)
	return si, nil
}

// ResendStaffInvite publishes the invite of a placeholder staff user again,
// typically one created while offline. It returns [ErrNotFound] for an
// unknown user and a validation error for a user who is not staff.
func (r *Repository) ResendStaffInvite(ctx context.Context, userID, invitedBy string) (*StaffInvite, error) {
	u, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading staff: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if u.Role != model.RoleStaff || u.Email == "" {
		return nil, &model.ValidationError{Field: "userId", Reason: "is not an invited staff member"}
	}

	si := r.publishInvite(ctx, u, invitedBy)
	if !si.Published {
		r.log.Warn("invite still unpublished", "user_id", u.ID)
	}
	return si, nil
}

// publishInvite writes the user and invites documents in one batch.
func (r *Repository) publishInvite(ctx context.Context, u *model.User, invitedBy string) *StaffInvite {
	email := model.NormalizeEmail(u.Email)
	inv := &model.Invite{
		Email:     email,
		ShopID:    u.ShopID,
		Role:      model.RoleStaff,
		Name:      u.Name,
		InvitedBy: invitedBy,
		CreatedAt: r.now(),
		Status:    model.InvitePending,
	}
	ok := r.remoteWrite(ctx, "publish invite", func(ctx context.Context) error {
		return r.remote.CommitBatch(ctx, []model.Write{
			{Collection: model.CollectionUsers, ID: u.ID, Op: model.WriteSet, Data: model.UserDocument(u)},
			{Collection: model.CollectionInvites, ID: email, Op: model.WriteSet, Data: model.InviteDocument(inv)},
		})
	})
	return &StaffInvite{User: u, Invite: inv, Published: ok}
}

// DeleteStaff removes a staff member locally, then deletes their remote user
// document and revokes their invite if it is still pending.
func (r *Repository) DeleteStaff(ctx context.Context, userID string) error {
	u, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading staff: %w", err)
	}
	if err := r.store.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("deleting staff: %w", err)
	}

	r.remoteWrite(ctx, "delete staff", func(ctx context.Context) error {
		return r.remote.DeleteDocument(ctx, model.CollectionUsers, userID)
	})
	if u == nil || u.Email == "" {
		return nil
	}
	email := model.NormalizeEmail(u.Email)
	r.remoteWrite(ctx, "revoke invite", func(ctx context.Context) error {
		doc, err := r.remote.GetDocument(ctx, model.CollectionInvites, email)
		if err != nil || doc == nil {
			return err
		}
		inv, err := model.InviteFromDocument(doc)
		if err != nil {
			return err
		}
		if inv.Status != model.InvitePending || inv.ShopID != u.ShopID {
			return nil
		}
		return r.remote.DeleteDocument(ctx, model.CollectionInvites, email)
	})
	return nil
}
