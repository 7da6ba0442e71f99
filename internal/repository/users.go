package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/njoerd114/saleslive/internal/model"
)

// UserInput is what a caller supplies to create a user. ID is optional; the
// authentication layer normally provides it.
type UserInput struct {
	ID       string     `json:"userId"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Role     model.Role `json:"role"`
	ShopID   string     `json:"shopId"`
	IsActive bool       `json:"isActive"`
}

func (in UserInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return &model.ValidationError{Field: "name", Reason: "is required"}
	}
	if !validEmail(in.Email) {
		return &model.ValidationError{Field: "email", Reason: "must be an email address"}
	}
	if !in.Role.Valid() {
		return &model.ValidationError{Field: "role", Reason: "must be owner or staff"}
	}
	return nil
}

func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1
}

// CreateUser stores a new user.
func (r *Repository) CreateUser(ctx context.Context, in UserInput) (*model.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	u := &model.User{
		ID:        in.ID,
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.TrimSpace(in.Email),
		Role:      in.Role,
		ShopID:    in.ShopID,
		IsActive:  in.IsActive,
		CreatedAt: r.now(),
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if err := r.store.PutUser(ctx, u); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	r.remoteWrite(ctx, "create user", func(ctx context.Context) error {
		return r.remote.SetDocument(ctx, model.CollectionUsers, u.ID, model.UserDocument(u), false)
	})
	return u, nil
}

// UpdateUser merges patch into an existing user.
func (r *Repository) UpdateUser(ctx context.Context, id string, patch model.UserPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	if patch.Empty() {
		return nil
	}
	found, err := r.store.UpdateUser(ctx, id, patch)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	if !found {
		return fmt.Errorf("user %q: %w", id, ErrNotFound)
	}
	r.remoteWrite(ctx, "update user", func(ctx context.Context) error {
		return r.remote.UpdateFields(ctx, model.CollectionUsers, id, patch.Document())
	})
	return nil
}

// GetUsers returns every locally known user.
func (r *Repository) GetUsers(ctx context.Context) ([]*model.User, error) {
	users, err := r.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return orEmpty(users), nil
}

// GetUser returns the user, fetching it from the remote store when it is not
// known locally. It returns (nil, nil) if neither store has it.
func (r *Repository) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := r.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u, nil
	}
	return r.sync.RestoreUser(ctx, id)
}

// GetStaff returns the staff members of a shop, invited placeholders
// included.
func (r *Repository) GetStaff(ctx context.Context, shopID string) ([]*model.User, error) {
	users, err := r.store.UsersByShop(ctx, shopID, model.RoleStaff)
	if err != nil {
		return nil, err
	}
	return orEmpty(users), nil
}
