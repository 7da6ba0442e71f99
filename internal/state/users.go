package state

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/njoerd114/saleslive/internal/model"
)

const userColumns = `user_id, name, email, role, shop_id, is_active, created_at`

// PutUser inserts or replaces a user keyed by its ID.
func (s *Store) PutUser(ctx context.Context, u *model.User) error {
	return putUser(ctx, s.db, u)
}

func putUser(ctx context.Context, ex execer, u *model.User) error {
	const q = `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
		    name       = excluded.name,
		    email      = excluded.email,
		    role       = excluded.role,
		    shop_id    = excluded.shop_id,
		    is_active  = excluded.is_active,
		    created_at = excluded.created_at`
	_, err := ex.ExecContext(ctx, q,
		u.ID, u.Name, u.Email, string(u.Role), u.ShopID, boolInt(u.IsActive), toMillis(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("upserting user %q: %w", u.ID, err)
	}
	return nil
}

// GetUser returns the user with the given ID, or (nil, nil) if absent.
func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	return getUser(ctx, s.db, id)
}

func getUser(ctx context.Context, ex execer, id string) (*model.User, error) {
	row := ex.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, id)
	return scanUser(row)
}

// FindUserByEmail returns the first user whose email matches case-insensitively,
// or (nil, nil) if none does.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE lower(trim(email)) = ? LIMIT 1`
	row := s.db.QueryRowContext(ctx, q, model.NormalizeEmail(email))
	return scanUser(row)
}

// ListUsers returns every locally known user ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	return s.queryUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
}

// UsersByShop returns the users of a shop. An empty role matches every role.
func (s *Store) UsersByShop(ctx context.Context, shopID string, role model.Role) ([]*model.User, error) {
	if role == "" {
		return s.queryUsers(ctx, `SELECT `+userColumns+` FROM users WHERE shop_id = ? ORDER BY created_at`, shopID)
	}
	return s.queryUsers(ctx,
		`SELECT `+userColumns+` FROM users WHERE shop_id = ? AND role = ? ORDER BY created_at`,
		shopID, string(role))
}

// UpdateUser merges patch into the stored user. It reports false and changes
// nothing if the user does not exist.
func (s *Store) UpdateUser(ctx context.Context, id string, patch model.UserPatch) (bool, error) {
	found := false
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		u, err := getUser(ctx, tx, id)
		if err != nil || u == nil {
			return err
		}
		found = true
		patch.Apply(u)
		return putUser(ctx, tx, u)
	})
	return found, err
}

// DeleteUser removes the user with the given ID. Deleting an absent user is
// not an error.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE user_id = ?`, id); err != nil {
		return fmt.Errorf("deleting user %q: %w", id, err)
	}
	return nil
}

func (s *Store) queryUsers(ctx context.Context, q string, args ...any) ([]*model.User, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(sc scanner) (*model.User, error) {
	var u model.User
	var role string
	var active int
	var created int64
	err := sc.Scan(&u.ID, &u.Name, &u.Email, &role, &u.ShopID, &active, &created)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user row: %w", err)
	}
	u.Role = model.Role(role)
	u.IsActive = active != 0
	u.CreatedAt = fromMillis(created)
	return &u, nil
}
