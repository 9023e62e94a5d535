// Package admin implements the Data_admin operations: user management,
// exports, bulk clear and dashboards.
package admin

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sells-group/sample-labeler/internal/model"
	"github.com/sells-group/sample-labeler/internal/store"
)

// ErrInvalidCredentials is returned when a login does not resolve to an
// active user.
var ErrInvalidCredentials = eris.New("invalid credentials")

// requireAdmin rejects actors that are not active Data_admin users.
func requireAdmin(actor *model.User) error {
	if actor == nil || !actor.IsActive || !actor.IsDataAdmin() {
		return eris.Wrap(model.ErrPermissionDenied, "admin: Data_admin role required")
	}
	return nil
}

// formList turns allow-list form input into an AllowList. Blank entries are
// dropped; no entries at all means the restriction is absent.
func formList(vals []string) model.AllowList {
	var out model.AllowList
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out.Sorted()
}

// NewUser is the input for creating a user.
type NewUser struct {
	Username   string     `json:"username"`
	Password   string     `json:"password"`
	RealName   string     `json:"real_name"`
	Role       model.Role `json:"role"`
	Categories []string   `json:"category_arr"`
	Brands     []string   `json:"brand_arr"`
}

// UserUpdate is the input for editing a user. An empty Password keeps the
// current one.
type UserUpdate struct {
	RealName   string     `json:"real_name"`
	Role       model.Role `json:"role"`
	Password   string     `json:"password"`
	Categories []string   `json:"category_arr"`
	Brands     []string   `json:"brand_arr"`
}

// Users manages accounts and authenticates logins.
type Users struct {
	store store.Store
	cost  int
	decoy func() []byte
}

// NewUsers creates a Users service. A non-positive cost uses
// bcrypt.DefaultCost.
func NewUsers(st store.Store, cost int) *Users {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	u := &Users{store: st, cost: cost}
	// Unknown usernames are checked against this hash so they cost as much
	// as a wrong password.
	u.decoy = sync.OnceValue(func() []byte {
		h, _ := bcrypt.GenerateFromPassword([]byte("labeler-decoy"), cost)
		return h
	})
	return u
}

func (u *Users) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), u.cost)
	if err != nil {
		return "", eris.Wrap(err, "admin: hash password")
	}
	return string(h), nil
}

// Create adds a user. Duplicate usernames fail with model.ErrConflict.
func (u *Users) Create(ctx context.Context, actor *model.User, in NewUser) (*model.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return u.create(ctx, in, actor.Username)
}

// Bootstrap adds a user without an acting admin. It is meant for the CLI,
// which has direct database access anyway.
func (u *Users) Bootstrap(ctx context.Context, in NewUser) (*model.User, error) {
	return u.create(ctx, in, "cli")
}

func (u *Users) create(ctx context.Context, in NewUser, actor string) (*model.User, error) {
	username := strings.TrimSpace(in.Username)
	switch {
	case username == "":
		return nil, eris.Wrap(model.ErrValidation, "admin: username is required")
	case in.Password == "":
		return nil, eris.Wrap(model.ErrValidation, "admin: password is required")
	case !in.Role.Valid():
		return nil, eris.Wrapf(model.ErrValidation, "admin: unknown role %q", in.Role)
	}

	hash, err := u.hash(in.Password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Username:     username,
		PasswordHash: hash,
		RealName:     strings.TrimSpace(in.RealName),
		Role:         in.Role,
		CategoryArr:  formList(in.Categories),
		BrandArr:     formList(in.Brands),
		IsActive:     true,
	}
	id, err := u.store.CreateUser(ctx, user)
	if err != nil {
		return nil, err
	}
	user.ID = id

	zap.L().Info("user created",
		zap.String("component", "admin"),
		zap.String("actor", actor),
		zap.String("username", username),
		zap.String("role", string(in.Role)),
	)
	return user, nil
}

// Update edits a user's profile, role, scope and optionally password.
func (u *Users) Update(ctx context.Context, actor *model.User, id int64, in UserUpdate) (*model.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !in.Role.Valid() {
		return nil, eris.Wrapf(model.ErrValidation, "admin: unknown role %q", in.Role)
	}

	user, err := u.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	user.RealName = strings.TrimSpace(in.RealName)
	user.Role = in.Role
	user.CategoryArr = formList(in.Categories)
	user.BrandArr = formList(in.Brands)
	if in.Password != "" {
		if user.PasswordHash, err = u.hash(in.Password); err != nil {
			return nil, err
		}
	}

	if err := u.store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Toggle flips a user's active flag and returns the updated user.
func (u *Users) Toggle(ctx context.Context, actor *model.User, id int64) (*model.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if actor.ID == id {
		return nil, eris.Wrap(model.ErrValidation, "admin: cannot deactivate yourself")
	}

	user, err := u.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	user.IsActive = !user.IsActive
	if err := u.store.SetUserActive(ctx, id, user.IsActive); err != nil {
		return nil, err
	}
	return user, nil
}

// List returns every user.
func (u *Users) List(ctx context.Context, actor *model.User) ([]model.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return u.store.ListUsers(ctx)
}

// Authenticate resolves a username and password to an active user.
func (u *Users) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	user, err := u.store.GetUserByUsername(ctx, username)
	if errors.Is(err, model.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(u.decoy(), []byte(password))
		return nil, eris.Wrapf(ErrInvalidCredentials, "admin: unknown user %q", username)
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, eris.Wrapf(ErrInvalidCredentials, "admin: wrong password for %q", username)
	}
	if !user.IsActive {
		return nil, eris.Wrapf(ErrInvalidCredentials, "admin: user %q is inactive", username)
	}
	return user, nil
}
