package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sample-labeler/internal/model"
)

const userColumns = "id, username, password_hash, real_name, role, category_arr, brand_arr, is_active"

// encodeAllowList stores an absent list as NULL and any other list as a
// JSON array, so an explicit empty list survives a round trip.
func encodeAllowList(l model.AllowList) (any, error) {
	if l.Absent() {
		return nil, nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, eris.Wrap(err, "store: encode allow-list")
	}
	return string(b), nil
}

func decodeAllowList(raw *string) (model.AllowList, error) {
	if raw == nil {
		return nil, nil
	}
	list := model.AllowList{}
	if err := json.Unmarshal([]byte(*raw), &list); err != nil {
		return nil, eris.Wrap(err, "store: decode allow-list")
	}
	if list == nil {
		// JSON null
		return nil, nil
	}
	return list, nil
}

func scanUser(sc scanner) (*model.User, error) {
	var u model.User
	var realName, role, cats, brands *string
	if err := sc.Scan(&u.ID, &u.Username, &u.PasswordHash, &realName, &role, &cats, &brands, &u.IsActive); err != nil {
		return nil, err
	}
	if realName != nil {
		u.RealName = *realName
	}
	if role != nil {
		u.Role = model.Role(*role)
	}
	var err error
	if u.CategoryArr, err = decodeAllowList(cats); err != nil {
		return nil, err
	}
	if u.BrandArr, err = decodeAllowList(brands); err != nil {
		return nil, err
	}
	return &u, nil
}

func userArgs(u *model.User) (cats, brands any, err error) {
	if cats, err = encodeAllowList(u.CategoryArr); err != nil {
		return nil, nil, err
	}
	if brands, err = encodeAllowList(u.BrandArr); err != nil {
		return nil, nil, err
	}
	return cats, brands, nil
}

func (c core) CreateUser(ctx context.Context, u *model.User) (int64, error) {
	cats, brands, err := userArgs(u)
	if err != nil {
		return 0, err
	}

	var id int64
	err = c.q.queryRow(ctx,
		"INSERT INTO users (username, password_hash, real_name, role, category_arr, brand_arr, is_active) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id",
		u.Username, u.PasswordHash, u.RealName, string(u.Role), cats, brands, u.IsActive,
	).Scan(&id)
	if c.d.isUniqueViolation(err) {
		return 0, eris.Wrapf(model.ErrConflict, "store: username %q already exists", u.Username)
	}
	if err != nil {
		return 0, storageErr(err, "store: create user")
	}
	return id, nil
}

func (c core) UpdateUser(ctx context.Context, u *model.User) error {
	cats, brands, err := userArgs(u)
	if err != nil {
		return err
	}

	n, err := c.q.exec(ctx,
		"UPDATE users SET password_hash = ?, real_name = ?, role = ?, category_arr = ?, brand_arr = ?, is_active = ? WHERE id = ?",
		u.PasswordHash, u.RealName, string(u.Role), cats, brands, u.IsActive, u.ID,
	)
	if err != nil {
		return storageErr(err, "store: update user")
	}
	if n == 0 {
		return eris.Wrapf(model.ErrNotFound, "store: user %d", u.ID)
	}
	return nil
}

func (c core) SetUserActive(ctx context.Context, id int64, active bool) error {
	n, err := c.q.exec(ctx, "UPDATE users SET is_active = ? WHERE id = ?", active, id)
	if err != nil {
		return storageErr(err, "store: set user active")
	}
	if n == 0 {
		return eris.Wrapf(model.ErrNotFound, "store: user %d", id)
	}
	return nil
}

func (c core) GetUser(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(c.q.queryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if isNoRows(err) {
		return nil, eris.Wrapf(model.ErrNotFound, "store: user %d", id)
	}
	if err != nil {
		return nil, storageErr(err, "store: get user")
	}
	return u, nil
}

func (c core) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(c.q.queryRow(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username))
	if isNoRows(err) {
		return nil, eris.Wrapf(model.ErrNotFound, "store: user %q", username)
	}
	if err != nil {
		return nil, storageErr(err, "store: get user by username")
	}
	return u, nil
}

func (c core) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := c.q.query(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, storageErr(err, "store: list users")
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, storageErr(err, "store: scan user")
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "store: list users")
	}
	return out, nil
}
