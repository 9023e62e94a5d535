package model

import (
	"encoding/json"
	"slices"
	"strings"
)

// Role is a user's permission tier.
type Role string

const (
	RoleDataAdmin Role = "Data_admin"
	RoleBUAdmin   Role = "BU_admin"
	RoleLabeller  Role = "Labeller"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleDataAdmin, RoleBUAdmin, RoleLabeller:
		return true
	default:
		return false
	}
}

// AllowList restricts visibility to a set of values. A nil AllowList means
// the restriction is absent and everything is allowed; a non-nil empty list
// allows nothing.
type AllowList []string

// Absent reports whether the list places no restriction.
func (l AllowList) Absent() bool {
	return l == nil
}

// Allows reports whether v passes the list. A NULL value only passes an
// absent list.
func (l AllowList) Allows(v *string) bool {
	if l == nil {
		return true
	}
	if v == nil {
		return false
	}
	return slices.Contains(l, *v)
}

// Sorted returns a sorted, de-duplicated copy. Absent stays absent.
func (l AllowList) Sorted() AllowList {
	if l == nil {
		return nil
	}
	out := slices.Clone(l)
	slices.Sort(out)
	return slices.Compact(out)
}

// key renders the canonical cache-key form: "*" when absent, a JSON array
// of the sorted values otherwise (so an empty list is "[]").
func (l AllowList) key() string {
	if l == nil {
		return "*"
	}
	b, _ := json.Marshal([]string(l.Sorted()))
	return string(b)
}

// Scope is the category/brand permission scope of a user.
type Scope struct {
	Categories AllowList `json:"categories"`
	Brands     AllowList `json:"brands"`
}

// Unrestricted is the scope of a user with full access.
var Unrestricted = Scope{}

// Permits reports whether a sample with the given category and brand is
// visible in the scope.
func (s Scope) Permits(category, brand *string) bool {
	return s.Categories.Allows(category) && s.Brands.Allows(brand)
}

// Canonical returns the scope with both lists sorted.
func (s Scope) Canonical() Scope {
	return Scope{Categories: s.Categories.Sorted(), Brands: s.Brands.Sorted()}
}

// Key returns a stable identity for the scope. Two scopes with the same
// sets in any order share a key; absent and empty lists never collide.
func (s Scope) Key() string {
	var b strings.Builder
	b.WriteString("cats=")
	b.WriteString(s.Categories.key())
	b.WriteString(";brands=")
	b.WriteString(s.Brands.key())
	return b.String()
}

// User is a principal with a role and a permission scope.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	RealName     string    `json:"real_name"`
	Role         Role      `json:"role"`
	CategoryArr  AllowList `json:"category_arr"`
	BrandArr     AllowList `json:"brand_arr"`
	IsActive     bool      `json:"is_active"`
}

// Scope returns the user's canonical permission scope.
func (u *User) Scope() Scope {
	return Scope{Categories: u.CategoryArr, Brands: u.BrandArr}.Canonical()
}

// Permits reports whether the user may see a sample with the given
// category and brand.
func (u *User) Permits(category, brand *string) bool {
	return u.Scope().Permits(category, brand)
}

// IsDataAdmin reports whether the user administers data and users.
func (u *User) IsDataAdmin() bool {
	return u.Role == RoleDataAdmin
}
