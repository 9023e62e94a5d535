package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"slices"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/sells-group/sample-labeler/internal/model"
)

// loginCache remembers recently verified Basic credentials so each request
// does not pay for a bcrypt comparison. Entries are keyed by username and a
// digest of the password, so a changed password never hits a stale entry.
// A nil loginCache caches nothing.
type loginCache struct {
	users *gocache.Cache
}

func newLoginCache(ttl time.Duration) *loginCache {
	if ttl <= 0 {
		return nil
	}
	return &loginCache{users: gocache.New(ttl, 2*ttl)}
}

func loginKey(username, password string) string {
	sum := sha256.Sum256([]byte(password))
	return username + "\x00" + hex.EncodeToString(sum[:])
}

func (c *loginCache) get(username, password string) (*model.User, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.users.Get(loginKey(username, password))
	if !ok {
		return nil, false
	}
	u := v.(model.User)
	return &u, true
}

func (c *loginCache) put(username, password string, u *model.User) {
	if c == nil {
		return
	}
	c.users.SetDefault(loginKey(username, password), *u)
}

// flush drops every entry. Called whenever an account changes.
func (c *loginCache) flush() {
	if c == nil {
		return
	}
	c.users.Flush()
}

type ctxKey struct{}

// userFrom returns the authenticated user stored by basicAuth.
func userFrom(ctx context.Context) *model.User {
	u, _ := ctx.Value(ctxKey{}).(*model.User)
	return u
}

func withUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// basicAuth resolves HTTP Basic credentials to an active user. Verified
// logins are reused for Config.AuthCacheTTL.
func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="labeler"`)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
			return
		}
		user, ok := s.logins.get(username, password)
		if !ok {
			var err error
			user, err = s.users.Authenticate(r.Context(), username, password)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="labeler"`)
				writeError(w, r, err)
				return
			}
			s.logins.put(username, password, user)
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// requireRole rejects users whose role is not listed.
func requireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := userFrom(r.Context())
			if u == nil || !slices.Contains(roles, u.Role) {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "insufficient role"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
