// internal/auth/context.go
//
// Authenticated-user helpers.  The session middleware attaches a User to the
// request context; handlers and stores read it back instead of reaching for
// any process-wide state.
//
// Usage
// -----
//     ctx = auth.WithUser(ctx, auth.User{ID: 123, Email: "jane@example.com"})
//
//     u, ok := auth.UserFromContext(ctx)   // {123 jane@example.com}, true
//
// Notes
// -----
// • A zero ID is never a valid user; UserFromContext reports ok == false.
// • Oxford commas, two spaces after periods.

package auth

import "context"

// User is the minimal identity carried per request.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// userKey is unexported to avoid context-key collisions.
type userKey struct{}

// WithUser returns a new context carrying u.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext extracts the User from ctx.  It returns false if no user
// is set.
func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey{}).(User)
	if !ok || u.ID == 0 {
		return User{}, false
	}
	return u, true
}

// UserID is shorthand for UserFromContext(ctx).ID.
func UserID(ctx context.Context) (int64, bool) {
	u, ok := UserFromContext(ctx)
	return u.ID, ok
}
