package auth

import "context"

type contextKey struct{}

// AuthContext identifies the signed-in user of a request. Requests without
// a valid session carry no AuthContext and are treated as visitors.
type AuthContext struct {
	UserID    int64
	SessionID int64
	Email     string
	Admin     bool
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

// IsAdmin reports whether the request belongs to a user holding an admins
// record at the time the session was resolved.
func IsAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Admin
}
