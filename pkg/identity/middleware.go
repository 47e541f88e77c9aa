package identity

import (
	"context"
	"net/http"
	"strings"

	"git.sr.ht/~jakintosh/ssoguard/pkg/api"
)

// HeaderUserToken is the header gateways forward the user's access token in.
const HeaderUserToken = "x-authenticated-user-token"

type contextKey struct{}

// TokenFromRequest returns the access token from the user token header, or
// from an "Authorization: Bearer" header when that is absent.
func TokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(HeaderUserToken)); token != "" {
		return token
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserID returns the user id Middleware stored in ctx.
func UserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(contextKey{}).(string)
	return userID, ok
}

// Middleware rejects requests without a valid token, answering with the
// failed api.Response, and passes the rest on with the user id in their
// context.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		res := api.NewResponse("api.identity.verify")
		userID := r.FetchUserID(TokenFromRequest(req), res)
		if res.Failed() {
			res.Write(w)
			return
		}
		next.ServeHTTP(w, req.WithContext(WithUserID(req.Context(), userID)))
	})
}
