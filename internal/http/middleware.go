package http

import (
	"context"
	"net/http"

	"github.com/fjod/smartcart/internal/domain"
	"github.com/fjod/smartcart/internal/session"
	"go.uber.org/zap"
)

type identityKey struct{}

// RequireCapability rejects requests whose session may not use c and puts
// the identity in the request context otherwise.
func RequireCapability(sess *session.Engine, c session.Capability, log *zap.Logger) func(http.Handler) http.Handler {
	rs := responder{log: log}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := sess.Authorize(c)
			if err != nil {
				rs.handleError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), identityKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func identityFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(domain.Identity)
	return id, ok
}
