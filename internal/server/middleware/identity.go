package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/collectibles/internal/crypto"
)

// Actor headers set by the identity gateway.
const (
	HeaderActorID        = "X-Actor-ID"
	HeaderActorTimestamp = "X-Actor-Timestamp"
	HeaderActorSignature = "X-Actor-Signature"
)

type actorKey struct{}

// WithActor returns a context carrying the authenticated actor id.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

// ActorID returns the actor id attached by Identity.
func ActorID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(actorKey{}).(string)
	return id, ok && id != ""
}

// Identity attaches the caller's actor id to the request context. A request
// without X-Actor-ID passes through anonymously; handlers that need an actor
// reject it. With a signer, the id must carry a valid gateway signature.
func Identity(signer *crypto.ActorSigner, now func() time.Time, logger *slog.Logger) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := strings.TrimSpace(r.Header.Get(HeaderActorID))
			if actor == "" {
				next.ServeHTTP(w, r)
				return
			}

			if signer != nil {
				err := signer.Verify(actor, r.Header.Get(HeaderActorTimestamp), r.Header.Get(HeaderActorSignature), now())
				if err != nil {
					logger.WarnContext(r.Context(), "identity: rejected actor",
						slog.String("actor_id", actor),
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)
					msg := "invalid actor signature"
					if errors.Is(err, crypto.ErrStaleTimestamp) {
						msg = "stale actor signature"
					}
					writeError(w, http.StatusUnauthorized, msg)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}
