package directory

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicops/backoffice/internal/platform/cache"
)

const identityKeyPrefix = "identity:"

// CachedIdentityResolver is a read-through cache in front of another
// resolver. Only hits are cached; a miss is always asked again. Cache errors
// fall through to the underlying resolver.
type CachedIdentityResolver struct {
	next   IdentityResolver
	store  cache.Store
	ttl    time.Duration
	logger zerolog.Logger
}

func NewCachedIdentityResolver(next IdentityResolver, store cache.Store, ttl time.Duration, logger zerolog.Logger) *CachedIdentityResolver {
	return &CachedIdentityResolver{next: next, store: store, ttl: ttl, logger: logger}
}

func (r *CachedIdentityResolver) ResolveUserID(ctx context.Context, token string) (int64, error) {
	key := identityKeyPrefix + token
	raw, err := r.store.Get(ctx, key)
	switch {
	case err == nil:
		if id, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			return id, nil
		}
		r.logger.Warn().Str("key", key).Str("value", raw).Msg("discarding malformed cached identity")
	case !errors.Is(err, cache.ErrMiss):
		r.logger.Warn().Err(err).Str("key", key).Msg("identity cache read failed")
	}

	id, err := r.next.ResolveUserID(ctx, token)
	if err != nil {
		return 0, err
	}
	if err := r.store.Set(ctx, key, strconv.FormatInt(id, 10), r.ttl); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("identity cache write failed")
	}
	return id, nil
}
