package app

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/realsarius/ecommerce-belediye-testcase-sub002/internal/domain"
)

const defaultLockTTL = 10 * time.Second

func productLockKey(productID int64) string {
	return fmt.Sprintf("lock:product:%d", productID)
}

// productLockKeys returns one key per distinct product, ordered by id.
func productLockKeys(productIDs []int64) []string {
	ids := slices.Clone(productIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, productLockKey(id))
	}
	return keys
}

func sortedProductIDs(quantities map[int64]int) []int64 {
	ids := make([]int64, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// withLocks acquires keys in the given order, runs fn and releases all
// acquired keys on every path. Callers pass keys in one global order so two
// overlapping callers cannot deadlock. Contention yields ErrSystemBusy.
func withLocks(ctx context.Context, locker Locker, keys []string, ttl time.Duration, fn func(ctx context.Context) error) error {
	ordered := unique(keys)

	type held struct{ key, token string }
	acquired := make([]held, 0, len(ordered))
	defer func() {
		// Release even if ctx was cancelled mid-flight.
		releaseCtx := context.WithoutCancel(ctx)
		for i := len(acquired) - 1; i >= 0; i-- {
			if err := locker.Release(releaseCtx, acquired[i].key, acquired[i].token); err != nil {
				log.Warn().Err(err).Str("lock", acquired[i].key).Msg("release lock")
			}
		}
	}()

	for _, key := range ordered {
		token, ok, err := locker.Acquire(ctx, key, ttl)
		if err != nil {
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if !ok {
			log.Info().Str("lock", key).Msg("lock busy")
			return domain.ErrSystemBusy
		}
		acquired = append(acquired, held{key: key, token: token})
	}

	return fn(ctx)
}

func unique(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
