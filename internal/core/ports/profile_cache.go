package ports

import "context"

// ProfileCache is an optional read-through cache for user profiles keyed by
// username. A miss is reported as (nil, nil).
//
// Every key carries a generation that Invalidate advances. A reader takes
// the generation before loading from the store and passes it to Set, which
// skips the write if the key was invalidated in between. A slow reader thus
// cannot put back a profile that a concurrent rename has already evicted.
type ProfileCache interface {
	Get(ctx context.Context, username string) (*UserProfile, error)
	Generation(ctx context.Context, username string) (int64, error)
	Set(ctx context.Context, profile *UserProfile, generation int64) error
	Invalidate(ctx context.Context, usernames ...string) error
}
