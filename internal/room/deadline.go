package room

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/kunpitech/quizbuzz/internal/store"
)

// DeadlineClock establishes one canonical absolute deadline per question.
// The first writer wins; every observer adopts the stored instant, so
// local countdowns agree regardless of which client proposed it or when
// it joined. Skew between a client's clock and the store's clock is not
// corrected.
type DeadlineClock struct {
	store store.Store
	clock clockwork.Clock
	cfg   Config
}

func NewDeadlineClock(st store.Store, clock clockwork.Clock, cfg Config) *DeadlineClock {
	return &DeadlineClock{store: st, clock: clock, cfg: cfg}
}

// Ensure proposes now+QuestionDuration for the room's current question
// and returns whatever deadline actually ended up in the store.
func (d *DeadlineClock) Ensure(ctx context.Context, roomID string) (time.Time, error) {
	desired := d.clock.Now().Add(d.cfg.QuestionDuration)
	path := deadlinePath(roomID)

	won, err := d.store.TryCAS(ctx, path, nil, encodeInt(desired.UnixMilli()))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to propose deadline: %w", err)
	}

	raw, err := d.store.Get(ctx, path)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read deadline: %w", err)
	}
	stored := time.UnixMilli(decodeInt(raw, desired.UnixMilli()))

	log.Debug().
		Str("room_id", roomID).
		Bool("proposed", won).
		Time("deadline", stored).
		Msg("question deadline established")
	return stored, nil
}

// Remaining converts the shared absolute deadline into a local countdown.
func (d *DeadlineClock) Remaining(deadline time.Time) time.Duration {
	rem := deadline.Sub(d.clock.Now())
	if rem < 0 {
		return 0
	}
	return rem
}
