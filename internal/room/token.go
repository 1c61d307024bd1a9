package room

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/kunpitech/quizbuzz/internal/store"
)

// AdvanceToken elects exactly one transition leader per question. The
// claim is a single set-if-empty swap on the room's advanceToken path:
// whichever caller commits the write leads the transition, every
// concurrent caller loses silently and takes no further action.
type AdvanceToken struct {
	store store.Store
}

func NewAdvanceToken(st store.Store) *AdvanceToken {
	return &AdvanceToken{store: st}
}

// Claim attempts to take the token for question q. Exactly one claimant
// per question observes true.
func (t *AdvanceToken) Claim(ctx context.Context, roomID, q string) (bool, error) {
	won, err := t.store.TryCAS(ctx, tokenPath(roomID), nil, encodeString(q))
	if err != nil {
		return false, fmt.Errorf("failed to claim advance token: %w", err)
	}
	if won {
		log.Debug().Str("room_id", roomID).Str("question_id", q).Msg("claimed advance token")
	}
	return won, nil
}

// Clear releases the token. Only the claim winner calls this, after the
// transition's side effects are done and before the next question's
// deadline can be established.
func (t *AdvanceToken) Clear(ctx context.Context, roomID string) error {
	if err := t.store.Delete(ctx, tokenPath(roomID)); err != nil {
		return fmt.Errorf("failed to clear advance token: %w", err)
	}
	return nil
}
