package room

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/kunpitech/quizbuzz/internal/store"
)

// ScoreBoard accumulates per-player scores with read-increment-write
// swaps, retried until they commit. Contention is bounded: a room has two
// players and at most one increment per question.
type ScoreBoard struct {
	store store.Store
}

func NewScoreBoard(st store.Store) *ScoreBoard {
	return &ScoreBoard{store: st}
}

const maxIncrementAttempts = 16

// Increment adds one to playerID's score.
func (s *ScoreBoard) Increment(ctx context.Context, roomID, playerID string) error {
	path := scorePath(roomID, playerID)

	for attempt := 0; attempt < maxIncrementAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, err := s.store.Get(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to read score: %w", err)
		}
		cur := decodeInt(raw, 0)

		var won bool
		if raw == nil {
			won, err = s.store.TryCAS(ctx, path, nil, encodeInt(1))
		} else {
			won, err = s.store.TryCAS(ctx, path, raw, encodeInt(cur+1))
		}
		if err != nil {
			return fmt.Errorf("failed to commit score: %w", err)
		}
		if won {
			log.Debug().
				Str("room_id", roomID).
				Str("player_id", playerID).
				Int64("score", cur+1).
				Msg("score incremented")
			return nil
		}
	}
	return fmt.Errorf("score increment for %s did not commit after %d attempts", playerID, maxIncrementAttempts)
}

// EnsureZero initializes a player's score entry if absent, so scoreboards
// render both players from the first question.
func (s *ScoreBoard) EnsureZero(ctx context.Context, roomID, playerID string) error {
	_, err := s.store.TryCAS(ctx, scorePath(roomID, playerID), nil, encodeInt(0))
	if err != nil {
		return fmt.Errorf("failed to initialize score: %w", err)
	}
	return nil
}

// Scores reads the room's score map.
func (s *ScoreBoard) Scores(ctx context.Context, roomID string) (map[string]int64, error) {
	entries, err := s.store.List(ctx, scoresPath(roomID))
	if err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}

	out := make(map[string]int64)
	for path, raw := range entries {
		if lastSegment(path) != "score" {
			continue
		}
		// rooms/{r}/userScore/{playerId}/score
		parts := splitPath(path)
		if len(parts) < 2 {
			continue
		}
		playerID := parts[len(parts)-2]
		out[playerID] = decodeInt(raw, 0)
	}
	return out, nil
}
