package matchmaker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kunpitech/quizbuzz/internal/store"
)

const (
	waitingPath     = "waiting"
	assignmentsPath = "waitingAssignments"
)

func assignmentPath(playerID string) string {
	return store.Join(assignmentsPath, playerID)
}

// Matchmaker pairs two waiting players into a room through a single
// shared waiting slot. There is no broker process: the second player to
// look at the slot creates the room and assigns both sides.
type Matchmaker struct {
	store store.Store
}

func New(st store.Store) *Matchmaker {
	return &Matchmaker{store: st}
}

// JoinGame enters playerID into matchmaking and returns a stream that
// emits the assigned room id. The assignment may be written by the other
// joining client, which is why the subscription is established before the
// slot is ever touched.
func (m *Matchmaker) JoinGame(ctx context.Context, playerID string) (<-chan string, error) {
	events, err := m.store.Watch(ctx, assignmentPath(playerID))
	if err != nil {
		return nil, fmt.Errorf("failed to watch assignment: %w", err)
	}

	assigned := make(chan string, 1)
	go func() {
		defer close(assigned)
		seen := ""
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				raw, err := m.store.Get(ctx, assignmentPath(playerID))
				if err != nil {
					log.Error().Err(err).Str("player_id", playerID).Msg("failed to read assignment")
					continue
				}
				roomID := decodeString(raw)
				if roomID == "" || roomID == seen {
					continue
				}
				seen = roomID
				select {
				case assigned <- roomID:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	if err := m.tryMatch(ctx, playerID); err != nil {
		return nil, err
	}
	return assigned, nil
}

// tryMatch reads the waiting slot once. Empty slot: claim it and wait to
// be assigned by the next joiner. Occupied slot: create the room, assign
// both players, then clear the slot with a CAS guard so two racing
// readers cannot both consume the same waiting partner.
func (m *Matchmaker) tryMatch(ctx context.Context, playerID string) error {
	raw, err := m.store.Get(ctx, waitingPath)
	if err != nil {
		return fmt.Errorf("failed to read waiting slot: %w", err)
	}
	other := decodeString(raw)

	if other == playerID {
		return nil // already waiting from a previous attempt
	}
	if other == "" {
		claimed, err := m.store.TryCAS(ctx, waitingPath, nil, encodeString(playerID))
		if err != nil {
			return fmt.Errorf("failed to claim waiting slot: %w", err)
		}
		if claimed {
			log.Info().Str("player_id", playerID).Msg("waiting for an opponent")
			return nil
		}
		// Someone else claimed the slot in between; re-read it and pair
		// with them instead.
		return m.tryMatch(ctx, playerID)
	}

	// Clear the slot before assigning: losing this CAS means another
	// reader already matched the waiting player, and this room would be a
	// duplicate nobody observes.
	cleared, err := m.store.TryCAS(ctx, waitingPath, raw, nil)
	if err != nil {
		return fmt.Errorf("failed to clear waiting slot: %w", err)
	}
	if !cleared {
		log.Debug().
			Str("player_id", playerID).
			Str("other_player", other).
			Msg("lost matchmaking race, retrying")
		return m.tryMatch(ctx, playerID)
	}

	roomID := uuid.New().String()
	log.Info().
		Str("room_id", roomID).
		Str("player_id", playerID).
		Str("other_player", other).
		Msg("paired players into room")

	if err := m.store.Put(ctx, assignmentPath(other), encodeString(roomID)); err != nil {
		return fmt.Errorf("failed to assign room to %s: %w", other, err)
	}
	if err := m.store.Put(ctx, assignmentPath(playerID), encodeString(roomID)); err != nil {
		return fmt.Errorf("failed to assign room to %s: %w", playerID, err)
	}
	return nil
}

// Leave withdraws playerID from matchmaking: the assignment entry is
// removed and the waiting slot released if this player holds it.
func (m *Matchmaker) Leave(ctx context.Context, playerID string) error {
	if err := m.store.Delete(ctx, assignmentPath(playerID)); err != nil {
		return fmt.Errorf("failed to clear assignment: %w", err)
	}
	if _, err := m.store.TryCAS(ctx, waitingPath, encodeString(playerID), nil); err != nil {
		return fmt.Errorf("failed to release waiting slot: %w", err)
	}
	return nil
}
