package room

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/kunpitech/quizbuzz/internal/questions"
	"github.com/kunpitech/quizbuzz/internal/store"
)

// StateMachine owns a room's lifecycle transitions at the store boundary:
// seeding the question order, tracking membership, and the leader-side
// advance that moves every observer to the next question.
type StateMachine struct {
	store store.Store
	bank  *questions.Bank
	cfg   Config
}

func NewStateMachine(st store.Store, bank *questions.Bank, cfg Config) *StateMachine {
	return &StateMachine{store: st, bank: bank, cfg: cfg}
}

// EnsureStarted performs the Lobby → Active(q0) transition: set-if-empty
// writes for questionOrder and the first currentQuestion. Both clients
// run this on join; whichever commits first seeds the room and the other
// adopts the stored values.
func (m *StateMachine) EnsureStarted(ctx context.Context, roomID string) error {
	fresh := m.bank.Order(m.cfg.QuestionCount)
	seeded, err := m.store.TryCAS(ctx, orderPath(roomID), nil, encodeStrings(fresh))
	if err != nil {
		return fmt.Errorf("failed to seed question order: %w", err)
	}

	order, err := m.Order(ctx, roomID)
	if err != nil {
		return err
	}
	if len(order) == 0 {
		return fmt.Errorf("room %s has an empty question order", roomID)
	}

	if _, err := m.store.TryCAS(ctx, currentPath(roomID), nil, encodeString(order[0])); err != nil {
		return fmt.Errorf("failed to seed current question: %w", err)
	}

	if seeded {
		log.Info().
			Str("room_id", roomID).
			Int("questions", len(order)).
			Str("first_question", order[0]).
			Msg("room seeded")
	}
	return nil
}

// Order reads the room's fixed question order.
func (m *StateMachine) Order(ctx context.Context, roomID string) ([]string, error) {
	raw, err := m.store.Get(ctx, orderPath(roomID))
	if err != nil {
		return nil, fmt.Errorf("failed to read question order: %w", err)
	}
	return decodeStrings(raw), nil
}

// Current reads the room's current question id, "" when unseeded.
func (m *StateMachine) Current(ctx context.Context, roomID string) (string, error) {
	raw, err := m.store.Get(ctx, currentPath(roomID))
	if err != nil {
		return "", fmt.Errorf("failed to read current question: %w", err)
	}
	return decodeString(raw), nil
}

// Members reads the room's present players, sorted.
func (m *StateMachine) Members(ctx context.Context, roomID string) ([]string, error) {
	entries, err := m.store.List(ctx, playersPath(roomID))
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	byID := make(map[string]struct{}, len(entries))
	for path := range entries {
		byID[lastSegment(path)] = struct{}{}
	}
	return sortedIDs(byID), nil
}

// Join registers a player's presence in the room.
func (m *StateMachine) Join(ctx context.Context, roomID, playerID string) error {
	if err := m.store.Put(ctx, playerPath(roomID, playerID), []byte("true")); err != nil {
		return fmt.Errorf("failed to register player: %w", err)
	}
	return nil
}

// Leave removes a player's presence. Room teardown beyond this is owned
// by the surrounding application.
func (m *StateMachine) Leave(ctx context.Context, roomID, playerID string) error {
	if err := m.store.Delete(ctx, playerPath(roomID, playerID)); err != nil {
		return fmt.Errorf("failed to remove player: %w", err)
	}
	return nil
}

// Advance performs the Grading → Advancing → Active(next) cleanup. Only
// the token winner calls this, after the result display hold. Ephemeral
// state goes first; the token is cleared before the next currentQuestion
// is published so it is always empty by the time any observer establishes
// the next deadline.
func (m *StateMachine) Advance(ctx context.Context, roomID, q string) error {
	order, err := m.Order(ctx, roomID)
	if err != nil {
		return err
	}
	next := NextQuestion(order, q)

	if err := m.store.Delete(ctx, answersPath(roomID)); err != nil {
		return fmt.Errorf("failed to clear answers: %w", err)
	}
	if err := m.store.Delete(ctx, resultPath(roomID)); err != nil {
		return fmt.Errorf("failed to clear result: %w", err)
	}
	if err := m.store.Delete(ctx, deadlinePath(roomID)); err != nil {
		return fmt.Errorf("failed to clear deadline: %w", err)
	}
	if err := m.store.Delete(ctx, tokenPath(roomID)); err != nil {
		return fmt.Errorf("failed to clear advance token: %w", err)
	}
	if err := m.store.Put(ctx, currentPath(roomID), encodeString(next)); err != nil {
		return fmt.Errorf("failed to publish next question: %w", err)
	}

	log.Info().
		Str("room_id", roomID).
		Str("question_id", q).
		Str("next_question", next).
		Msg("room advanced")
	return nil
}
