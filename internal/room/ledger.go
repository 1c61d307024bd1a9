package room

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/kunpitech/quizbuzz/internal/store"
)

// AnswerLedger collects per-player submissions for the active question.
// Entries are write-once: a player's first write wins and later writes
// (including a racing local sentinel) are dropped.
type AnswerLedger struct {
	store store.Store
}

func NewAnswerLedger(st store.Store) *AnswerLedger {
	return &AnswerLedger{store: st}
}

// Submit records playerID's answer. Returns false when the player already
// has an entry for the active question.
func (l *AnswerLedger) Submit(ctx context.Context, roomID, playerID string, a Answer) (bool, error) {
	won, err := l.store.TryCAS(ctx, answerPath(roomID, playerID), nil, encodeAnswer(a))
	if err != nil {
		return false, fmt.Errorf("failed to submit answer: %w", err)
	}
	if !won {
		log.Debug().
			Str("room_id", roomID).
			Str("player_id", playerID).
			Str("option", a.Option).
			Msg("duplicate answer dropped")
	}
	return won, nil
}

// Entries reads the current ledger as playerID → Answer.
func (l *AnswerLedger) Entries(ctx context.Context, roomID string) (map[string]Answer, error) {
	raw, err := l.store.List(ctx, answersPath(roomID))
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}

	out := make(map[string]Answer, len(raw))
	for path, v := range raw {
		out[lastSegment(path)] = decodeAnswer(v)
	}
	return out, nil
}

// Clear removes every ledger entry. Leader-only, during the advance.
func (l *AnswerLedger) Clear(ctx context.Context, roomID string) error {
	if err := l.store.Delete(ctx, answersPath(roomID)); err != nil {
		return fmt.Errorf("failed to clear answers: %w", err)
	}
	return nil
}

// PersistHistory appends the question's answers to the permanent record,
// filling the sentinel for members without a ledger entry. Writes are
// set-if-empty so concurrent leaders-elect and retries never overwrite an
// existing record.
func (l *AnswerLedger) PersistHistory(ctx context.Context, roomID, q string, entries map[string]Answer, members []string) error {
	for _, p := range members {
		option := SentinelTimeUp
		if a, ok := entries[p]; ok {
			option = a.Option
		}
		if _, err := l.store.TryCAS(ctx, historyPath(roomID, q, p), nil, encodeString(option)); err != nil {
			return fmt.Errorf("failed to persist history for %s: %w", p, err)
		}
	}
	return nil
}

// Outcome is the resolver's decision for a question.
type Outcome struct {
	// Winner holds the earliest correct submitter, or NoOne.
	Winner string
}

// Resolve applies the resolution policy to the ledger:
//
//  1. Any correct entry: the earliest correct submission wins, ties broken
//     by lexical player id. Fires without waiting for the other player.
//  2. Otherwise, once every member has an entry (option or sentinel), the
//     outcome is NoOne.
//  3. Otherwise the ledger stays pending.
func Resolve(correct string, entries map[string]Answer, members []string) (Outcome, bool) {
	winner := ""
	var winnerTS int64
	for _, p := range sortedIDs(entries) {
		a := entries[p]
		if a.Option != correct || correct == "" {
			continue
		}
		if winner == "" || a.TS < winnerTS {
			winner = p
			winnerTS = a.TS
		}
	}
	if winner != "" {
		return Outcome{Winner: winner}, true
	}

	if len(members) == 0 {
		return Outcome{}, false
	}
	for _, p := range members {
		if _, ok := entries[p]; !ok {
			return Outcome{}, false
		}
	}
	return Outcome{Winner: NoOne}, true
}
