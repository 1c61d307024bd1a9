package room

import (
	"context"
	"testing"

	"github.com/kunpitech/quizbuzz/internal/store"
)

func TestResolve(t *testing.T) {
	members := []string{"p1", "p2"}

	tests := []struct {
		name    string
		correct string
		entries map[string]Answer
		want    string
		wantOK  bool
	}{
		{
			name:    "no entries pending",
			correct: "Mars",
			entries: map[string]Answer{},
		},
		{
			name:    "one wrong answer pending",
			correct: "Mars",
			entries: map[string]Answer{"p2": {Option: "Venus", TS: 1200}},
		},
		{
			name:    "correct answer wins immediately without the other player",
			correct: "Mars",
			entries: map[string]Answer{"p1": {Option: "Mars", TS: 1000}},
			want:    "p1",
			wantOK:  true,
		},
		{
			name:    "earliest correct wins",
			correct: "Mars",
			entries: map[string]Answer{
				"p1": {Option: "Mars", TS: 2000},
				"p2": {Option: "Mars", TS: 1500},
			},
			want:   "p2",
			wantOK: true,
		},
		{
			name:    "earlier incorrect timestamp does not compete",
			correct: "Mars",
			entries: map[string]Answer{
				"p1": {Option: "Mars", TS: 2000},
				"p2": {Option: "Venus", TS: 100},
			},
			want:   "p1",
			wantOK: true,
		},
		{
			name:    "timestamp tie broken by lexical player id",
			correct: "Mars",
			entries: map[string]Answer{
				"p2": {Option: "Mars", TS: 1000},
				"p1": {Option: "Mars", TS: 1000},
			},
			want:   "p1",
			wantOK: true,
		},
		{
			name:    "all sentinels resolve to no one",
			correct: "Mars",
			entries: map[string]Answer{
				"p1": {Option: SentinelTimeUp, TS: 10000},
				"p2": {Option: SentinelTimeUp, TS: 10001},
			},
			want:   NoOne,
			wantOK: true,
		},
		{
			name:    "all wrong resolves to no one",
			correct: "Mars",
			entries: map[string]Answer{
				"p1": {Option: "Venus", TS: 500},
				"p2": {Option: "Jupiter", TS: 700},
			},
			want:   NoOne,
			wantOK: true,
		},
		{
			name:    "one sentinel one missing stays pending",
			correct: "Mars",
			entries: map[string]Answer{"p1": {Option: SentinelTimeUp, TS: 10000}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, ok := Resolve(tt.correct, tt.entries, members)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && outcome.Winner != tt.want {
				t.Errorf("winner = %q, want %q", outcome.Winner, tt.want)
			}
		})
	}
}

func TestResolve_NoMembersPending(t *testing.T) {
	_, ok := Resolve("Mars", map[string]Answer{}, nil)
	if ok {
		t.Error("empty room must not resolve")
	}
}

func TestAnswerLedger_SubmitOncePerPlayer(t *testing.T) {
	st := store.NewMemoryStore()
	ledger := NewAnswerLedger(st)
	ctx := context.Background()

	won, err := ledger.Submit(ctx, "r1", "p1", Answer{Option: "Mars", TS: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if !won {
		t.Fatal("first submit should win")
	}

	won, err = ledger.Submit(ctx, "r1", "p1", Answer{Option: "Venus", TS: 2000})
	if err != nil {
		t.Fatal(err)
	}
	if won {
		t.Error("second submit by same player should be dropped")
	}

	entries, err := ledger.Entries(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("ledger has %d entries, want 1", len(entries))
	}
	if entries["p1"].Option != "Mars" {
		t.Errorf("first write must win, got %q", entries["p1"].Option)
	}
}

func TestAnswerLedger_PersistHistoryFillsSentinel(t *testing.T) {
	st := store.NewMemoryStore()
	ledger := NewAnswerLedger(st)
	ctx := context.Background()

	entries := map[string]Answer{"p1": {Option: "Mars", TS: 1000}}
	if err := ledger.PersistHistory(ctx, "r1", "Q1", entries, []string{"p1", "p2"}); err != nil {
		t.Fatal(err)
	}

	raw, _ := st.Get(ctx, "rooms/r1/answersHistory/Q1/p1")
	if decodeString(raw) != "Mars" {
		t.Errorf("history for p1 = %q, want Mars", decodeString(raw))
	}
	raw, _ = st.Get(ctx, "rooms/r1/answersHistory/Q1/p2")
	if decodeString(raw) != SentinelTimeUp {
		t.Errorf("history for p2 = %q, want sentinel", decodeString(raw))
	}
}

func TestAnswerLedger_PersistHistoryNeverOverwrites(t *testing.T) {
	st := store.NewMemoryStore()
	ledger := NewAnswerLedger(st)
	ctx := context.Background()

	first := map[string]Answer{"p1": {Option: "Mars", TS: 1000}}
	if err := ledger.PersistHistory(ctx, "r1", "Q1", first, []string{"p1"}); err != nil {
		t.Fatal(err)
	}
	second := map[string]Answer{"p1": {Option: "Venus", TS: 2000}}
	if err := ledger.PersistHistory(ctx, "r1", "Q1", second, []string{"p1"}); err != nil {
		t.Fatal(err)
	}

	raw, _ := st.Get(ctx, "rooms/r1/answersHistory/Q1/p1")
	if decodeString(raw) != "Mars" {
		t.Errorf("history overwritten: got %q, want Mars", decodeString(raw))
	}
}
