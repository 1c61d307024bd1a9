package room

import (
	"context"
	"sync"
	"testing"

	"github.com/kunpitech/quizbuzz/internal/store"
)

func TestNextQuestion(t *testing.T) {
	order := []string{"Q3", "Q1", "Q2"}

	tests := []struct {
		q    string
		want string
	}{
		{"Q3", "Q1"},
		{"Q1", "Q2"},
		{"Q2", Finished}, // last question, never an out-of-range index
		{"Q9", Finished}, // absent from order
	}
	for _, tt := range tests {
		if got := NextQuestion(order, tt.q); got != tt.want {
			t.Errorf("NextQuestion(%q) = %q, want %q", tt.q, got, tt.want)
		}
	}
}

func TestStateMachine_EnsureStartedIdempotent(t *testing.T) {
	st := store.NewMemoryStore()
	cfg := DefaultConfig()
	cfg.QuestionCount = 3
	ctx := context.Background()

	// Two clients race the seeding transaction.
	m1 := NewStateMachine(st, testBank(t, 5), cfg)
	m2 := NewStateMachine(st, testBank(t, 5), cfg)

	var wg sync.WaitGroup
	for _, m := range []*StateMachine{m1, m2} {
		wg.Add(1)
		go func(m *StateMachine) {
			defer wg.Done()
			if err := m.EnsureStarted(ctx, "r1"); err != nil {
				t.Error(err)
			}
		}(m)
	}
	wg.Wait()

	order, err := m1.Order(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(order) != 3 {
		t.Fatalf("order length = %d, want 3", len(order))
	}

	cur, err := m1.Current(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if cur != order[0] {
		t.Errorf("currentQuestion = %q, want first of order %q", cur, order[0])
	}

	// Running it again must not reshuffle.
	if err := m2.EnsureStarted(ctx, "r1"); err != nil {
		t.Fatal(err)
	}
	again, _ := m2.Order(ctx, "r1")
	for i := range order {
		if order[i] != again[i] {
			t.Fatalf("order changed on re-seed: %v vs %v", order, again)
		}
	}
}

func TestStateMachine_Membership(t *testing.T) {
	st := store.NewMemoryStore()
	m := NewStateMachine(st, testBank(t, 3), DefaultConfig())
	ctx := context.Background()

	m.Join(ctx, "r1", "p2")
	m.Join(ctx, "r1", "p1")

	members, err := m.Members(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 || members[0] != "p1" || members[1] != "p2" {
		t.Errorf("members = %v, want sorted [p1 p2]", members)
	}

	m.Leave(ctx, "r1", "p1")
	members, _ = m.Members(ctx, "r1")
	if len(members) != 1 || members[0] != "p2" {
		t.Errorf("members after leave = %v, want [p2]", members)
	}
}

func TestStateMachine_AdvanceClearsEphemeralState(t *testing.T) {
	st := store.NewMemoryStore()
	cfg := DefaultConfig()
	cfg.QuestionCount = 2
	m := NewStateMachine(st, testBank(t, 2), cfg)
	ctx := context.Background()

	if err := m.EnsureStarted(ctx, "r1"); err != nil {
		t.Fatal(err)
	}
	order, _ := m.Order(ctx, "r1")
	q := order[0]

	st.Put(ctx, "rooms/r1/answers/p1", []byte(`{"option":"Mars","ts":1}`))
	st.Put(ctx, "rooms/r1/result", []byte(`"p1"`))
	st.Put(ctx, "rooms/r1/questionDeadline", []byte(`123456`))
	st.Put(ctx, "rooms/r1/advanceToken", []byte(`"`+q+`"`))

	if err := m.Advance(ctx, "r1", q); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{
		"rooms/r1/answers/p1",
		"rooms/r1/result",
		"rooms/r1/questionDeadline",
		"rooms/r1/advanceToken",
	} {
		if v, _ := st.Get(ctx, path); v != nil {
			t.Errorf("%s not cleared by advance", path)
		}
	}

	cur, _ := m.Current(ctx, "r1")
	if cur != order[1] {
		t.Errorf("currentQuestion = %q, want %q", cur, order[1])
	}

	// Advancing past the last question reaches the terminal sentinel.
	if err := m.Advance(ctx, "r1", order[1]); err != nil {
		t.Fatal(err)
	}
	cur, _ = m.Current(ctx, "r1")
	if cur != Finished {
		t.Errorf("currentQuestion = %q, want %q", cur, Finished)
	}
}
