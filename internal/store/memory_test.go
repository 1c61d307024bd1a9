package store

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_GetPutDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	got, err := s.Get(ctx, "rooms/r1/currentQuestion")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("Get on absent path = %q, want nil", got)
	}

	if err := s.Put(ctx, "rooms/r1/currentQuestion", []byte(`"Q1"`)); err != nil {
		t.Fatal(err)
	}
	got, err = s.Get(ctx, "rooms/r1/currentQuestion")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `"Q1"` {
		t.Errorf("Get = %q, want %q", got, `"Q1"`)
	}

	if err := s.Delete(ctx, "rooms/r1/currentQuestion"); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Get(ctx, "rooms/r1/currentQuestion")
	if got != nil {
		t.Error("value should be gone after Delete")
	}
}

func TestMemoryStore_DeleteSubtree(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Put(ctx, "rooms/r1/answers/p1", []byte(`{"option":"Mars","ts":1}`))
	s.Put(ctx, "rooms/r1/answers/p2", []byte(`{"option":"Venus","ts":2}`))
	s.Put(ctx, "rooms/r1/result", []byte(`"p1"`))

	if err := s.Delete(ctx, "rooms/r1/answers"); err != nil {
		t.Fatal(err)
	}

	entries, err := s.List(ctx, "rooms/r1/answers")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("answers subtree should be empty, got %d entries", len(entries))
	}
	if v, _ := s.Get(ctx, "rooms/r1/result"); v == nil {
		t.Error("sibling path should survive subtree delete")
	}
}

func TestMemoryStore_List(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Put(ctx, "rooms/r1/answers/p1", []byte(`1`))
	s.Put(ctx, "rooms/r1/answers/p2", []byte(`2`))
	s.Put(ctx, "rooms/r2/answers/p3", []byte(`3`))

	entries, err := s.List(ctx, "rooms/r1/answers")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(entries))
	}
	if string(entries["rooms/r1/answers/p1"]) != `1` {
		t.Errorf("unexpected value for p1: %q", entries["rooms/r1/answers/p1"])
	}
}

func TestMemoryStore_TryCAS(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// set-if-empty
	won, err := s.TryCAS(ctx, "waiting", nil, []byte(`"p1"`))
	if err != nil {
		t.Fatal(err)
	}
	if !won {
		t.Fatal("set-if-empty on absent path should win")
	}

	won, _ = s.TryCAS(ctx, "waiting", nil, []byte(`"p2"`))
	if won {
		t.Error("set-if-empty on occupied path should lose")
	}
	if v, _ := s.Get(ctx, "waiting"); string(v) != `"p1"` {
		t.Errorf("losing CAS must not mutate, got %q", v)
	}

	// guarded replace
	won, _ = s.TryCAS(ctx, "waiting", []byte(`"p2"`), []byte(`"p3"`))
	if won {
		t.Error("CAS with wrong expected value should lose")
	}
	won, _ = s.TryCAS(ctx, "waiting", []byte(`"p1"`), []byte(`"p3"`))
	if !won {
		t.Error("CAS with matching expected value should win")
	}

	// guarded delete
	won, _ = s.TryCAS(ctx, "waiting", []byte(`"p3"`), nil)
	if !won {
		t.Error("CAS delete with matching expected value should win")
	}
	if v, _ := s.Get(ctx, "waiting"); v != nil {
		t.Error("path should be gone after CAS delete")
	}
}

func TestMemoryStore_TryCASConcurrent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	wins := make(chan int, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			won, err := s.TryCAS(ctx, "rooms/r1/advanceToken", nil, []byte(`"Q1"`))
			if err != nil {
				t.Error(err)
				return
			}
			if won {
				wins <- i
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Errorf("%d concurrent CAS winners, want exactly 1", count)
	}
}

func TestMemoryStore_Watch(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := s.Watch(ctx, "rooms/r1")
	if err != nil {
		t.Fatal(err)
	}

	// Initial event arrives without any write.
	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("no initial watch event")
	}

	s.Put(ctx, "rooms/r1/answers/p1", []byte(`1`))

	select {
	case ev := <-events:
		if ev.Path != "rooms/r1/answers/p1" {
			t.Errorf("event path = %q", ev.Path)
		}
		if ev.Deleted {
			t.Error("put event marked deleted")
		}
	case <-time.After(time.Second):
		t.Fatal("no event for write under watched prefix")
	}

	// Writes outside the prefix are not delivered.
	s.Put(ctx, "rooms/r2/answers/p1", []byte(`1`))
	select {
	case ev := <-events:
		t.Errorf("unexpected event for unrelated path %q", ev.Path)
	case <-time.After(50 * time.Millisecond):
	}
}
