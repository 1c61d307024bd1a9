package matchmaker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kunpitech/quizbuzz/internal/store"
)

func receiveRoom(t *testing.T, ch <-chan string, player string) string {
	t.Helper()
	select {
	case roomID, ok := <-ch:
		if !ok {
			t.Fatalf("%s assignment stream closed without a room", player)
		}
		return roomID
	case <-time.After(3 * time.Second):
		t.Fatalf("%s never received a room assignment", player)
	}
	return ""
}

func TestJoinGame_PairsTwoPlayers(t *testing.T) {
	st := store.NewMemoryStore()
	m := New(st)
	ctx := context.Background()

	ch1, err := m.JoinGame(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}

	// p1 holds the waiting slot until an opponent shows up.
	raw, _ := st.Get(ctx, waitingPath)
	if decodeString(raw) != "p1" {
		t.Fatalf("waiting slot = %q, want p1", decodeString(raw))
	}

	ch2, err := m.JoinGame(ctx, "p2")
	if err != nil {
		t.Fatal(err)
	}

	r1 := receiveRoom(t, ch1, "p1")
	r2 := receiveRoom(t, ch2, "p2")
	if r1 == "" || r1 != r2 {
		t.Errorf("players assigned to different rooms: %q vs %q", r1, r2)
	}

	// The slot is consumed; a third player starts a fresh pairing.
	raw, _ = st.Get(ctx, waitingPath)
	if raw != nil {
		t.Errorf("waiting slot not cleared after pairing: %q", decodeString(raw))
	}
}

func TestJoinGame_EmitsAssignmentOnce(t *testing.T) {
	st := store.NewMemoryStore()
	m := New(st)
	ctx := context.Background()

	ch1, err := m.JoinGame(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.JoinGame(ctx, "p2"); err != nil {
		t.Fatal(err)
	}

	first := receiveRoom(t, ch1, "p1")

	// Unrelated writes under the assignment tree must not re-emit.
	st.Put(ctx, "waitingAssignments/p9", []byte(`"other-room"`))
	select {
	case r, ok := <-ch1:
		if ok {
			t.Errorf("duplicate assignment %q after %q", r, first)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestJoinGame_ConcurrentJoinersAllPair(t *testing.T) {
	st := store.NewMemoryStore()
	m := New(st)
	ctx := context.Background()

	players := []string{"p1", "p2", "p3", "p4"}
	rooms := make(map[string]string, len(players))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, p := range players {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			ch, err := m.JoinGame(ctx, p)
			if err != nil {
				t.Error(err)
				return
			}
			roomID := receiveRoom(t, ch, p)
			mu.Lock()
			rooms[p] = roomID
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	// Four joiners form exactly two rooms of two.
	byRoom := make(map[string][]string)
	for p, r := range rooms {
		byRoom[r] = append(byRoom[r], p)
	}
	if len(byRoom) != 2 {
		t.Fatalf("rooms formed = %d (%v), want 2", len(byRoom), byRoom)
	}
	for r, ps := range byRoom {
		if len(ps) != 2 {
			t.Errorf("room %s has %d players (%v), want 2", r, len(ps), ps)
		}
	}

	raw, _ := st.Get(ctx, waitingPath)
	if raw != nil {
		t.Errorf("waiting slot left occupied: %q", decodeString(raw))
	}
}

func TestLeave_ReleasesSlotAndAssignment(t *testing.T) {
	st := store.NewMemoryStore()
	m := New(st)
	ctx := context.Background()

	if _, err := m.JoinGame(ctx, "p1"); err != nil {
		t.Fatal(err)
	}
	if err := m.Leave(ctx, "p1"); err != nil {
		t.Fatal(err)
	}

	raw, _ := st.Get(ctx, waitingPath)
	if raw != nil {
		t.Errorf("waiting slot still held after leave: %q", decodeString(raw))
	}

	// Leave must not release a slot held by someone else.
	if _, err := m.JoinGame(ctx, "p2"); err != nil {
		t.Fatal(err)
	}
	if err := m.Leave(ctx, "p1"); err != nil {
		t.Fatal(err)
	}
	raw, _ = st.Get(ctx, waitingPath)
	if decodeString(raw) != "p2" {
		t.Errorf("waiting slot = %q, want p2 untouched", decodeString(raw))
	}
}
