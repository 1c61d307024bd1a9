package room

import (
	"context"
	"sync"
	"testing"

	"github.com/kunpitech/quizbuzz/internal/store"
)

func TestAdvanceToken_ExactlyOneWinner(t *testing.T) {
	st := store.NewMemoryStore()
	token := NewAdvanceToken(st)
	ctx := context.Background()

	const claimants = 16
	var wg sync.WaitGroup
	results := make([]bool, claimants)

	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			won, err := token.Claim(ctx, "r1", "Q1")
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = won
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, won := range results {
		if won {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("%d claim winners, want exactly 1", winners)
	}
}

func TestAdvanceToken_ClearAllowsNextClaim(t *testing.T) {
	st := store.NewMemoryStore()
	token := NewAdvanceToken(st)
	ctx := context.Background()

	won, err := token.Claim(ctx, "r1", "Q1")
	if err != nil || !won {
		t.Fatalf("initial claim failed: won=%v err=%v", won, err)
	}

	won, _ = token.Claim(ctx, "r1", "Q2")
	if won {
		t.Error("claim while token held should fail")
	}

	if err := token.Clear(ctx, "r1"); err != nil {
		t.Fatal(err)
	}

	won, _ = token.Claim(ctx, "r1", "Q2")
	if !won {
		t.Error("claim after clear should win")
	}
}
