package room

import (
	"fmt"
	"testing"
	"time"

	"github.com/kunpitech/quizbuzz/internal/questions"
)

func testBank(t *testing.T, n int) *questions.Bank {
	t.Helper()
	qs := make([]questions.Question, 0, n)
	for i := 1; i <= n; i++ {
		qs = append(qs, questions.Question{
			ID:      fmt.Sprintf("Q%d", i),
			Prompt:  fmt.Sprintf("Which planet is number %d?", i),
			Options: []string{"Mars", "Venus", "Jupiter", "Saturn"},
			Answer:  "Mars",
		})
	}
	bank, err := questions.NewBank(qs, 42)
	if err != nil {
		t.Fatal(err)
	}
	return bank
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
