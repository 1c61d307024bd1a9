package room

import "time"

// Config holds the fixed timing constants of a match. All observers of a
// room must run with identical values; they are deployment configuration,
// not per-room state.
type Config struct {
	// QuestionDuration is the answering window per question.
	QuestionDuration time.Duration
	// WatchdogGrace is how long past the deadline the watchdog waits
	// before forcing progress on an empty ledger.
	WatchdogGrace time.Duration
	// ResultHold is how long the outcome stays visible before the leader
	// clears ephemeral state and publishes the next question.
	ResultHold time.Duration
	// NextCountdown is the player-visible countdown once an outcome is
	// known. Presentation only; the leader's ResultHold drives the actual
	// transition.
	NextCountdown time.Duration
	// QuestionCount is the fixed length of a room's question order.
	QuestionCount int
}

func DefaultConfig() Config {
	return Config{
		QuestionDuration: 10 * time.Second,
		WatchdogGrace:    500 * time.Millisecond,
		ResultHold:       6 * time.Second,
		NextCountdown:    5 * time.Second,
		QuestionCount:    10,
	}
}
