package room

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Watchdog forces progress when nothing else will: if no client wrote so
// much as a sentinel by deadline+grace, the question would otherwise hang
// forever. One watchdog is scheduled per question per observer and is
// cancelled, keyed by question id, the moment the question is superseded.
type Watchdog struct {
	clock  clockwork.Clock
	ledger *AnswerLedger
	token  *AdvanceToken
	cfg    Config
}

func NewWatchdog(clock clockwork.Clock, ledger *AnswerLedger, token *AdvanceToken, cfg Config) *Watchdog {
	return &Watchdog{clock: clock, ledger: ledger, token: token, cfg: cfg}
}

// Schedule arms the watchdog for question q. At deadline+grace it checks
// the ledger; only a completely empty ledger (no answer, no sentinel from
// anyone) triggers recovery. On a successful token claim, onLead runs the
// normal leader transition with an empty ledger and a NoOne outcome.
func (w *Watchdog) Schedule(ctx context.Context, roomID, q string, deadline time.Time, onLead func(context.Context)) {
	fireAt := deadline.Add(w.cfg.WatchdogGrace)

	go func() {
		timer := w.clock.NewTimer(fireAt.Sub(w.clock.Now()))
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.Chan():
		}
		if ctx.Err() != nil {
			return // superseded during the grace wait
		}

		entries, err := w.ledger.Entries(ctx, roomID)
		if err != nil {
			log.Error().Err(err).Str("room_id", roomID).Str("question_id", q).Msg("watchdog ledger read failed")
			return
		}
		if len(entries) > 0 {
			// Someone wrote something; the normal resolution path owns it.
			return
		}

		won, err := w.token.Claim(ctx, roomID, q)
		if err != nil {
			log.Error().Err(err).Str("room_id", roomID).Str("question_id", q).Msg("watchdog token claim failed")
			return
		}
		if !won {
			return
		}

		log.Warn().
			Str("room_id", roomID).
			Str("question_id", q).
			Msg("watchdog forcing advance on stalled question")
		onLead(ctx)
	}()
}
