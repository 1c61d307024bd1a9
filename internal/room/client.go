package room

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/kunpitech/quizbuzz/internal/questions"
	"github.com/kunpitech/quizbuzz/internal/store"
)

// ErrNotAnswerable is returned by Submit when the player already answered
// the active question, the deadline passed, or the room is finished.
var ErrNotAnswerable = errors.New("room: question is not answerable")

// Client is one player's observer of a room. Every connected player runs
// its own Client; there is no controlling process. Clients coordinate
// only through the shared store, and any of them may end up leading a
// question's transition by winning the advance token.
type Client struct {
	store store.Store
	bank  *questions.Bank
	clock clockwork.Clock
	cfg   Config

	roomID   string
	playerID string

	state     *StateMachine
	deadlines *DeadlineClock
	ledger    *AnswerLedger
	token     *AdvanceToken
	scores    *ScoreBoard
	watchdog  *Watchdog

	views chan View

	mu           sync.Mutex
	questionID   string
	question     questions.Question
	deadlineAt   time.Time
	submitted    bool
	resolved     bool
	resultSeen   string
	resultAt     time.Time
	cancelTimers context.CancelFunc
}

func NewClient(st store.Store, bank *questions.Bank, clock clockwork.Clock, cfg Config, roomID, playerID string) *Client {
	ledger := NewAnswerLedger(st)
	token := NewAdvanceToken(st)
	return &Client{
		store:     st,
		bank:      bank,
		clock:     clock,
		cfg:       cfg,
		roomID:    roomID,
		playerID:  playerID,
		state:     NewStateMachine(st, bank, cfg),
		deadlines: NewDeadlineClock(st, clock, cfg),
		ledger:    ledger,
		token:     token,
		scores:    NewScoreBoard(st),
		watchdog:  NewWatchdog(clock, ledger, token, cfg),
		views:     make(chan View, 64),
	}
}

// Views streams presentation snapshots. The channel closes when Run
// returns.
func (c *Client) Views() <-chan View {
	return c.views
}

// Run joins the room and observes it until the match finishes or ctx is
// cancelled. It drives this player's timers, submits the sentinel on
// timeout, and performs the leader transition whenever this client wins
// an advance token claim.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.views)
	defer c.cancelQuestionTimers()

	if err := c.state.Join(ctx, c.roomID, c.playerID); err != nil {
		return err
	}
	if err := c.scores.EnsureZero(ctx, c.roomID, c.playerID); err != nil {
		return err
	}
	if err := c.state.EnsureStarted(ctx, c.roomID); err != nil {
		return err
	}

	events, err := c.store.Watch(ctx, RoomPath(c.roomID))
	if err != nil {
		return fmt.Errorf("failed to watch room: %w", err)
	}

	log.Info().
		Str("room_id", c.roomID).
		Str("player_id", c.playerID).
		Msg("observing room")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				return nil
			}
			finished, err := c.sync(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// Transient store failures degrade to a retry on the next
				// event or to the watchdog path; never fatal.
				log.Error().Err(err).Str("room_id", c.roomID).Msg("room sync failed")
				continue
			}
			if finished {
				return nil
			}
		}
	}
}

// Submit records this player's answer for the active question.
func (c *Client) Submit(ctx context.Context, option string) error {
	c.mu.Lock()
	if c.questionID == "" || c.questionID == Finished || c.submitted {
		c.mu.Unlock()
		return ErrNotAnswerable
	}
	if !c.deadlineAt.IsZero() && c.clock.Now().After(c.deadlineAt) {
		c.mu.Unlock()
		return ErrNotAnswerable
	}
	c.submitted = true
	c.mu.Unlock()

	_, err := c.ledger.Submit(ctx, c.roomID, c.playerID, Answer{
		Option: option,
		TS:     c.clock.Now().UnixMilli(),
	})
	return err
}

// Leave withdraws this player's presence from the room.
func (c *Client) Leave(ctx context.Context) error {
	return c.state.Leave(ctx, c.roomID, c.playerID)
}

// sync re-reads room state after a store event. Reads are eventually
// consistent; every decision that must be exclusive goes through a CAS.
func (c *Client) sync(ctx context.Context) (finished bool, err error) {
	cur, err := c.state.Current(ctx, c.roomID)
	if err != nil {
		return false, err
	}
	if cur == "" {
		return false, nil // not seeded yet
	}
	if cur == Finished {
		c.cancelQuestionTimers()
		c.emitFinished(ctx)
		return true, nil
	}

	c.mu.Lock()
	changed := cur != c.questionID
	c.mu.Unlock()
	if changed {
		if err := c.onQuestionChanged(ctx, cur); err != nil {
			return false, err
		}
	}

	if err := c.onResult(ctx); err != nil {
		return false, err
	}
	if err := c.maybeResolve(ctx); err != nil {
		return false, err
	}
	return false, nil
}

// onQuestionChanged tears down the superseded question's timers, adopts
// the new question, establishes the shared deadline, and arms this
// observer's countdown and watchdog.
func (c *Client) onQuestionChanged(ctx context.Context, q string) error {
	c.cancelQuestionTimers()

	question, known := c.bank.Lookup(q)
	if !known {
		log.Warn().Str("room_id", c.roomID).Str("question_id", q).Msg("question missing from catalogue, using placeholder")
	}

	deadline, err := c.deadlines.Ensure(ctx, c.roomID)
	if err != nil {
		return err
	}

	qctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.questionID = q
	c.question = question
	c.deadlineAt = deadline
	c.submitted = false
	c.resolved = false
	c.resultSeen = ""
	c.resultAt = time.Time{}
	c.cancelTimers = cancel
	c.mu.Unlock()

	log.Info().
		Str("room_id", c.roomID).
		Str("player_id", c.playerID).
		Str("question_id", q).
		Time("deadline", deadline).
		Msg("question active")

	go c.runCountdown(qctx, q, deadline)
	// The watchdog's wait is scoped to the question and cancelled on
	// supersession, but once it wins the claim the transition itself must
	// outlive the question context (publishing the result cancels qctx).
	c.watchdog.Schedule(qctx, c.roomID, q, deadline, func(context.Context) {
		c.leadTransition(ctx, q, map[string]Answer{}, Outcome{Winner: NoOne})
	})

	c.emitView(ctx)
	return nil
}

// runCountdown ticks the local countdown down from the shared deadline
// and writes the sentinel if this player never answered.
func (c *Client) runCountdown(ctx context.Context, q string, deadline time.Time) {
	timer := c.clock.NewTimer(time.Second)
	defer timer.Stop()

	for {
		remaining := deadline.Sub(c.clock.Now())
		if remaining <= 0 {
			break
		}
		wait := time.Second
		if remaining < wait {
			wait = remaining
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return
		case <-timer.Chan():
		}
		c.emitView(ctx)
	}

	c.mu.Lock()
	alreadyAnswered := c.submitted || c.questionID != q
	if !alreadyAnswered {
		c.submitted = true
	}
	c.mu.Unlock()
	if alreadyAnswered {
		return
	}

	if _, err := c.ledger.Submit(ctx, c.roomID, c.playerID, Answer{
		Option: SentinelTimeUp,
		TS:     c.clock.Now().UnixMilli(),
	}); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Str("room_id", c.roomID).Str("player_id", c.playerID).Msg("failed to write sentinel")
	}
	c.emitView(ctx)
}

// onResult reacts to the shared result value: cancels this player's
// timers so no stale sentinel lands after grading, and starts the
// player-visible countdown toward the next question.
func (c *Client) onResult(ctx context.Context) error {
	raw, err := c.store.Get(ctx, resultPath(c.roomID))
	if err != nil {
		return fmt.Errorf("failed to read result: %w", err)
	}
	result := decodeString(raw)

	c.mu.Lock()
	fresh := result != "" && result != c.resultSeen
	if fresh {
		c.resultSeen = result
		c.resultAt = c.clock.Now()
		c.submitted = true // deadline passed for grading purposes
	}
	cancel := c.cancelTimers
	q := c.questionID
	c.mu.Unlock()

	if !fresh {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	log.Info().
		Str("room_id", c.roomID).
		Str("question_id", q).
		Str("result", result).
		Msg("question resolved")

	nctx, ncancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelTimers = ncancel
	c.mu.Unlock()
	go c.runNextCountdown(nctx)
	return nil
}

// runNextCountdown emits one view per second while the outcome is shown.
func (c *Client) runNextCountdown(ctx context.Context) {
	timer := c.clock.NewTimer(time.Second)
	defer timer.Stop()

	end := c.clock.Now().Add(c.cfg.NextCountdown)
	c.emitView(ctx)
	for c.clock.Now().Before(end) {
		timer.Reset(time.Second)
		select {
		case <-ctx.Done():
			return
		case <-timer.Chan():
		}
		c.emitView(ctx)
	}
}

// maybeResolve evaluates the resolution policy against the current ledger
// and, on an outcome, races for the advance token. Exactly one observer
// wins and performs the transition.
func (c *Client) maybeResolve(ctx context.Context) error {
	c.mu.Lock()
	q := c.questionID
	correct := c.question.Answer
	done := c.resolved || q == "" || c.resultSeen != ""
	c.mu.Unlock()
	if done {
		return nil
	}

	entries, err := c.ledger.Entries(ctx, c.roomID)
	if err != nil {
		return err
	}
	members, err := c.state.Members(ctx, c.roomID)
	if err != nil {
		return err
	}

	outcome, ok := Resolve(correct, entries, members)
	if !ok {
		return nil
	}

	c.mu.Lock()
	if c.resolved {
		c.mu.Unlock()
		return nil
	}
	c.resolved = true
	c.mu.Unlock()

	won, err := c.token.Claim(ctx, c.roomID, q)
	if err != nil {
		// The claim never committed; let the next event retry resolution.
		c.mu.Lock()
		c.resolved = false
		c.mu.Unlock()
		return err
	}
	if !won {
		return nil
	}

	go c.leadTransition(ctx, q, entries, outcome)
	return nil
}

// leadTransition is the advance token winner's duty: persist history with
// sentinel fill, publish the result, credit the winner, and after the
// display hold clear ephemeral state and move the room on. At most one
// client runs this per question.
func (c *Client) leadTransition(ctx context.Context, q string, entries map[string]Answer, outcome Outcome) {
	members, err := c.state.Members(ctx, c.roomID)
	if err != nil {
		log.Error().Err(err).Str("room_id", c.roomID).Msg("leader failed to list members")
		members = sortedIDs(entries)
	}

	if err := c.ledger.PersistHistory(ctx, c.roomID, q, entries, members); err != nil {
		log.Error().Err(err).Str("room_id", c.roomID).Str("question_id", q).Msg("failed to persist answer history")
	}

	if outcome.Winner != NoOne {
		if err := c.scores.Increment(ctx, c.roomID, outcome.Winner); err != nil {
			log.Error().Err(err).Str("room_id", c.roomID).Str("player_id", outcome.Winner).Msg("failed to increment score")
		}
	}

	if err := c.store.Put(ctx, resultPath(c.roomID), encodeString(outcome.Winner)); err != nil {
		log.Error().Err(err).Str("room_id", c.roomID).Msg("failed to publish result")
	}

	log.Info().
		Str("room_id", c.roomID).
		Str("question_id", q).
		Str("winner", outcome.Winner).
		Str("leader", c.playerID).
		Msg("leading question transition")

	hold := c.clock.NewTimer(c.cfg.ResultHold)
	defer hold.Stop()
	select {
	case <-ctx.Done():
		return
	case <-hold.Chan():
	}

	if err := c.state.Advance(ctx, c.roomID, q); err != nil {
		log.Error().Err(err).Str("room_id", c.roomID).Str("question_id", q).Msg("failed to advance room")
	}
}

func (c *Client) cancelQuestionTimers() {
	c.mu.Lock()
	cancel := c.cancelTimers
	c.cancelTimers = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// emitView publishes a fresh snapshot to the view stream. Slow consumers
// drop ticks rather than stall the observer.
func (c *Client) emitView(ctx context.Context) {
	scores, err := c.scores.Scores(ctx, c.roomID)
	if err != nil {
		scores = map[string]int64{}
	}

	c.mu.Lock()
	v := View{
		RoomID:     c.roomID,
		PlayerID:   c.playerID,
		QuestionID: c.questionID,
		Prompt:     c.question.Prompt,
		Options:    c.question.Options,
		ImageURL:   c.question.ImageURL,
		Scores:     scores,
		Result:     c.resultSeen,
	}
	if !c.deadlineAt.IsZero() {
		v.DeadlineMillis = c.deadlineAt.UnixMilli()
		v.SecondsRemaining = int((c.deadlines.Remaining(c.deadlineAt) + 999*time.Millisecond) / time.Second)
	}
	if c.resultSeen != "" {
		v.CorrectRevealed = true
		v.CorrectOption = c.question.Answer
		v.SecondsRemaining = 0
		nextIn := c.cfg.NextCountdown - c.clock.Now().Sub(c.resultAt)
		if nextIn < 0 {
			nextIn = 0
		}
		v.NextInSeconds = int((nextIn + 999*time.Millisecond) / time.Second)
	}
	c.mu.Unlock()

	select {
	case c.views <- v:
	default:
		log.Debug().Str("room_id", c.roomID).Str("player_id", c.playerID).Msg("view buffer full, dropping snapshot")
	}
}

func (c *Client) emitFinished(ctx context.Context) {
	scores, err := c.scores.Scores(ctx, c.roomID)
	if err != nil {
		scores = map[string]int64{}
	}
	v := View{
		RoomID:   c.roomID,
		PlayerID: c.playerID,
		Finished: true,
		Scores:   scores,
	}
	select {
	case c.views <- v:
	default:
	}
}
