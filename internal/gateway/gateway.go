package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/kunpitech/quizbuzz/internal/matchmaker"
	"github.com/kunpitech/quizbuzz/internal/questions"
	"github.com/kunpitech/quizbuzz/internal/room"
	"github.com/kunpitech/quizbuzz/internal/store"
)

// Gateway is the websocket surface over the synchronization core. Each
// accepted connection becomes one independent room observer: matchmaking,
// the room client, and both pumps run for the lifetime of the socket.
type Gateway struct {
	store    store.Store
	bank     *questions.Bank
	clock    clockwork.Clock
	roomCfg  room.Config
	connCfg  ConnectionConfig
	match    *matchmaker.Matchmaker
	upgrader websocket.Upgrader
}

func New(st store.Store, bank *questions.Bank, clock clockwork.Clock, roomCfg room.Config, connCfg ConnectionConfig) *Gateway {
	return &Gateway{
		store:   st,
		bank:    bank,
		clock:   clock,
		roomCfg: roomCfg,
		connCfg: connCfg,
		match:   matchmaker.New(st),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  connCfg.ReadBufferSize,
			WriteBufferSize: connCfg.WriteBufferSize,
			CheckOrigin:     connCfg.CheckOrigin,
		},
	}
}

// HandlePlay upgrades the HTTP request and runs a full match session:
// GET /play?player_id={id}.
func (g *Gateway) HandlePlay(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("player_id")
	if playerID == "" {
		http.Error(w, "player_id is required", http.StatusBadRequest)
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket connection")
		return
	}

	conn := newConnection(uuid.New().String(), playerID, ws, g.connCfg)
	go conn.writePump()
	go conn.readPump()

	log.Info().
		Str("connection_id", conn.id).
		Str("player_id", playerID).
		Msg("websocket connection established")

	go g.runSession(r.Context(), conn)
}

// runSession drives one player from matchmaking through a finished match.
func (g *Gateway) runSession(parent context.Context, conn *connection) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	defer cancel()

	assigned, err := g.match.JoinGame(ctx, conn.playerID)
	if err != nil {
		g.sendError(conn, fmt.Sprintf("matchmaking failed: %v", err))
		return
	}
	if frame, err := newMessage(MessageTypeWaiting, struct{}{}); err == nil {
		conn.enqueue(frame)
	}

	roomID, matched := g.awaitAssignment(ctx, conn, assigned)
	if !matched {
		return
	}

	if frame, err := newMessage(MessageTypeAssigned, AssignedPayload{RoomID: roomID}); err == nil {
		conn.enqueue(frame)
	}

	client := room.NewClient(g.store, g.bank, g.clock, g.roomCfg, roomID, conn.playerID)

	runDone := make(chan error, 1)
	go func() {
		runDone <- client.Run(ctx)
	}()

	views := client.Views()
	for {
		select {
		case <-ctx.Done():
			return

		case err := <-runDone:
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Str("room_id", roomID).Str("player_id", conn.playerID).Msg("room client stopped")
			}
			// Drain any final views before closing.
			for v := range client.Views() {
				if frame, err := viewMessage(v); err == nil {
					conn.enqueue(frame)
				}
			}
			return

		case v, ok := <-views:
			if !ok {
				views = nil
				continue
			}
			frame, err := viewMessage(v)
			if err != nil {
				log.Error().Err(err).Msg("failed to marshal view")
				continue
			}
			conn.enqueue(frame)

		case msg, ok := <-conn.inbound:
			if !ok {
				// Peer disconnected: release this player's room presence so
				// the opponent's resolver stops waiting on them.
				g.teardown(ctx, client, conn.playerID)
				cancel()
				return
			}
			g.handleClientMessage(ctx, conn, client, msg, cancel)
		}
	}
}

// awaitAssignment holds the session in the waiting phase until a room
// is assigned or the player gives up. Frames other than Leave (a stray
// Submit from an eager client) are ignored; they must never consume the
// pending assignment.
func (g *Gateway) awaitAssignment(ctx context.Context, conn *connection, assigned <-chan string) (string, bool) {
	for {
		select {
		case <-ctx.Done():
			return "", false
		case roomID := <-assigned:
			return roomID, true
		case msg, ok := <-conn.inbound:
			if !ok || msg.Type == MessageTypeLeave {
				// Disconnected or bailed before a match was found.
				if err := g.match.Leave(ctx, conn.playerID); err != nil {
					log.Error().Err(err).Str("player_id", conn.playerID).Msg("failed to leave matchmaking")
				}
				return "", false
			}
			log.Debug().
				Str("connection_id", conn.id).
				Str("type", string(msg.Type)).
				Msg("ignoring client message while waiting for a match")
		}
	}
}

func (g *Gateway) handleClientMessage(ctx context.Context, conn *connection, client *room.Client, msg Message, cancel context.CancelFunc) {
	switch msg.Type {
	case MessageTypeSubmit:
		var payload SubmitPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			g.sendError(conn, "malformed submit payload")
			return
		}
		if err := client.Submit(ctx, payload.Option); err != nil {
			if errors.Is(err, room.ErrNotAnswerable) {
				log.Debug().Str("player_id", conn.playerID).Msg("submit ignored, question not answerable")
				return
			}
			// Transient store failure: surface a retry indicator, stay open.
			g.sendError(conn, "submit failed, try again")
		}

	case MessageTypeLeave:
		g.teardown(ctx, client, conn.playerID)
		cancel()

	default:
		log.Debug().
			Str("connection_id", conn.id).
			Str("type", string(msg.Type)).
			Msg("ignoring unknown client message")
	}
}

// teardown releases the player's slot, assignment and room presence.
func (g *Gateway) teardown(ctx context.Context, client *room.Client, playerID string) {
	if err := client.Leave(ctx); err != nil {
		log.Error().Err(err).Str("player_id", playerID).Msg("failed to leave room")
	}
	if err := g.match.Leave(ctx, playerID); err != nil {
		log.Error().Err(err).Str("player_id", playerID).Msg("failed to leave matchmaking")
	}
}

func (g *Gateway) sendError(conn *connection, message string) {
	frame, err := newMessage(MessageTypeError, ErrorPayload{Message: message})
	if err != nil {
		return
	}
	conn.enqueue(frame)
}
