package room

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/kunpitech/quizbuzz/internal/store"
)

// Reserved values shared by every client of a room.
const (
	// SentinelTimeUp marks "no answer submitted by deadline".
	SentinelTimeUp = "TIME_UP"
	// Finished is the terminal currentQuestion value.
	Finished = "finished"
	// NoOne is the result when nobody answered correctly.
	NoOne = "no_one"
)

// Store layout under rooms/{roomId}. These paths are the wire contract
// between clients and must stay stable.
func playersPath(roomID string) string     { return store.Join("rooms", roomID, "players") }
func playerPath(roomID, p string) string   { return store.Join("rooms", roomID, "players", p) }
func orderPath(roomID string) string       { return store.Join("rooms", roomID, "questionOrder") }
func currentPath(roomID string) string     { return store.Join("rooms", roomID, "currentQuestion") }
func deadlinePath(roomID string) string    { return store.Join("rooms", roomID, "questionDeadline") }
func answersPath(roomID string) string     { return store.Join("rooms", roomID, "answers") }
func answerPath(roomID, p string) string   { return store.Join("rooms", roomID, "answers", p) }
func historyPath(roomID, q, p string) string {
	return store.Join("rooms", roomID, "answersHistory", q, p)
}
func tokenPath(roomID string) string  { return store.Join("rooms", roomID, "advanceToken") }
func resultPath(roomID string) string { return store.Join("rooms", roomID, "result") }
func scorePath(roomID, p string) string {
	return store.Join("rooms", roomID, "userScore", p, "score")
}
func scoresPath(roomID string) string { return store.Join("rooms", roomID, "userScore") }

// RoomPath returns the root path of a room's subtree.
func RoomPath(roomID string) string { return store.Join("rooms", roomID) }

// Answer is one ledger entry: the chosen option and the submitter's
// wall-clock timestamp in epoch millis.
type Answer struct {
	Option string `json:"option"`
	TS     int64  `json:"ts"`
}

// Value coercion lives here, once, instead of at every read site.
// Stored values are JSON; older writers stored bare strings and numbers,
// so decoding falls back to the raw representation.

func encodeString(s string) []byte {
	b, _ := json.Marshal(s)
	return b
}

func decodeString(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.Trim(string(raw), `"`)
}

func encodeInt(n int64) []byte {
	return []byte(strconv.FormatInt(n, 10))
}

func decodeInt(raw []byte, fallback int64) int64 {
	if len(raw) == 0 {
		return fallback
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	if n, err := strconv.ParseInt(decodeString(raw), 10, 64); err == nil {
		return n
	}
	return fallback
}

func encodeStrings(list []string) []byte {
	b, _ := json.Marshal(list)
	return b
}

func decodeStrings(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	return list
}

func encodeAnswer(a Answer) []byte {
	b, _ := json.Marshal(a)
	return b
}

func decodeAnswer(raw []byte) Answer {
	var a Answer
	if err := json.Unmarshal(raw, &a); err != nil {
		// Bare string form: treat as an option with no usable timestamp.
		return Answer{Option: decodeString(raw)}
	}
	if a.Option == "" {
		a.Option = SentinelTimeUp
	}
	return a
}

// lastSegment returns the final path segment, e.g. the player id from
// rooms/{r}/answers/{playerId}.
func lastSegment(path string) string {
	i := strings.LastIndexByte(path, '/')
	return path[i+1:]
}

func splitPath(path string) []string {
	return strings.Split(path, "/")
}

// sortedIDs returns map keys in a fixed order for deterministic iteration.
func sortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NextQuestion returns the successor of q in order, or Finished when q is
// the last entry or absent from the order.
func NextQuestion(order []string, q string) string {
	for i, id := range order {
		if id == q && i < len(order)-1 {
			return order[i+1]
		}
	}
	return Finished
}
