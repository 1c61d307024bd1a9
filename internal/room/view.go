package room

// View is the presentation snapshot the core exposes to its collaborator
// (the gateway). It carries everything a renderer needs and nothing it
// can mutate.
type View struct {
	RoomID     string   `json:"room_id"`
	PlayerID   string   `json:"player_id"`
	QuestionID string   `json:"question_id"`
	Prompt     string   `json:"prompt"`
	Options    []string `json:"options"`
	ImageURL   string   `json:"image_url,omitempty"`

	// DeadlineMillis is the shared absolute deadline; SecondsRemaining is
	// this observer's local countdown derived from it.
	DeadlineMillis   int64 `json:"deadline_millis,omitempty"`
	SecondsRemaining int   `json:"seconds_remaining"`

	// CorrectRevealed gates CorrectOption: it is only exposed once the
	// question's outcome is known.
	CorrectRevealed bool   `json:"correct_revealed"`
	CorrectOption   string `json:"correct_option,omitempty"`

	// Result is empty while pending, then a winning player id or NoOne.
	Result string `json:"result,omitempty"`
	// NextInSeconds counts down the hold before the next question once a
	// result is visible.
	NextInSeconds int `json:"next_in_seconds,omitempty"`

	Scores   map[string]int64 `json:"scores"`
	Finished bool             `json:"finished"`
}
