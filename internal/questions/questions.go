package questions

import (
	"fmt"
	"math/rand"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// OptionCount is the fixed number of options every question carries.
const OptionCount = 4

// Question is one entry of the read-only catalogue.
type Question struct {
	ID       string   `yaml:"id" json:"id"`
	Prompt   string   `yaml:"prompt" json:"prompt"`
	Options  []string `yaml:"options" json:"options"`
	Answer   string   `yaml:"answer" json:"answer"`
	ImageURL string   `yaml:"image_url,omitempty" json:"image_url,omitempty"`
}

// Placeholder is the safe fallback for ids missing from the catalogue.
// A room showing it can still advance through the watchdog path.
func Placeholder(id string) Question {
	return Question{
		ID:      id,
		Prompt:  "Unknown question",
		Options: []string{"-", "-", "-", "-"},
	}
}

// Validate checks the catalogue shape: exactly four options, with the
// correct answer among them.
func (q Question) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("question has empty id")
	}
	if len(q.Options) != OptionCount {
		return fmt.Errorf("question %s has %d options, want %d", q.ID, len(q.Options), OptionCount)
	}
	for _, opt := range q.Options {
		if opt == q.Answer {
			return nil
		}
	}
	return fmt.Errorf("question %s: answer %q is not one of its options", q.ID, q.Answer)
}

// Bank is the in-memory read-only catalogue. It is safe for concurrent
// readers; content never changes after construction.
type Bank struct {
	byID   map[string]Question
	ids    []string
	randMu sync.Mutex
	rand   *rand.Rand
}

// NewBank builds a catalogue from validated questions. Invalid entries
// are rejected so fallback handling stays at the read sites.
func NewBank(qs []Question, seed int64) (*Bank, error) {
	if len(qs) == 0 {
		return nil, fmt.Errorf("question catalogue is empty")
	}
	byID := make(map[string]Question, len(qs))
	ids := make([]string, 0, len(qs))
	for _, q := range qs {
		if err := q.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byID[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %s", q.ID)
		}
		byID[q.ID] = q
		ids = append(ids, q.ID)
	}
	return &Bank{
		byID: byID,
		ids:  ids,
		rand: rand.New(rand.NewSource(seed)),
	}, nil
}

// Lookup returns the question for id, falling back to a placeholder when
// the id is absent.
func (b *Bank) Lookup(id string) (Question, bool) {
	q, ok := b.byID[id]
	if !ok {
		return Placeholder(id), false
	}
	return q, true
}

// Len returns the catalogue size.
func (b *Bank) Len() int {
	return len(b.ids)
}

// Order returns a fresh shuffled sample of at most n question ids.
func (b *Bank) Order(n int) []string {
	if n <= 0 || n > len(b.ids) {
		n = len(b.ids)
	}

	shuffled := make([]string, len(b.ids))
	copy(shuffled, b.ids)

	b.randMu.Lock()
	b.rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	b.randMu.Unlock()

	return shuffled[:n]
}

type catalogueFile struct {
	Questions []Question `yaml:"questions"`
}

// LoadFile reads a YAML question catalogue from disk.
func LoadFile(path string, seed int64) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question file: %w", err)
	}

	var file catalogueFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse question file: %w", err)
	}

	return NewBank(file.Questions, seed)
}
