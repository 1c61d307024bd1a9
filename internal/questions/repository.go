package questions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Repository loads the question catalogue from Postgres. The table is
// append-only in practice; the catalogue is read once at startup and
// served from memory afterwards.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const loadAllQuery = `
SELECT id, prompt, options, answer, COALESCE(image_url, '')
FROM questions
ORDER BY id
`

// LoadAll fetches every question. Rows with a malformed shape are skipped
// rather than failing the whole load, matching the fallback policy at
// read sites.
func (r *Repository) LoadAll(ctx context.Context) ([]Question, error) {
	rows, err := r.db.QueryContext(ctx, loadAllQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		var q Question
		var optionsJSON []byte
		if err := rows.Scan(&q.ID, &q.Prompt, &optionsJSON, &q.Answer, &q.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan question row: %w", err)
		}
		if err := json.Unmarshal(optionsJSON, &q.Options); err != nil {
			log.Warn().Err(err).Str("question_id", q.ID).Msg("skipping question with malformed options")
			continue
		}
		if err := q.Validate(); err != nil {
			log.Warn().Err(err).Str("question_id", q.ID).Msg("skipping invalid question")
			continue
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate question rows: %w", err)
	}

	log.Info().Int("count", len(out)).Msg("loaded question catalogue from database")
	return out, nil
}

// LoadBank builds a Bank directly from the repository.
func (r *Repository) LoadBank(ctx context.Context, seed int64) (*Bank, error) {
	qs, err := r.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return NewBank(qs, seed)
}
