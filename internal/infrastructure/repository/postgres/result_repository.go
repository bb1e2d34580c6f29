package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
)

// ResultRepository stores answered inquiries in the inquiry_results table.
type ResultRepository struct {
	db *sql.DB
}

func NewResultRepository(db *sql.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

func (r *ResultRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS inquiry_results (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	question_id TEXT NOT NULL DEFAULT '',
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	sources JSONB NOT NULL DEFAULT '[]'::jsonb,
	citation_text TEXT NOT NULL DEFAULT '',
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	mode TEXT NOT NULL,
	fell_back BOOLEAN NOT NULL DEFAULT FALSE,
	included BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_inquiry_results_created_at ON inquiry_results(created_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Save inserts the result, replacing a stored result with the same id.
func (r *ResultRepository) Save(ctx context.Context, result domain.InquiryResult) error {
	sources := result.Sources
	if sources == nil {
		sources = []domain.SourceCitation{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO inquiry_results (
	id, kind, question_id, question, answer, sources, citation_text, confidence, mode, fell_back, included, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
	answer = EXCLUDED.answer,
	sources = EXCLUDED.sources,
	citation_text = EXCLUDED.citation_text,
	confidence = EXCLUDED.confidence,
	mode = EXCLUDED.mode,
	fell_back = EXCLUDED.fell_back,
	included = EXCLUDED.included
`,
		result.ID, string(result.Kind), result.QuestionID, result.Question, result.Answer, sourcesJSON,
		result.CitationText, result.Confidence, string(result.Mode), result.FellBack, result.Included, result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert inquiry result: %w", err)
	}
	return nil
}

func (r *ResultRepository) SetIncluded(ctx context.Context, id string, included bool) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE inquiry_results
SET included = $2
WHERE id = $1
`, id, included)
	if err != nil {
		return fmt.Errorf("update inclusion flag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inclusion rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrResultNotFound, "set included", fmt.Errorf("result %s", id))
	}
	return nil
}

// List returns every stored result in the order it was answered.
func (r *ResultRepository) List(ctx context.Context) ([]domain.InquiryResult, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, kind, question_id, question, answer, sources, citation_text, confidence, mode, fell_back, included, created_at
FROM inquiry_results
ORDER BY created_at ASC, id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("query inquiry results: %w", err)
	}
	defer rows.Close()

	var out []domain.InquiryResult
	for rows.Next() {
		var (
			res        domain.InquiryResult
			kind, mode string
			sourcesRaw []byte
		)
		if err := rows.Scan(
			&res.ID, &kind, &res.QuestionID, &res.Question, &res.Answer, &sourcesRaw,
			&res.CitationText, &res.Confidence, &mode, &res.FellBack, &res.Included, &res.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan inquiry result: %w", err)
		}
		if err := json.Unmarshal(sourcesRaw, &res.Sources); err != nil {
			return nil, fmt.Errorf("unmarshal sources: %w", err)
		}
		res.Kind = domain.InquiryKind(kind)
		res.Mode = domain.SynthesisMode(mode)
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inquiry results: %w", err)
	}
	return out, nil
}
