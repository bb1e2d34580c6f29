package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*ResultRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewResultRepository(db), mock, func() { _ = db.Close() }
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS inquiry_results").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveUpsertsResult(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO inquiry_results").
		WithArgs("r-1", "default", "", "Who is the plaintiff?", "John Smith.", []byte(`[{"chunk_id":"complaint.txt_0","filename":"complaint.txt","combined_score":0.9}]`),
			"complaint.txt (0.90)", 0.9, "extraction", false, true, created).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Save(context.Background(), domain.InquiryResult{
		ID:           "r-1",
		Kind:         domain.InquiryDefault,
		Question:     "Who is the plaintiff?",
		Answer:       "John Smith.",
		Sources:      []domain.SourceCitation{{ChunkID: "complaint.txt_0", Filename: "complaint.txt", CombinedScore: 0.9}},
		CitationText: "complaint.txt (0.90)",
		Confidence:   0.9,
		Mode:         domain.SynthesisExtraction,
		Included:     true,
		CreatedAt:    created,
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSetIncludedReturnsNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE inquiry_results").
		WithArgs("missing", false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetIncluded(context.Background(), "missing", false)
	if !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("expected ErrResultNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListScansResultsInOrder(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "kind", "question_id", "question", "answer", "sources", "citation_text", "confidence", "mode", "fell_back", "included", "created_at"}).
		AddRow("r-1", "flow", "Q1", "What type of case is this?", "Civil.", []byte(`[{"chunk_id":"a_0","filename":"a","combined_score":0.5}]`), "a (0.50)", 0.5, "generative", true, true, now).
		AddRow("r-2", "follow_up", "", "Damages?", "$50,000.", []byte(`[]`), "", 0.0, "extraction", false, false, now)
	mock.ExpectQuery("FROM inquiry_results").WillReturnRows(rows)

	results, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Kind != domain.InquiryFlow || results[0].Mode != domain.SynthesisGenerative || !results[0].FellBack {
		t.Fatalf("unexpected first result %+v", results[0])
	}
	if len(results[0].Sources) != 1 || results[0].Sources[0].ChunkID != "a_0" {
		t.Fatalf("unexpected sources %+v", results[0].Sources)
	}
	if results[1].Included {
		t.Fatalf("expected second result excluded")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
