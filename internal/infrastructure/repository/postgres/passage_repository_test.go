package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/humaninbinary-alt/TahlilchiAI/internal/core/domain"
)

func newPassageRepoWithMock(t *testing.T) (*PassageRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &PassageRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newPassageRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, category, article, text, language, keywords, cross_refs").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrPassageNotFound) {
		t.Fatalf("expected ErrPassageNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDDecodesJSONBColumns(t *testing.T) {
	repo, mock, done := newPassageRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"id", "category", "article", "text", "language", "keywords", "cross_refs"}).
		AddRow("lab-88", "labor", "Article 88", "Probation text", "ru",
			[]byte(`["испытательный срок","probation"]`), []byte(`["lab-89"]`))
	mock.ExpectQuery("SELECT id, category, article, text, language, keywords, cross_refs").
		WithArgs("lab-88").
		WillReturnRows(rows)

	passage, err := repo.GetByID(context.Background(), "lab-88")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if passage.Category != domain.CategoryLabor {
		t.Fatalf("category = %v", passage.Category)
	}
	if len(passage.Keywords) != 2 || passage.Keywords[1] != "probation" {
		t.Fatalf("keywords = %v", passage.Keywords)
	}
	if len(passage.CrossRefs) != 1 || passage.CrossRefs[0] != "lab-89" {
		t.Fatalf("cross refs = %v", passage.CrossRefs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertPassagesWritesAllRowsInOneTx(t *testing.T) {
	repo, mock, done := newPassageRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO passages").
		WithArgs("lab-88", "labor", "Article 88", "Probation text", "ru",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO passages").
		WithArgs("tax-12", "tax", "Article 12", "VAT text", "uz",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	passages := []domain.Passage{
		{ID: "lab-88", Category: domain.CategoryLabor, Article: "Article 88", Text: "Probation text", Language: "ru"},
		{ID: "tax-12", Category: domain.CategoryTax, Article: "Article 12", Text: "VAT text", Language: "uz"},
	}
	if err := repo.UpsertPassages(context.Background(), passages); err != nil {
		t.Fatalf("UpsertPassages() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertPassagesNoRowsIsNoop(t *testing.T) {
	repo, mock, done := newPassageRepoWithMock(t)
	defer done()

	if err := repo.UpsertPassages(context.Background(), nil); err != nil {
		t.Fatalf("UpsertPassages() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertPassagesRollsBackOnFailure(t *testing.T) {
	repo, mock, done := newPassageRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO passages").
		WithArgs("lab-88", "labor", "Article 88", "Probation text", "ru",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	passages := []domain.Passage{
		{ID: "lab-88", Category: domain.CategoryLabor, Article: "Article 88", Text: "Probation text", Language: "ru"},
	}
	if err := repo.UpsertPassages(context.Background(), passages); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
