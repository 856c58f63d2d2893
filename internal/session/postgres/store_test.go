package postgres

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/blueinsight/blueinsight/internal/answer"
)

func newSQLMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock setup failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestAppendInsertsEncodedBundle(t *testing.T) {
	store, mock := newSQLMock(t)
	bundle := answer.Bundle{Question: "top areas?", SessionID: "s-1"}
	encoded, _ := json.Marshal(bundle)

	mock.ExpectExec(regexp.QuoteMeta(`
INSERT INTO session_history (session_id, bundle)
VALUES ($1, $2)`)).
		WithArgs("s-1", encoded).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.Append(context.Background(), "s-1", bundle); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	assertSQLMock(t, mock)
}

func TestHistoryDecodesBundlesInOrder(t *testing.T) {
	store, mock := newSQLMock(t)
	first, _ := json.Marshal(answer.Bundle{Question: "first"})
	second, _ := json.Marshal(answer.Bundle{Question: "second"})

	mock.ExpectQuery(regexp.QuoteMeta(`
SELECT bundle
FROM session_history
WHERE session_id = $1
ORDER BY id ASC`)).
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows([]string{"bundle"}).AddRow(first).AddRow(second))

	bundles, err := store.History(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(bundles) != 2 || bundles[0].Question != "first" || bundles[1].Question != "second" {
		t.Fatalf("bundles = %#v", bundles)
	}
	assertSQLMock(t, mock)
}

func TestClearDeletesSessionRows(t *testing.T) {
	store, mock := newSQLMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM session_history WHERE session_id = $1`)).
		WithArgs("s-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := store.Clear(context.Background(), "s-1"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	assertSQLMock(t, mock)
}
