package mocks

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func BuildTransaction(t *testing.T) (*sql.Tx, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err.Error())
	}
	t.Cleanup(func() { db.Close() })

	mock.ExpectBegin()
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when Begin a Tx in database", err.Error())
	}
	t.Cleanup(func() { _ = tx.Rollback() })

	return tx, mock
}
