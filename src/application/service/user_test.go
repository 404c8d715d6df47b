package service

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

func userRows(t *testing.T, active int64, password string) *sqlmock.Rows {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("an error %q was not expected when hashing the password", err)
	}
	return sqlmock.NewRows([]string{"id", "username", "email", "hashed_password", "is_active", "created_at", "updated_at"}).
		AddRow(int64(1), "alice", "alice@example.com", string(hash), active, time.Now().UTC(), nil)
}

func TestShouldAuthenticateUser(t *testing.T) {
	t.Parallel()

	// given
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error %q was not expected when opening a stub database connection", err)
	}
	defer db.Close()
	mock.ExpectQuery("SELECT (.*) FROM users WHERE username").
		WithArgs("alice").
		WillReturnRows(userRows(t, 1, "secret"))
	logger := zerolog.Nop()
	userService := NewUserService(db, &logger)

	// when
	user, err := userService.Authenticate("alice", "secret")

	// then
	assert.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
}

func TestShouldRejectWrongPassword(t *testing.T) {
	t.Parallel()

	// given
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error %q was not expected when opening a stub database connection", err)
	}
	defer db.Close()
	mock.ExpectQuery("SELECT (.*) FROM users WHERE username").
		WithArgs("alice").
		WillReturnRows(userRows(t, 1, "secret"))
	logger := zerolog.Nop()
	userService := NewUserService(db, &logger)

	// when
	_, err = userService.Authenticate("alice", "wrong")

	// then
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestShouldRejectInactiveUser(t *testing.T) {
	t.Parallel()

	// given
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error %q was not expected when opening a stub database connection", err)
	}
	defer db.Close()
	mock.ExpectQuery("SELECT (.*) FROM users WHERE username").
		WithArgs("alice").
		WillReturnRows(userRows(t, 0, "secret"))
	logger := zerolog.Nop()
	userService := NewUserService(db, &logger)

	// when
	_, err = userService.Authenticate("alice", "secret")

	// then
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestShouldRejectUnknownUser(t *testing.T) {
	t.Parallel()

	// given
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error %q was not expected when opening a stub database connection", err)
	}
	defer db.Close()
	mock.ExpectQuery("SELECT (.*) FROM users WHERE username").
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "hashed_password", "is_active", "created_at", "updated_at"}))
	logger := zerolog.Nop()
	userService := NewUserService(db, &logger)

	// when
	_, err = userService.Authenticate("nobody", "secret")

	// then
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestShouldRejectTakenUsernameOnRegister(t *testing.T) {
	t.Parallel()

	// given
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error %q was not expected when opening a stub database connection", err)
	}
	defer db.Close()
	mock.ExpectQuery("SELECT (.*) FROM users WHERE username").
		WithArgs("alice").
		WillReturnRows(userRows(t, 1, "secret"))
	logger := zerolog.Nop()
	userService := NewUserService(db, &logger)

	// when
	_, err = userService.Register("alice", "alice@example.com", "secret")

	// then
	assert.ErrorIs(t, err, ErrUsernameTaken)
}
