package config

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	go_ora "github.com/sijms/go-ora/v2"
)

// DbIface is the subset of database/sql that repositories need.
// Satisfied by *sql.DB and *sql.Tx so services can run inside transactions.
type DbIface interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

var (
	_ DbIface = &sql.DB{}
	_ DbIface = &sql.Tx{}
)

func DbUrl() (string, error) {
	host := GetenvStr("ORACLE_HOST")
	if host == "" {
		return "", errors.New("Environment variable ORACLE_HOST not set or empty")
	}

	port, err := GetenvInt("ORACLE_PORT", 1521)
	if err != nil {
		return "", err
	}

	user := GetenvStr("ORACLE_USER")
	password := GetenvStr("ORACLE_PASSWORD")
	service := GetenvStr("ORACLE_SERVICE")
	if service == "" {
		return "", errors.New("Environment variable ORACLE_SERVICE not set or empty")
	}

	return go_ora.BuildUrl(host, port, service, user, password, nil), nil
}

func DBConnection(logger *zerolog.Logger) (*sql.DB, error) {
	url, err := DbUrl()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("oracle", url)
	if err != nil {
		return nil, errors.WithMessage(err, "While opening the database")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, errors.WithMessage(err, "While pinging the database")
	}

	logger.Info().Str("host", GetenvStr("ORACLE_HOST")).Str("service", GetenvStr("ORACLE_SERVICE")).Msg("Connected to database")

	return db, nil
}
