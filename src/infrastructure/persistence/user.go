package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/operify/opsgate/src/config"
	"github.com/operify/opsgate/src/domain"
	"github.com/operify/opsgate/src/domain/repository"
)

type userRepository struct {
	DB config.DbIface
}

func NewUserRepository(db config.DbIface) repository.UserRepository {
	return &userRepository{db}
}

func (a userRepository) WithQuerier(querier config.DbIface) repository.UserRepository {
	return &userRepository{querier}
}

func (a userRepository) GetByUsername(username string) (user *domain.User, err error) {
	user = &domain.User{}
	return user, sqlscan.Get(
		context.Background(), a.DB, user,
		`SELECT * FROM users WHERE username = :1`,
		username,
	)
}

func (a userRepository) GetByEmail(email string) (user *domain.User, err error) {
	user = &domain.User{}
	return user, sqlscan.Get(
		context.Background(), a.DB, user,
		`SELECT * FROM users WHERE email = :1`,
		email,
	)
}

func (a userRepository) Save(user *domain.User) error {
	user.CreatedAt = time.Now().UTC()
	_, err := a.DB.ExecContext(
		context.Background(),
		`INSERT INTO users (username, email, hashed_password, is_active, created_at)
		VALUES (:1, :2, :3, :4, :5)
		RETURNING id INTO :6`,
		user.Username, user.Email, user.HashedPassword, user.IsActive, user.CreatedAt,
		sql.Out{Dest: &user.Id},
	)
	return err
}
