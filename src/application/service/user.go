package service

import (
	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/operify/opsgate/src/config"
	"github.com/operify/opsgate/src/domain"
	"github.com/operify/opsgate/src/domain/repository"
	"github.com/operify/opsgate/src/infrastructure/persistence"
)

var (
	ErrUsernameTaken      = errors.New("Username already registered")
	ErrEmailTaken         = errors.New("Email already registered")
	ErrInvalidCredentials = errors.New("Incorrect username or password")
)

type UserService interface {
	WithQuerier(config.DbIface) UserService

	Register(username, email, password string) (*domain.User, error)
	Authenticate(username, password string) (*domain.User, error)
	GetByUsername(string) (*domain.User, error)
}

type userService struct {
	logger         zerolog.Logger
	userRepository repository.UserRepository
}

func NewUserService(db config.DbIface, logger *zerolog.Logger) UserService {
	return &userService{
		logger:         logger.With().Str("component", "UserService").Logger(),
		userRepository: persistence.NewUserRepository(db),
	}
}

func (self *userService) WithQuerier(querier config.DbIface) UserService {
	return &userService{
		self.logger,
		self.userRepository.WithQuerier(querier),
	}
}

func (self userService) Register(username, email, password string) (*domain.User, error) {
	logger := self.logger.With().Str("username", username).Logger()
	logger.Trace().Msg("Registering user")

	if _, err := self.userRepository.GetByUsername(username); err == nil {
		return nil, ErrUsernameTaken
	} else if !sqlscan.NotFound(err) {
		return nil, errors.WithMessagef(err, "While checking for existing username %q", username)
	}

	if _, err := self.userRepository.GetByEmail(email); err == nil {
		return nil, ErrEmailTaken
	} else if !sqlscan.NotFound(err) {
		return nil, errors.WithMessagef(err, "While checking for existing email %q", email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.WithMessage(err, "While hashing the password")
	}

	user := &domain.User{
		Username:       username,
		Email:          email,
		HashedPassword: string(hash),
		IsActive:       true,
	}
	if err := self.userRepository.Save(user); err != nil {
		return nil, errors.WithMessagef(err, "While saving user %q", username)
	}

	logger.Trace().Int64("id", user.Id).Msg("Registered user")
	return user, nil
}

func (self userService) Authenticate(username, password string) (*domain.User, error) {
	logger := self.logger.With().Str("username", username).Logger()
	logger.Trace().Msg("Authenticating user")

	user, err := self.userRepository.GetByUsername(username)
	if sqlscan.NotFound(err) {
		return nil, ErrInvalidCredentials
	} else if err != nil {
		return nil, errors.WithMessagef(err, "While getting user %q", username)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		logger.Debug().Msg("Password mismatch")
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		logger.Debug().Msg("User is inactive")
		return nil, ErrInvalidCredentials
	}

	logger.Trace().Int64("id", user.Id).Msg("Authenticated user")
	return user, nil
}

func (self userService) GetByUsername(username string) (*domain.User, error) {
	self.logger.Trace().Str("username", username).Msg("Getting user")
	user, err := self.userRepository.GetByUsername(username)
	if err != nil {
		return nil, errors.WithMessagef(err, "While getting user %q", username)
	}
	return user, nil
}
