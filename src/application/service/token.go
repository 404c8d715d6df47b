package service

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/operify/opsgate/src/config"
)

var ErrInvalidToken = errors.New("Invalid or expired token")

type TokenService interface {
	// Issue returns a signed token for the subject and its lifetime in seconds.
	Issue(subject string) (string, int, error)
	// Verify returns the subject of a valid token.
	Verify(token string) (string, error)
}

type tokenService struct {
	logger zerolog.Logger
	config config.AuthConfig
}

func NewTokenService(cfg config.AuthConfig, logger *zerolog.Logger) TokenService {
	return &tokenService{
		logger: logger.With().Str("component", "TokenService").Logger(),
		config: cfg,
	}
}

func (self tokenService) Issue(subject string) (string, int, error) {
	self.logger.Trace().Str("subject", subject).Msg("Issuing token")

	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(self.config.TokenExpiry)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(self.config.JwtSecret)
	if err != nil {
		return "", 0, errors.WithMessage(err, "While signing the token")
	}

	return token, int(self.config.TokenExpiry.Seconds()), nil
}

func (self tokenService) Verify(token string) (string, error) {
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("Unexpected signing method %q", t.Method.Alg())
		}
		return self.config.JwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		self.logger.Debug().Err(err).Msg("Token verification failed")
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}
