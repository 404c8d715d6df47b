package config

import (
	"time"

	"github.com/pkg/errors"
)

type WebConfig struct {
	Listen   string
	ApiToken string
}

func NewWebConfig(listen string) (WebConfig, error) {
	self := WebConfig{Listen: listen}

	self.ApiToken = GetenvStr("API_TOKEN")
	if self.ApiToken == "" {
		return self, errors.New("Environment variable API_TOKEN not set or empty")
	}

	return self, nil
}

type AuthConfig struct {
	JwtSecret []byte
	// How long issued access tokens stay valid.
	TokenExpiry time.Duration
}

func NewAuthConfig() AuthConfig {
	self := AuthConfig{
		JwtSecret:   []byte(GetenvStr("JWT_SECRET_KEY")),
		TokenExpiry: 30 * time.Minute,
	}

	if v, err := GetenvInt("JWT_ACCESS_TOKEN_EXPIRE_MINUTES", 0); err == nil && v != 0 {
		self.TokenExpiry = time.Duration(v) * time.Minute
	}

	return self
}
