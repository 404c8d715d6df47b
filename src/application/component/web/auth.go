package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/pkg/errors"

	"github.com/operify/opsgate/src/application/service"
	"github.com/operify/opsgate/src/domain"
)

type contextKey uint

const contextKeyUser contextKey = iota

var errInactiveUser = errors.New("Inactive user")

// tokenAuth guards machine-facing routes with the static API token.
// A missing token configuration rejects every request instead of
// falling open.
func (self *Web) tokenAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		given := req.Header.Get("X-API-Token")
		if self.Config.ApiToken == "" ||
			subtle.ConstantTimeCompare([]byte(given), []byte(self.Config.ApiToken)) != 1 {
			self.Unauthorized(w, errors.New("Invalid API token"))
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (self *Web) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		header := req.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			self.Unauthorized(w, errors.New("Missing bearer token"))
			return
		}

		user, err := self.userFromToken(strings.TrimPrefix(header, "Bearer "))
		if errors.Is(err, errInactiveUser) {
			self.ClientError(w, err)
			return
		} else if err != nil {
			self.Unauthorized(w, err)
			return
		}

		ctx := context.WithValue(req.Context(), contextKeyUser, user)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func (self *Web) userFromToken(token string) (*domain.User, error) {
	username, err := self.TokenService.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := self.UserService.GetByUsername(username)
	if sqlscan.NotFound(err) {
		return nil, service.ErrInvalidToken
	} else if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, errInactiveUser
	}
	return user, nil
}

func requestUser(req *http.Request) *domain.User {
	user, _ := req.Context().Value(contextKeyUser).(*domain.User)
	return user
}

type apiAuthRegisterPostBody struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (self *Web) ApiAuthRegisterPost(w http.ResponseWriter, req *http.Request) {
	body := apiAuthRegisterPostBody{}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		self.ClientError(w, errors.WithMessage(err, "While decoding the request body"))
		return
	}
	if body.Username == "" || body.Email == "" || body.Password == "" {
		self.ClientError(w, errors.New("username, email and password are required"))
		return
	}

	user, err := self.UserService.Register(body.Username, body.Email, body.Password)
	if errors.Is(err, service.ErrUsernameTaken) || errors.Is(err, service.ErrEmailTaken) {
		self.ClientError(w, err)
		return
	} else if err != nil {
		self.ServerError(w, err)
		return
	}

	self.json(w, user, http.StatusCreated)
}

type apiAuthLoginPostBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (self *Web) ApiAuthLoginPost(w http.ResponseWriter, req *http.Request) {
	body := apiAuthLoginPostBody{}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		self.ClientError(w, errors.WithMessage(err, "While decoding the request body"))
		return
	}

	user, err := self.UserService.Authenticate(body.Username, body.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		self.Unauthorized(w, err)
		return
	} else if err != nil {
		self.ServerError(w, err)
		return
	}

	token, expiresIn, err := self.TokenService.Issue(user.Username)
	if err != nil {
		self.ServerError(w, err)
		return
	}

	self.json(w, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   expiresIn,
		"user":         user,
	}, http.StatusOK)
}

func (self *Web) ApiAuthMeGet(w http.ResponseWriter, req *http.Request) {
	self.json(w, requestUser(req), http.StatusOK)
}

// Tokens are stateless so logout is just an acknowledgement,
// the client drops the token.
func (self *Web) ApiAuthLogoutPost(w http.ResponseWriter, req *http.Request) {
	self.json(w, map[string]string{"message": "Successfully logged out"}, http.StatusOK)
}
