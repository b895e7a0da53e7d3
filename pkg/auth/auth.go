// Package auth is the operator-facing admin authentication for the admin
// HTTP/WebSocket surface. It is distinct from, and has no bearing on, the
// GSUP/IPA peer socket: that protocol carries no peer authentication by
// design.
package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Service issues and validates operator bearer tokens.
type Service struct {
	config    Config
	jwtSecret []byte

	mu       sync.Mutex
	users    map[string]*User
	sessions map[string]*Session
}

// Config configures the admin auth service.
type Config struct {
	JWTSecret   string
	TokenExpiry time.Duration
}

// User is an admin operator account.
type User struct {
	Username     string
	PasswordHash string
	Enabled      bool
	LastLogin    time.Time
}

// Session is an active, JWT-backed operator session.
type Session struct {
	Token     string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Claims is the JWT payload issued to operators.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserDisabled       = errors.New("user account disabled")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
)

// NewService builds a Service. An empty cfg.JWTSecret means the admin
// surface should not be started at all; callers are expected to check
// that before constructing a Service.
func NewService(cfg Config) *Service {
	return &Service{
		config:    cfg,
		jwtSecret: []byte(cfg.JWTSecret),
		users:     make(map[string]*User),
		sessions:  make(map[string]*Session),
	}
}

// RegisterUser adds an operator account. password is hashed with bcrypt.
func (s *Service) RegisterUser(username, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[username]; exists {
		return fmt.Errorf("user %q already exists", username)
	}
	s.users[username] = &User{Username: username, PasswordHash: hash, Enabled: true}
	return nil
}

// Authenticate checks username/password and, on success, issues a JWT
// session.
func (s *Service) Authenticate(username, password string) (*Session, error) {
	s.mu.Lock()
	user, ok := s.users[username]
	s.mu.Unlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if !user.Enabled {
		return nil, ErrUserDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	user.LastLogin = time.Now()
	return s.createSession(user)
}

func (s *Service) createSession(user *User) (*Session, error) {
	expiresAt := time.Now().Add(s.config.TokenExpiry)

	claims := &Claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   user.Username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	session := &Session{
		Token:     tokenString,
		Username:  user.Username,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}

	s.mu.Lock()
	s.sessions[tokenString] = session
	s.mu.Unlock()

	return session, nil
}

// ValidateToken checks a bearer token's signature and expiry.
func (s *Service) ValidateToken(tokenString string) (*Session, error) {
	s.mu.Lock()
	if session, ok := s.sessions[tokenString]; ok {
		if time.Now().After(session.ExpiresAt) {
			delete(s.sessions, tokenString)
			s.mu.Unlock()
			return nil, ErrTokenExpired
		}
		s.mu.Unlock()
		return session, nil
	}
	s.mu.Unlock()

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}

	session := &Session{
		Token:     tokenString,
		Username:  claims.Username,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	s.mu.Lock()
	s.sessions[tokenString] = session
	s.mu.Unlock()
	return session, nil
}

// Logout removes token from the session cache. The token itself is not
// revoked: ValidateToken still accepts it, by verifying its signature and
// expiry, until it expires.
func (s *Service) Logout(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// HashPassword generates a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
