// Package identity отвечает на один вопрос: кто текущий пользователь.
package identity

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Provider отдаёт ID текущего пользователя или false, если вход не выполнен.
type Provider interface {
	UserID() (string, bool)
}

// Session - изменяемый провайдер для одного клиента.
type Session struct {
	mu     sync.RWMutex
	userID string
}

// NewSession создает сессию; пустой userID означает анонима.
func NewSession(userID string) *Session {
	return &Session{userID: userID}
}

// Anonymous возвращает сессию без пользователя.
func Anonymous() *Session { return &Session{} }

func (s *Session) UserID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID, s.userID != ""
}

func (s *Session) SignIn(userID string) {
	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()
}

func (s *Session) SignOut() {
	s.mu.Lock()
	s.userID = ""
	s.mu.Unlock()
}

// ErrInvalidToken - токен не прошёл проверку.
var ErrInvalidToken = errors.New("invalid token")

// FromToken проверяет HS256-токен и строит сессию по claim "sub".
func FromToken(secret, tokenString string) (*Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return NewSession(sub), nil
}

// IssueToken подписывает токен для userID. Используется сидами и тестами.
func IssueToken(secret, userID string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("JWT secret not configured")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
