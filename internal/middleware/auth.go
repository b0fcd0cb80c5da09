// Package middleware содержит HTTP middleware для сервиса заказа пиццы.
package middleware

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const subjectKey contextKey = "subject"

// Типы токенов, различаемые по claim "type".
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// InvalidTokenMessage отдаётся клиенту при любой ошибке проверки токена.
const InvalidTokenMessage = "Invalid token"

// ErrInvalidToken возвращается, если токен отсутствует, повреждён, просрочен или имеет неверный тип.
var ErrInvalidToken = errors.New("invalid token")

type tokenClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// TokenPair содержит выданные пользователю токены.
type TokenPair struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
}

// AuthMiddleware выпускает и проверяет подписанные JWT (HS256).
type AuthMiddleware struct {
	secretKey  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware. При пустом секрете
// генерируется случайный ключ, и токены перестают быть валидными после перезапуска.
func NewAuthMiddleware(secret string, accessTTL, refreshTTL time.Duration) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey:  key,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Middleware пропускает запрос только с валидным access-токеном и кладёт subject в контекст.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return a.require(TokenTypeAccess, next)
}

// RefreshMiddleware пропускает запрос только с валидным refresh-токеном.
func (a *AuthMiddleware) RefreshMiddleware(next http.Handler) http.Handler {
	return a.require(TokenTypeRefresh, next)
}

func (a *AuthMiddleware) require(tokenType string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			http.Error(w, InvalidTokenMessage, http.StatusUnauthorized)
			return
		}

		subject, err := a.ParseToken(raw, tokenType)
		if err != nil {
			http.Error(w, InvalidTokenMessage, http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
	})
}

// IssueTokens выпускает пару access/refresh токенов для пользователя.
func (a *AuthMiddleware) IssueTokens(username string) (TokenPair, error) {
	access, err := a.IssueAccessToken(username)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := a.sign(username, TokenTypeRefresh, a.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// IssueAccessToken выпускает только access-токен.
func (a *AuthMiddleware) IssueAccessToken(username string) (string, error) {
	return a.sign(username, TokenTypeAccess, a.accessTTL)
}

func (a *AuthMiddleware) sign(subject, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// ParseToken проверяет подпись, срок действия и тип токена и возвращает subject.
func (a *AuthMiddleware) ParseToken(raw, tokenType string) (string, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (interface{}, error) {
			return a.secretKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	if claims.Type != tokenType || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}

// SubjectFromContext извлекает имя пользователя из контекста запроса.
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey).(string)
	return subject, ok
}

// WithSubject кладёт имя пользователя в контекст.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}
