package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	gSecret   []byte
	gTokenTTL time.Duration
)

// Claims — полезная нагрузка токена сессии.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Init настраивает пакет секретом подписи и временем жизни токена.
func Init(cfg *Config) {
	gSecret = []byte(cfg.JWTSecret)
	gTokenTTL = time.Duration(cfg.TokenTTL) * time.Hour
}

// IssueToken выпускает подписанный токен сессии для аккаунта.
func IssueToken(accountID uuid.UUID, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(gTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(gSecret)
}

// VerifyToken проверяет токен из запроса и возвращает id аккаунта.
// Токен берем из заголовка Authorization либо из cookie сессии.
func VerifyToken(r *http.Request) (uuid.UUID, error) {
	accountID, _, err := VerifyTokenWithRole(r)
	return accountID, err
}

// VerifyTokenWithRole дополнительно возвращает роль из токена —
// нужна хендлерам административных эндпоинтов.
func VerifyTokenWithRole(r *http.Request) (uuid.UUID, string, error) {
	raw := tokenFromRequest(r)
	if raw == "" {
		return uuid.Nil, "", fmt.Errorf("no authorization header")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return gSecret, nil
	})
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return uuid.Nil, "", fmt.Errorf("invalid token")
	}

	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid token subject: %w", err)
	}

	return accountID, claims.Role, nil
}

func tokenFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}

	if cookie, err := r.Cookie("session"); err == nil {
		return cookie.Value
	}

	return ""
}
