// Package auth issues and validates the signed session tokens that bind a
// browser to its interpreter session.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/antibyte/retroturtle/pkg/configuration"
	"github.com/antibyte/retroturtle/pkg/logger"
)

const (
	defaultJWTSecret       = "fallback_secret_change_in_production"
	defaultTokenExpiration = 24 * time.Hour
	tokenSubject           = "session"
)

// Token errors.
var (
	ErrNoToken      = errors.New("no token found in request")
	ErrInvalidToken = errors.New("invalid token")
)

// getJWTSecret prefers the JWT_SECRET_KEY environment variable over the
// configuration file.
func getJWTSecret() string {
	if envSecret := os.Getenv("JWT_SECRET_KEY"); envSecret != "" {
		return envSecret
	}

	secret := configuration.GetString("JWT", "secret_key", "")
	if secret == "" {
		logger.SecurityWarn("Using fallback JWT secret - set JWT_SECRET_KEY for production")
		return defaultJWTSecret
	}
	return secret
}

func getTokenExpiration() time.Duration {
	return configuration.GetDuration("JWT", "token_lifetime", defaultTokenExpiration)
}

func getIssuer() string {
	return configuration.GetString("JWT", "issuer", "retroturtle")
}

// SessionClaims are carried by every session token.
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// GenerateSessionToken signs an HS256 token for sessionID.
func GenerateSessionToken(sessionID string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(getTokenExpiration())),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    getIssuer(),
			Subject:   tokenSubject,
			ID:        sessionID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(getJWTSecret()))
	if err != nil {
		return "", fmt.Errorf("token could not be signed: %w", err)
	}
	logger.AuthDebug("Session token generated for %s", sessionID)
	return signed, nil
}

// ValidateSessionToken checks signature, algorithm, issuer and expiry and
// returns the claims.
func ValidateSessionToken(tokenString string) (*SessionClaims, error) {
	secret := getJWTSecret()

	token, err := jwt.ParseWithClaims(
		tokenString,
		&SessionClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing algorithm: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
		jwt.WithIssuer(getIssuer()),
		jwt.WithSubject(tokenSubject),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.SessionID == "" {
		return nil, fmt.Errorf("%w: missing session id", ErrInvalidToken)
	}
	return claims, nil
}

// CookieName is the cookie carrying the session token.
func CookieName() string {
	return configuration.GetString("Session", "session_cookie_name", "session_token")
}

// ExtractTokenFromRequest looks for a token in the Authorization header
// ("Bearer <token>"), then the session cookie, then the "token" query
// parameter.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Fields(authHeader)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1], nil
		}
		return "", fmt.Errorf("invalid authorization header format")
	}

	if cookie, err := r.Cookie(CookieName()); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", ErrNoToken
}

// RequireSessionToken rejects requests without a valid session token and
// puts the claims into the request context.
func RequireSessionToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next(w, r)
			return
		}

		tokenString, err := ExtractTokenFromRequest(r)
		if err != nil {
			logger.AuthWarn("No token in request to %s: %v", r.URL.Path, err)
			respondWithError(w, "Unauthorized: token missing", http.StatusUnauthorized)
			return
		}

		claims, err := ValidateSessionToken(tokenString)
		if err != nil {
			logger.AuthWarn("Rejected token for %s: %v", r.URL.Path, err)
			respondWithError(w, "Unauthorized: invalid token", http.StatusUnauthorized)
			return
		}

		next(w, r.WithContext(AddClaimsToContext(r.Context(), claims)))
	}
}
