package auth

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/antibyte/retroturtle/pkg/configuration"
	"github.com/antibyte/retroturtle/pkg/logger"
)

// SessionResponse is the JSON body of every auth endpoint.
type SessionResponse struct {
	Success   bool   `json:"success"`
	Token     string `json:"token,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message"`
}

// setCORSHeaders writes the headers shared by the JSON endpoints and
// reports whether the request was a preflight that is now answered.
func setCORSHeaders(w http.ResponseWriter, r *http.Request, methods string) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods+", OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Content-Type", "application/json")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return true
	}
	return false
}

func sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName(),
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   configuration.GetBool("Session", "session_cookie_secure", false),
		SameSite: http.SameSiteLaxMode,
	}
}

// HandleCreateSession issues a fresh session id with its token, both in the
// JSON body and as a cookie.
func HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	if setCORSHeaders(w, r, "POST") {
		return
	}
	if r.Method != http.MethodPost {
		logger.AuthWarn("Invalid method for session creation: %s", r.Method)
		respondWithError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := generateSessionID()
	token, err := GenerateSessionToken(sessionID)
	if err != nil {
		logger.AuthError("Failed to generate token for session %s: %v", sessionID, err)
		respondWithError(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, sessionCookie(token, int(getTokenExpiration().Seconds())))

	logger.AuthInfo("New session %s for %s", sessionID, GetClientIP(r))
	json.NewEncoder(w).Encode(SessionResponse{
		Success:   true,
		Token:     token,
		SessionID: sessionID,
		Message:   "Session created",
	})
}

// HandleTokenValidation reports whether the request carries a valid token.
func HandleTokenValidation(w http.ResponseWriter, r *http.Request) {
	if setCORSHeaders(w, r, "GET, POST") {
		return
	}

	tokenString, err := ExtractTokenFromRequest(r)
	if err != nil {
		respondWithError(w, "Token not found", http.StatusUnauthorized)
		return
	}
	claims, err := ValidateSessionToken(tokenString)
	if err != nil {
		logger.AuthWarn("Token validation failed: %v", err)
		respondWithError(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	json.NewEncoder(w).Encode(SessionResponse{
		Success:   true,
		SessionID: claims.SessionID,
		Message:   "Token valid",
	})
}

// HandleLogout clears the session cookie.
func HandleLogout(w http.ResponseWriter, r *http.Request) {
	if setCORSHeaders(w, r, "POST") {
		return
	}

	http.SetCookie(w, sessionCookie("", -1))
	logger.AuthInfo("Session cookie cleared for %s", GetClientIP(r))
	json.NewEncoder(w).Encode(SessionResponse{Success: true, Message: "Logout successful"})
}

func generateSessionID() string {
	return uuid.New().String()
}

// IsValidSessionID reports whether id has the form produced by
// HandleCreateSession.
func IsValidSessionID(id string) bool {
	parsed, err := uuid.Parse(id)
	return err == nil && parsed.String() == strings.ToLower(id)
}

// GetClientIP returns the first X-Forwarded-For hop, X-Real-IP, or the
// host part of RemoteAddr.
func GetClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func respondWithError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(SessionResponse{Success: false, Message: message})
}
