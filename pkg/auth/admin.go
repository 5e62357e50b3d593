package auth

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/antibyte/retroturtle/pkg/configuration"
	"github.com/antibyte/retroturtle/pkg/logger"
)

const adminUser = "admin"

// HashAdminPassword returns the bcrypt hash to put into
// [Server] admin_password_hash.
func HashAdminPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckAdminCredentials compares HTTP basic credentials against the
// configured hash. Without a configured hash admin access is disabled.
func CheckAdminCredentials(user, password string) bool {
	hash := configuration.GetString("Server", "admin_password_hash", "")
	if hash == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(adminUser)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	return userOK && passOK
}

// RequireAdmin guards maintenance endpoints with HTTP basic auth.
func RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, password, ok := r.BasicAuth()
		if !ok || !CheckAdminCredentials(user, password) {
			logger.SecurityWarn("Rejected admin request to %s from %s", r.URL.Path, GetClientIP(r))
			w.Header().Set("WWW-Authenticate", `Basic realm="retroturtle"`)
			respondWithError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
