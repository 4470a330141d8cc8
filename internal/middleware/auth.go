package middleware

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/civictrack/backend/internal/models"
	"github.com/civictrack/backend/internal/services"
)

// Authenticator resolves bearer tokens to live user records. Token decode
// failures answer with a specific message (expired vs invalid); an unknown
// subject collapses into the same generic 401 so callers cannot probe which
// phones are registered.
type Authenticator struct {
	db     *sql.DB
	tokens *services.TokenService
}

func NewAuthenticator(db *sql.DB, tokens *services.TokenService) *Authenticator {
	return &Authenticator{db: db, tokens: tokens}
}

// Authenticate validates the Authorization header and stores the resolved
// user plus the token's admin claim in the request context.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			services.SendErrorResponse(w, "Authorization header required", http.StatusUnauthorized, nil)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			services.SendErrorResponse(w, "Invalid authorization header format", http.StatusUnauthorized, nil)
			return
		}

		phone, adminClaim, err := a.tokens.Verify(parts[1])
		if err != nil {
			if errors.Is(err, services.ErrTokenExpired) {
				services.SendErrorResponse(w, "Token expired", http.StatusUnauthorized, nil)
			} else {
				services.SendErrorResponse(w, "Invalid token", http.StatusUnauthorized, nil)
			}
			return
		}

		var user models.User
		var name, citizenshipNum, district, city sql.NullString
		var wardNum sql.NullInt64
		err = a.db.QueryRow(
			"SELECT id, name, phone, password, citizenship_num, district, city, ward_num, admin FROM users WHERE phone = $1",
			phone,
		).Scan(&user.ID, &name, &user.Phone, &user.Password, &citizenshipNum, &district, &city, &wardNum, &user.Admin)
		if err != nil {
			log.Printf("[AUTH] Token subject has no user record: %s", phone)
			services.SendErrorResponse(w, "Could not validate credentials", http.StatusUnauthorized, nil)
			return
		}
		user.Name = name.String
		user.CitizenshipNum = citizenshipNum.String
		user.District = district.String
		user.City = city.String
		user.WardNum = int(wardNum.Int64)

		ctx := services.WithIdentity(r.Context(), &user, adminClaim)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin gates a route on the live admin flag of the resolved user.
// The token's admin claim is deliberately not trusted here: promotion or
// demotion takes effect on the next request, not at the next login.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := services.CurrentUser(r.Context())
		if !ok {
			services.SendErrorResponse(w, "Could not validate credentials", http.StatusUnauthorized, nil)
			return
		}
		if !user.Admin {
			services.SendErrorResponse(w, "Unauthorized Access", http.StatusForbidden, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
