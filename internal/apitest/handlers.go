package apitest

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

func (s *Server) lookupLocked(tenant, email string) *User {
	return s.users[tenant][strings.ToLower(email)]
}

func (s *Server) validateToken(tenant string, body map[string]any) (int, any) {
	token := str(body, "token")

	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.tokens[token]
	if !ok || !strings.HasPrefix(owner, tenant+"/") {
		return http.StatusOK, map[string]any{
			"token":  "",
			"errors": map[string]string{"token": "invalid or expired token"},
		}
	}
	u := s.lookupLocked(tenant, strings.TrimPrefix(owner, tenant+"/"))
	if u == nil {
		return http.StatusOK, map[string]any{
			"token":  "",
			"errors": map[string]string{"user": "user not found"},
		}
	}
	return http.StatusOK, userReply(token, u)
}

func (s *Server) login(tenant string, body map[string]any) (int, any) {
	email, password := str(body, "email"), str(body, "password")

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.lookupLocked(tenant, email)
	if u == nil || u.Password != password {
		return http.StatusUnauthorized, map[string]any{"errors": map[string]string{"login": "invalid email or password"}}
	}
	return http.StatusOK, userReply(s.issueLocked(tenant, u.Email), u)
}

// loginProvider signs in, or registers on first sight, a provider identity.
func (s *Server) loginProvider(tenant string, body map[string]any) (int, any) {
	email := str(body, "email")
	if email == "" {
		return http.StatusBadRequest, map[string]any{"errors": map[string]string{"email": "required"}}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.lookupLocked(tenant, email)
	if u == nil {
		u = &User{
			ID:        uuid.NewString(),
			Email:     email,
			FirstName: str(body, "firstname"),
			LastName:  str(body, "lastname"),
			Avatar:    str(body, "avatar"),
			GoogleID:  str(body, "googleid"),
		}
		if s.users[tenant] == nil {
			s.users[tenant] = map[string]*User{}
		}
		s.users[tenant][strings.ToLower(email)] = u
	}
	return http.StatusOK, userReply(s.issueLocked(tenant, u.Email), u)
}

func (s *Server) forgotPassword(tenant string, body map[string]any) (int, any) {
	// The reply never reveals whether the account exists.
	return http.StatusOK, map[string]any{"message": "If the account exists a reset link has been sent"}
}

func (s *Server) changePassword(tenant string, body map[string]any) (int, any) {
	userID := str(body, "userid")
	oldPassword := str(body, "oldpassword")
	password, confirm := str(body, "password"), str(body, "password2")

	s.mu.Lock()
	defer s.mu.Unlock()
	var u *User
	for _, candidate := range s.users[tenant] {
		if candidate.ID == userID {
			u = candidate
			break
		}
	}
	switch {
	case u == nil:
		return http.StatusNotFound, map[string]any{"errors": map[string]string{"userid": "unknown user"}}
	case u.Password != oldPassword:
		return http.StatusForbidden, map[string]any{"errors": map[string]string{"oldpassword": "incorrect"}}
	case password == "" || password != confirm:
		return http.StatusBadRequest, map[string]any{"errors": map[string]string{"password2": "passwords do not match"}}
	}
	u.Password = password
	return http.StatusOK, map[string]any{"message": "password changed"}
}
