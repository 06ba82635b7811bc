// Package apitest runs an in-process auth backend speaking the same five
// endpoints as the real one. It keeps users per tenant, issues opaque tokens
// and can hold or override replies so callers can exercise ordering and error
// paths.
package apitest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/cairnsgames/cgAuth/internal/api"
	"github.com/google/uuid"
)

// User is a backend account.
type User struct {
	ID        string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Avatar    string
	GoogleID  string
}

// Request is a recorded call.
type Request struct {
	Endpoint string
	Tenant   string
	Debug    bool
	Body     map[string]any
}

// Reply overrides the next reply of an endpoint.
type Reply struct {
	Status int
	// Body is marshalled as JSON unless it is already a string, which is sent
	// verbatim.
	Body any
}

// Server is a fake backend. The zero value is not usable; call New.
type Server struct {
	*httptest.Server

	// Header is the tenant header the server reads. Defaults to APP_ID.
	Header string
	// DoubleEncode wraps every JSON reply in a JSON string.
	DoubleEncode bool

	mu        sync.Mutex
	users     map[string]map[string]*User // tenant -> email -> user
	tokens    map[string]string           // token -> tenant/email
	requests  []Request
	overrides map[string][]Reply
	holds     map[string]chan struct{}
}

// New starts a server. Callers must Close it.
func New() *Server {
	s := &Server{
		Header:    api.DefaultTenantHeader,
		users:     map[string]map[string]*User{},
		tokens:    map[string]string{},
		overrides: map[string][]Reply{},
		holds:     map[string]chan struct{}{},
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/"+api.EndpointValidateToken, s.handle(api.EndpointValidateToken, s.validateToken))
	mux.HandleFunc("/"+api.EndpointLogin, s.handle(api.EndpointLogin, s.login))
	mux.HandleFunc("/"+api.EndpointLoginProvider, s.handle(api.EndpointLoginProvider, s.loginProvider))
	mux.HandleFunc("/"+api.EndpointForgotPassword, s.handle(api.EndpointForgotPassword, s.forgotPassword))
	mux.HandleFunc("/"+api.EndpointChangePassword, s.handle(api.EndpointChangePassword, s.changePassword))
	return mux
}

// AddUser registers u under tenant and returns a token already issued for it.
func (s *Server) AddUser(tenant string, u User) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if s.users[tenant] == nil {
		s.users[tenant] = map[string]*User{}
	}
	s.users[tenant][strings.ToLower(u.Email)] = &u
	return s.issueLocked(tenant, u.Email)
}

// IssueToken returns a fresh valid token for an existing user.
func (s *Server) IssueToken(tenant, email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(tenant, email)
}

func (s *Server) issueLocked(tenant, email string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	s.tokens[token] = tenant + "/" + strings.ToLower(email)
	return token
}

// Override queues reply as the next answer of endpoint, bypassing the
// backend logic.
func (s *Server) Override(endpoint string, reply Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[endpoint] = append(s.overrides[endpoint], reply)
}

// Hold blocks every call to endpoint after its request has been recorded
// until the returned release func runs.
func (s *Server) Hold(endpoint string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[endpoint] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.holds[endpoint] == ch {
				delete(s.holds, endpoint)
			}
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Requests returns the calls received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many calls endpoint received.
func (s *Server) Count(endpoint string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Endpoint == endpoint {
			n++
		}
	}
	return n
}

type handlerFunc func(tenant string, body map[string]any) (int, any)

func (s *Server) handle(endpoint string, fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var body map[string]any
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			if err := json.Unmarshal(data, &body); err != nil {
				s.write(w, http.StatusBadRequest, map[string]any{"errors": "invalid json"})
				return
			}
		}
		tenant := r.Header.Get(s.Header)

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Endpoint: endpoint,
			Tenant:   tenant,
			Debug:    r.URL.Query().Get("debug") == "true",
			Body:     body,
		})
		hold := s.holds[endpoint]
		var override *Reply
		if q := s.overrides[endpoint]; len(q) > 0 {
			override = &q[0]
			s.overrides[endpoint] = q[1:]
		}
		s.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}

		if override != nil {
			s.write(w, override.Status, override.Body)
			return
		}
		if tenant == "" {
			s.write(w, http.StatusBadRequest, map[string]any{"errors": "missing tenant"})
			return
		}
		status, reply := fn(tenant, body)
		s.write(w, status, reply)
	}
}

func (s *Server) write(w http.ResponseWriter, status int, body any) {
	if status == 0 {
		status = http.StatusOK
	}
	var data []byte
	switch b := body.(type) {
	case nil:
	case string:
		data = []byte(b)
	default:
		data, _ = json.Marshal(b)
		if s.DoubleEncode {
			data, _ = json.Marshal(string(data))
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func str(body map[string]any, key string) string {
	v, _ := body[key].(string)
	return v
}

func userReply(token string, u *User) map[string]any {
	return map[string]any{
		"token":     token,
		"id":        u.ID,
		"email":     u.Email,
		"firstname": u.FirstName,
		"lastname":  u.LastName,
		"avatar":    u.Avatar,
	}
}
