package cgAuth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/cairnsgames/cgAuth/internal/api"
	"github.com/cairnsgames/cgAuth/internal/apitest"
	"github.com/cairnsgames/cgAuth/store"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

type testEnv struct {
	m        *Manager
	srv      *apitest.Server
	store    *store.Memory
	location *MemoryLocation
	logs     *logtest.Hook
}

func newTestEnv(t *testing.T, mutate func(*Config, *Builder)) *testEnv {
	t.Helper()

	srv := apitest.New()
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.API.BaseURL = srv.URL

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	env := &testEnv{
		srv:      srv,
		store:    store.NewMemory(),
		location: &MemoryLocation{},
		logs:     hook,
	}

	b := New().
		WithStore(env.store).
		WithLocation(env.location).
		WithLogger(logger).
		WithTenant("acme")
	if mutate != nil {
		mutate(&cfg, b)
	}
	b.WithConfig(cfg)

	m, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(m.Close)
	env.m = m
	return env
}

func (e *testEnv) record(t *testing.T, tenant string) (string, bool) {
	t.Helper()
	v, ok, err := e.store.Get(context.Background(), "cg."+tenant+".auth")
	if err != nil {
		t.Fatalf("store get: %v", err)
	}
	return v, ok
}

func (e *testEnv) persist(t *testing.T, tenant, token string) {
	t.Helper()
	if err := e.store.Set(context.Background(), "cg."+tenant+".auth", token); err != nil {
		t.Fatalf("store set: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func signProviderToken(t *testing.T, claims gojwt.MapClaims) string {
	t.Helper()
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte("provider-test-key"))
	if err != nil {
		t.Fatalf("sign provider token: %v", err)
	}
	return token
}

func TestRestoreAdoptsValidatedSession(t *testing.T) {
	env := newTestEnv(t, nil)
	env.persist(t, "acme", "abc123")
	env.srv.Override(api.EndpointValidateToken, apitest.Reply{Body: map[string]any{
		"token":     "abc123",
		"email":     "a@b.com",
		"firstname": "A",
		"lastname":  "B",
		"avatar":    "x.png",
	}})

	if err := env.m.Restore(context.Background()); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if got := env.m.Token(); got != "abc123" {
		t.Fatalf("expected token abc123, got %q", got)
	}
	user := env.m.User()
	if user == nil {
		t.Fatal("expected user after restore")
	}
	if user.DisplayName != "A B" {
		t.Fatalf("expected display name %q, got %q", "A B", user.DisplayName)
	}
	if user.Email != "a@b.com" || user.AvatarURL != "x.png" {
		t.Fatalf("unexpected user %+v", user)
	}

	reqs := env.srv.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected one backend call, got %d", len(reqs))
	}
	if reqs[0].Tenant != "acme" || reqs[0].Body["token"] != "abc123" || !reqs[0].Debug {
		t.Fatalf("unexpected validate request %+v", reqs[0])
	}
}

func TestRestoreDecodesDoubleEncodedReply(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.srv.AddUser("acme", apitest.User{Email: "d@e.com", FirstName: "D", LastName: "E"})
	env.srv.DoubleEncode = true
	env.persist(t, "acme", token)

	if err := env.m.Restore(context.Background()); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if env.m.Token() != token {
		t.Fatalf("expected token %q, got %q", token, env.m.Token())
	}
	if u := env.m.User(); u == nil || u.DisplayName != "D E" {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestRestoreSkipsAbsentOrUndefinedRecord(t *testing.T) {
	for _, record := range []string{"", "undefined", "-"} {
		t.Run(record, func(t *testing.T) {
			env := newTestEnv(t, nil)
			if record != "-" {
				env.persist(t, "acme", record)
			}

			if err := env.m.Restore(context.Background()); err != nil {
				t.Fatalf("Restore failed: %v", err)
			}
			if s := env.m.Session(); s.Token != "" || s.User != nil {
				t.Fatalf("expected empty session, got %+v", s)
			}
			if n := env.srv.Count(api.EndpointValidateToken); n != 0 {
				t.Fatalf("expected no validate call, got %d", n)
			}
		})
	}
}

func TestRestoreValidationErrorsAdoptedByDefault(t *testing.T) {
	env := newTestEnv(t, nil)
	env.persist(t, "acme", "stale-token")

	if err := env.m.Restore(context.Background()); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	// The reply's empty token replaces the optimistic one; the record stays.
	if env.m.Token() != "" {
		t.Fatalf("expected reply token to be adopted, got %q", env.m.Token())
	}
	if env.m.User() == nil {
		t.Fatal("expected user to be replaced from reply")
	}
	if v, ok := env.record(t, "acme"); !ok || v != "stale-token" {
		t.Fatalf("expected persisted record to remain, got %q %v", v, ok)
	}
	if got := env.m.MetricsSnapshot().Counters[MetricRestoreValidationErrors]; got != 1 {
		t.Fatalf("expected validation error counter 1, got %d", got)
	}

	found := false
	for _, e := range env.logs.AllEntries() {
		if e.Level == logrus.WarnLevel && strings.Contains(e.Message, "errors") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected validation errors to be logged")
	}
}

func TestRestoreRejectOnErrors(t *testing.T) {
	env := newTestEnv(t, func(c *Config, _ *Builder) {
		c.Restore.RejectOnErrors = true
	})
	env.persist(t, "acme", "stale-token")

	err := env.m.Restore(context.Background())
	if !errors.Is(err, ErrValidationRejected) {
		t.Fatalf("expected ErrValidationRejected, got %v", err)
	}
	if s := env.m.Session(); s.Token != "" || s.User != nil {
		t.Fatalf("expected cleared session, got %+v", s)
	}
	if v, ok := env.record(t, "acme"); !ok || v != "stale-token" {
		t.Fatalf("expected persisted record to remain, got %q %v", v, ok)
	}
}

func TestRestoreFailureKeepsOptimisticToken(t *testing.T) {
	env := newTestEnv(t, nil)
	env.persist(t, "acme", "abc123")
	env.srv.Override(api.EndpointValidateToken, apitest.Reply{Status: http.StatusInternalServerError, Body: "oops"})

	err := env.m.Restore(context.Background())
	if !errors.Is(err, ErrBackendStatus) {
		t.Fatalf("expected ErrBackendStatus, got %v", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected StatusError 500, got %v", err)
	}
	if env.m.Token() != "abc123" {
		t.Fatalf("expected optimistic token, got %q", env.m.Token())
	}
}

func TestRestoreResetsAuthFragment(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.srv.AddUser("acme", apitest.User{Email: "a@b.com"})
	env.persist(t, "acme", token)
	env.location.SetFragment("#/auth/callback")

	if err := env.m.Restore(context.Background()); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if f := env.location.Fragment(); f != "" {
		t.Fatalf("expected fragment reset, got %q", f)
	}
}

func TestLoginSetsTokenAndPersists(t *testing.T) {
	env := newTestEnv(t, nil)
	env.srv.AddUser("acme", apitest.User{ID: "7", Email: "a@b.com", Password: "pw", FirstName: "Ann", LastName: "Bee"})

	resp, err := env.m.Login(context.Background(), "a@b.com", "pw")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if resp.Token == "" || resp.Token != env.m.Token() {
		t.Fatalf("expected session token %q to match reply %q", env.m.Token(), resp.Token)
	}
	if v, ok := env.record(t, "acme"); !ok || v != resp.Token {
		t.Fatalf("expected persisted token %q, got %q", resp.Token, v)
	}
	u := env.m.User()
	if u == nil || u.ID != "7" || u.DisplayName != "Ann Bee" {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestLoginFailureLeavesStateUnchanged(t *testing.T) {
	env := newTestEnv(t, nil)
	env.srv.AddUser("acme", apitest.User{Email: "a@b.com", Password: "pw"})

	_, err := env.m.Login(context.Background(), "a@b.com", "wrong")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}
	if s := env.m.Session(); s.Authenticated() || s.User != nil {
		t.Fatalf("expected empty session, got %+v", s)
	}
	if env.store.Len() != 0 {
		t.Fatal("expected nothing persisted")
	}
	for _, e := range env.logs.AllEntries() {
		line, _ := e.String()
		if strings.Contains(line, "wrong") {
			t.Fatalf("password leaked into log: %s", line)
		}
	}
}

func TestLoginUndecodableReply(t *testing.T) {
	env := newTestEnv(t, nil)
	env.srv.Override(api.EndpointLogin, apitest.Reply{Body: "<html>"})

	_, err := env.m.Login(context.Background(), "a@b.com", "pw")
	if !errors.Is(err, ErrDecodeResponse) {
		t.Fatalf("expected ErrDecodeResponse, got %v", err)
	}
	if env.m.Token() != "" {
		t.Fatal("expected no token")
	}
}

func TestLogoutClearsSessionAndIsIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	env.srv.AddUser("acme", apitest.User{Email: "a@b.com", Password: "pw"})
	if _, err := env.m.Login(context.Background(), "a@b.com", "pw"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	env.location.SetFragment("#profile")

	for i := 0; i < 2; i++ {
		if err := env.m.Logout(context.Background()); err != nil {
			t.Fatalf("Logout %d failed: %v", i, err)
		}
		if s := env.m.Session(); s != (Session{}) {
			t.Fatalf("expected empty session after logout %d, got %+v", i, s)
		}
		if _, ok := env.record(t, "acme"); ok {
			t.Fatal("expected persisted record removed")
		}
	}
	if env.location.Fragment() != "" {
		t.Fatalf("expected fragment reset, got %q", env.location.Fragment())
	}
	if n := len(env.srv.Requests()); n != 1 {
		t.Fatalf("logout must not call the backend, saw %d calls", n)
	}
}

func TestProviderLoginProvisionalUser(t *testing.T) {
	env := newTestEnv(t, nil)
	env.location.SetFragment("auth=google")
	token := signProviderToken(t, gojwt.MapClaims{
		"email":          "g@x.com",
		"given_name":     "G",
		"family_name":    "X",
		"sub":            "999",
		"picture":        "p.png",
		"verified_email": "true",
	})

	release := env.srv.Hold(api.EndpointLoginProvider)
	done := make(chan error, 1)
	go func() {
		done <- env.m.SetProviderAccessToken(context.Background(), token)
	}()
	waitFor(t, "provider login call", func() bool {
		return env.srv.Count(api.EndpointLoginProvider) == 1
	})

	s := env.m.Session()
	if s.PendingProviderToken != token {
		t.Fatal("expected pending provider token")
	}
	if s.Token != "" {
		t.Fatalf("expected no backend token before confirmation, got %q", s.Token)
	}
	want := UserProfile{
		ID:            "999",
		Email:         "g@x.com",
		GivenName:     "G",
		FamilyName:    "X",
		DisplayName:   "G X",
		AvatarURL:     "p.png",
		VerifiedEmail: "true",
	}
	if s.User == nil || *s.User != want {
		t.Fatalf("provisional user mismatch:\n got %+v\nwant %+v", s.User, want)
	}

	release()
	if err := <-done; err != nil {
		t.Fatalf("SetProviderAccessToken failed: %v", err)
	}
	if env.m.Token() == "" {
		t.Fatal("expected backend token after confirmation")
	}
	if v, _ := env.record(t, "acme"); v != env.m.Token() {
		t.Fatalf("expected token persisted, got %q", v)
	}
	if env.location.Fragment() != "" {
		t.Fatalf("expected fragment reset, got %q", env.location.Fragment())
	}

	req := env.srv.Requests()[0]
	if req.Debug {
		t.Fatal("provider login must not carry the debug query")
	}
	if req.Body["googleid"] != "999" || req.Body["firstname"] != "G" || req.Body["avatar"] != "p.png" {
		t.Fatalf("unexpected provider login body %+v", req.Body)
	}
}

func TestProviderTokenUndecodable(t *testing.T) {
	env := newTestEnv(t, nil)

	err := env.m.SetProviderAccessToken(context.Background(), "not-a-jwt")
	if !errors.Is(err, ErrProviderToken) {
		t.Fatalf("expected ErrProviderToken, got %v", err)
	}
	s := env.m.Session()
	if s.PendingProviderToken != "not-a-jwt" || s.User != nil || s.Token != "" {
		t.Fatalf("unexpected session %+v", s)
	}
	if env.srv.Count(api.EndpointLoginProvider) != 0 {
		t.Fatal("expected no backend call")
	}

	if err := env.m.SetProviderAccessToken(context.Background(), ""); err != nil {
		t.Fatalf("clearing provider token failed: %v", err)
	}
	if env.m.Session().PendingProviderToken != "" {
		t.Fatal("expected pending token cleared")
	}
}

func TestTenantSwitchIsolatesSessions(t *testing.T) {
	env := newTestEnv(t, nil)
	env.srv.AddUser("acme", apitest.User{Email: "a@b.com", Password: "pw"})
	if _, err := env.m.Login(context.Background(), "a@b.com", "pw"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	acmeToken := env.m.Token()

	if err := env.m.SetTenant(context.Background(), "beta"); err != nil {
		t.Fatalf("SetTenant failed: %v", err)
	}
	if env.m.Tenant() != "beta" || env.m.Token() != "" || env.m.User() != nil {
		t.Fatalf("expected empty beta session, got %+v", env.m.Session())
	}
	if v, ok := env.record(t, "acme"); !ok || v != acmeToken {
		t.Fatal("expected acme record untouched")
	}
	if _, ok := env.record(t, "beta"); ok {
		t.Fatal("expected no beta record")
	}

	if err := env.m.SetTenant(context.Background(), "acme"); err != nil {
		t.Fatalf("SetTenant back failed: %v", err)
	}
	if env.m.Token() != acmeToken {
		t.Fatalf("expected acme session restored, got %q", env.m.Token())
	}
}

func TestEmptyTenantRejected(t *testing.T) {
	env := newTestEnv(t, func(_ *Config, b *Builder) {
		b.WithTenant("")
	})

	if _, err := env.m.Login(context.Background(), "a@b.com", "pw"); !errors.Is(err, ErrTenantRequired) {
		t.Fatalf("expected ErrTenantRequired from Login, got %v", err)
	}
	if err := env.m.Restore(context.Background()); !errors.Is(err, ErrTenantRequired) {
		t.Fatalf("expected ErrTenantRequired from Restore, got %v", err)
	}
	if err := env.m.SetTenant(context.Background(), ""); !errors.Is(err, ErrTenantRequired) {
		t.Fatalf("expected ErrTenantRequired from SetTenant, got %v", err)
	}
	if len(env.srv.Requests()) != 0 {
		t.Fatal("expected no backend calls")
	}
}

func TestStartResolvesTenant(t *testing.T) {
	env := newTestEnv(t, func(_ *Config, b *Builder) {
		b.WithTenant("").WithTenantResolver(StaticTenant("beta"))
	})
	token := env.srv.AddUser("beta", apitest.User{Email: "b@c.com"})
	env.persist(t, "beta", token)

	if err := env.m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if env.m.Tenant() != "beta" || env.m.Token() != token {
		t.Fatalf("unexpected session after start: tenant=%q token=%q", env.m.Tenant(), env.m.Token())
	}
}

func TestStaleRestoreDiscardedAfterLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	env.srv.AddUser("acme", apitest.User{Email: "a@b.com", Password: "pw", FirstName: "New"})
	env.persist(t, "acme", "old-token")
	env.srv.Override(api.EndpointValidateToken, apitest.Reply{Body: map[string]any{
		"token": "old-token", "firstname": "Old",
	}})

	release := env.srv.Hold(api.EndpointValidateToken)
	done := make(chan error, 1)
	go func() { done <- env.m.Restore(context.Background()) }()
	waitFor(t, "validate call", func() bool {
		return env.srv.Count(api.EndpointValidateToken) == 1
	})

	resp, err := env.m.Login(context.Background(), "a@b.com", "pw")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	release()
	if err := <-done; err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if env.m.Token() != resp.Token {
		t.Fatalf("stale restore overwrote login: token %q", env.m.Token())
	}
	if u := env.m.User(); u == nil || u.GivenName != "New" {
		t.Fatalf("stale restore overwrote user: %+v", u)
	}
	if got := env.m.MetricsSnapshot().Counters[MetricStaleResponseDiscarded]; got != 1 {
		t.Fatalf("expected one discarded reply, got %d", got)
	}
}

func TestReplyAfterLogoutDiscarded(t *testing.T) {
	env := newTestEnv(t, nil)
	env.srv.AddUser("acme", apitest.User{Email: "a@b.com", Password: "pw"})

	release := env.srv.Hold(api.EndpointLogin)
	type result struct {
		resp *ServerResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := env.m.Login(context.Background(), "a@b.com", "pw")
		done <- result{resp, err}
	}()
	waitFor(t, "login call", func() bool {
		return env.srv.Count(api.EndpointLogin) == 1
	})

	if err := env.m.Logout(context.Background()); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	release()
	r := <-done
	if r.err != nil || r.resp == nil || r.resp.Token == "" {
		t.Fatalf("expected login reply handed back, got %+v", r)
	}
	if env.m.Token() != "" {
		t.Fatal("login reply resurrected a logged-out session")
	}
	if _, ok := env.record(t, "acme"); ok {
		t.Fatal("login reply persisted after logout")
	}
}

func TestForgotDoesNotTouchState(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := env.m.Forgot(context.Background(), "a@b.com")
	if err != nil {
		t.Fatalf("Forgot failed: %v", err)
	}
	if !strings.Contains(string(resp.Raw), "reset link") {
		t.Fatalf("unexpected reply %s", resp.Raw)
	}
	if env.m.Session() != (Session{}) {
		t.Fatal("expected untouched session")
	}
	req := env.srv.Requests()[0]
	if req.Body["email"] != "a@b.com" || req.Tenant != "acme" {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestChangePasswordReturnsRawResponse(t *testing.T) {
	env := newTestEnv(t, nil)
	env.srv.AddUser("acme", apitest.User{ID: "42", Email: "a@b.com", Password: "old"})

	resp, err := env.m.ChangePassword(context.Background(), "42", "bad", "new", "new")
	if err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}

	resp, err = env.m.ChangePassword(context.Background(), "42", "old", "new", "new")
	if err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if _, err := env.m.Login(context.Background(), "a@b.com", "new"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
}

func TestNilManagerNotReady(t *testing.T) {
	var m *Manager
	if err := m.Logout(context.Background()); !errors.Is(err, ErrManagerNotReady) {
		t.Fatalf("expected ErrManagerNotReady, got %v", err)
	}
}
