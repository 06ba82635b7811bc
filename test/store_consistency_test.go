//go:build integration
// +build integration

package test

import (
	"context"
	"sync"
	"testing"

	"github.com/cairnsgames/cgAuth/internal/apitest"
)

func TestSessionSharedThroughRedis(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.backend.AddUser("acme", apitest.User{Email: "a@b.com", Password: "pw", FirstName: "A", LastName: "B"})

	first := h.manager(t, "acme")
	if _, err := first.Login(ctx, "a@b.com", "pw"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if got, _ := h.mr.Get("it:cg.acme.auth"); got != first.Token() {
		t.Fatalf("expected persisted token %q, got %q", first.Token(), got)
	}

	second := h.manager(t, "acme")
	if second.Token() != first.Token() {
		t.Fatalf("expected restored token, got %q", second.Token())
	}
	if u := second.User(); u == nil || u.DisplayName != "A B" {
		t.Fatalf("unexpected restored user %+v", u)
	}

	if err := first.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if h.mr.Exists("it:cg.acme.auth") {
		t.Fatal("expected record removed on logout")
	}

	third := h.manager(t, "acme")
	if third.Session().Authenticated() {
		t.Fatal("expected signed-out session after logout")
	}
}

func TestTenantsDoNotShareRecords(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.backend.AddUser("acme", apitest.User{Email: "a@b.com", Password: "pw"})

	acme := h.manager(t, "acme")
	if _, err := acme.Login(ctx, "a@b.com", "pw"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	other := h.manager(t, "globex")
	if other.Session().Authenticated() {
		t.Fatal("tenant globex must not see acme's session")
	}
	if h.mr.Exists("it:cg.globex.auth") {
		t.Fatal("unexpected record for globex")
	}
}

func TestConcurrentLoginsSettleOnOneSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.backend.AddUser("acme", apitest.User{Email: "a@b.com", Password: "pw"})
	m := h.manager(t, "acme")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Login(ctx, "a@b.com", "pw"); err != nil {
				t.Errorf("Login failed: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := h.mr.Get("it:cg.acme.auth")
	if err != nil {
		t.Fatalf("record missing: %v", err)
	}
	if got != m.Token() {
		t.Fatalf("memory %q and store %q diverged", m.Token(), got)
	}
}
