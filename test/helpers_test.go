//go:build integration
// +build integration

package test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	cgAuth "github.com/cairnsgames/cgAuth"
	"github.com/cairnsgames/cgAuth/internal/apitest"
	"github.com/cairnsgames/cgAuth/store"
	"github.com/redis/go-redis/v9"
)

type harness struct {
	backend *apitest.Server
	mr      *miniredis.Miniredis
	rdb     *redis.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	h := &harness{
		backend: apitest.New(),
		mr:      mr,
		rdb:     redis.NewClient(&redis.Options{Addr: mr.Addr()}),
	}
	t.Cleanup(func() {
		_ = h.rdb.Close()
		mr.Close()
		h.backend.Close()
	})
	return h
}

// manager builds a Manager sharing the harness backend and Redis, the way
// two processes of one application would.
func (h *harness) manager(t *testing.T, tenant string) *cgAuth.Manager {
	t.Helper()

	cfg := cgAuth.DefaultConfig()
	cfg.API.BaseURL = h.backend.URL
	m, err := cgAuth.New().
		WithConfig(cfg).
		WithStore(store.NewRedis(h.rdb, "it", 0)).
		WithTenant(tenant).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(m.Close)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return m
}
