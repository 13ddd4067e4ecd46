package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/antarex-ai/dashboard/database"
	"github.com/antarex-ai/dashboard/web/backend"
	"github.com/antarex-ai/dashboard/web/backend/backendtest"
	"github.com/antarex-ai/dashboard/web/session"

	"github.com/stretchr/testify/require"
)

type fixture struct {
	api     *backendtest.Server
	store   *session.Store
	adapter *backend.Adapter
	ctx     context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	api := backendtest.NewServer()
	t.Cleanup(api.Close)
	client, err := backend.NewClient(backend.Options{BaseURL: api.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	store := session.NewStore(session.NewMemoryPersister(session.Record{}), session.NewGenerations())
	ctx := WithOrigin(context.Background(), Origin{IP: "203.0.113.7", UserAgent: "service-test"})
	return &fixture{api: api, store: store, adapter: client.Bind(store), ctx: ctx}
}

func (f *fixture) login(t *testing.T, username, password string) {
	t.Helper()
	_, err := f.adapter.Login(f.ctx, username, password)
	require.NoError(t, err)
}

// withDB opens a fresh audit database for the test.
func withDB(t *testing.T) {
	t.Helper()
	require.NoError(t, database.InitDB(filepath.Join(t.TempDir(), "audit.db")))
	t.Cleanup(func() { _ = database.CloseDB() })
}
