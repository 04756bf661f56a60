package rpcjson

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/intellitest/internal/adapters/db/sqlite"
	"github.com/atvirokodosprendimai/intellitest/internal/application"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcConn struct {
	conn net.Conn
	r    *bufio.Reader
	next int
}

func startServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "rpc_test.db"))
	require.NoError(t, err)
	require.NoError(t, sqlite.RunMigrations(ctx, db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	creds, err := application.NewCredentials("rpc-test-secret", "HS256", time.Hour)
	require.NoError(t, err)
	svc := application.New(application.Deps{Repo: sqlite.NewRepository(db), Credentials: creds})
	_, err = svc.Auth.Register(ctx, application.RegisterInput{Email: "ops@example.com", Password: "password123"})
	require.NoError(t, err)

	// unix socket paths are length limited, so avoid the long test temp dir
	dir, err := os.MkdirTemp("", "itrpc")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	srv, err := Start(filepath.Join(dir, "rpc.sock"), svc, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func dial(t *testing.T, srv *Server) *rpcConn {
	t.Helper()
	conn, err := net.Dial("unix", srv.Path())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &rpcConn{conn: conn, r: bufio.NewReader(conn)}
}

func (c *rpcConn) call(t *testing.T, method string, params any) response {
	t.Helper()
	c.next++
	raw, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "method": method, "params": params, "id": c.next})
	require.NoError(t, err)
	_, err = c.conn.Write(append(raw, '\n'))
	require.NoError(t, err)

	line, err := c.r.ReadBytes('\n')
	require.NoError(t, err)
	var resp response
	require.NoError(t, json.Unmarshal(line, &resp))
	return resp
}

func TestLoginAndProjects(t *testing.T) {
	c := dial(t, startServer(t))

	resp := c.call(t, "auth.login", map[string]any{"email": "ops@example.com", "password": "wrong-password"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, 40100, resp.Error.Code)

	resp = c.call(t, "auth.login", map[string]any{"email": "ops@example.com", "password": "password123"})
	require.Nil(t, resp.Error)
	token := resp.Result.(map[string]any)["access_token"].(string)
	require.NotEmpty(t, token)

	resp = c.call(t, "auth.whoami", map[string]any{"token": token})
	require.Nil(t, resp.Error)
	assert.Equal(t, "ops@example.com", resp.Result.(map[string]any)["email"])

	resp = c.call(t, "projects.create", map[string]any{"token": token, "name": "Release 7"})
	require.Nil(t, resp.Error)
	id := resp.Result.(map[string]any)["id"].(string)

	resp = c.call(t, "projects.get", map[string]any{"token": token, "id": id})
	require.Nil(t, resp.Error)
	assert.Equal(t, "Release 7", resp.Result.(map[string]any)["name"])

	resp = c.call(t, "projects.list", map[string]any{"token": token})
	require.Nil(t, resp.Error)
	assert.Len(t, resp.Result, 1)

	resp = c.call(t, "projects.get", map[string]any{"token": token, "id": "missing"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, 40400, resp.Error.Code)

	resp = c.call(t, "dashboard.stats", map[string]any{"token": token})
	require.Nil(t, resp.Error)
	assert.EqualValues(t, 1, resp.Result.(map[string]any)["total_projects"])
}

func TestProtocolErrors(t *testing.T) {
	c := dial(t, startServer(t))

	resp := c.call(t, "projects.list", map[string]any{"token": "bogus"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, 40100, resp.Error.Code)

	resp = c.call(t, "graph.trace", map[string]any{"token": "bogus"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeNoMethod, resp.Error.Code)

	resp = c.call(t, "projects.list", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeInvalidParams, resp.Error.Code)
}
