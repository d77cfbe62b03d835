package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"consulaire/internal/config"
	"consulaire/internal/db"
	"consulaire/internal/lifecycle"
	"consulaire/internal/migrate"
	"consulaire/internal/server"
)

const testSecret = "test-secret"

type testServer struct {
	Server *httptest.Server
	Token  string
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	cfg := config.Default("org-dakar")
	eng := lifecycle.New(conn, cfg)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	step := 0
	eng.Now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}
	handler, err := server.New(server.Config{
		Engine: eng,
		Auth:   server.AuthConfig{JWTSecret: testSecret},
	})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	token, err := server.IssueToken(testSecret, "admin-1", []string{"admin"})
	require.NoError(t, err)
	return testServer{Server: srv, Token: token}
}

func (ts testServer) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.Server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+ts.Token)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	var parsed map[string]any
	_ = json.NewDecoder(res.Body).Decode(&parsed)
	return res, parsed
}

func TestHealthUnauthenticated(t *testing.T) {
	ts := newTestServer(t)
	res, err := http.Get(ts.Server.URL + "/v0/health")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestUnauthorizedWithoutCredentials(t *testing.T) {
	ts := newTestServer(t)
	res, err := http.Get(ts.Server.URL + "/v0/requests")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func createRequest(t *testing.T, ts testServer) map[string]any {
	res, body := ts.do(t, http.MethodPost, "/v0/requests", map[string]any{
		"service_id": "passport.renewal",
		"profile_id": "profile-1",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, "body: %v", body)
	return body
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	created := createRequest(t, ts)
	id := created["id"].(string)
	require.Equal(t, "draft", created["status"])
	require.Regexp(t, `^REQ-[0-9A-F]{8}$`, created["number"])

	res, body := ts.do(t, http.MethodPost, "/v0/requests/"+id+"/submit", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "submitted", body["status"])
	require.NotEmpty(t, body["submitted_at"])

	res, body = ts.do(t, http.MethodPost, "/v0/requests/"+id+"/assign", map[string]any{"agent_id": "agent-1"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "under_review", body["status"])
	require.Equal(t, "agent-1", body["assigned_agent_id"])

	res, body = ts.do(t, http.MethodPatch, "/v0/requests/"+id+"/status", map[string]any{"status": "validated"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "validated", body["status"])
	require.Equal(t, "ready_for_pickup", body["display_status"])

	res, body = ts.do(t, http.MethodPost, "/v0/requests/"+id+"/complete", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "completed", body["status"])
	require.NotEmpty(t, body["completed_at"])

	res, body = ts.do(t, http.MethodGet, "/v0/requests/"+id+"/activities", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestInvalidTransitionConflict(t *testing.T) {
	ts := newTestServer(t)
	created := createRequest(t, ts)
	id := created["id"].(string)

	res, body := ts.do(t, http.MethodPost, "/v0/requests/"+id+"/complete", nil)
	require.Equal(t, http.StatusConflict, res.StatusCode)
	errBody := body["error"].(map[string]any)
	require.Equal(t, "invalid_transition", errBody["code"])
}

func TestRejectWithReason(t *testing.T) {
	ts := newTestServer(t)
	created := createRequest(t, ts)
	id := created["id"].(string)

	res, _ := ts.do(t, http.MethodPost, "/v0/requests/"+id+"/submit", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, body := ts.do(t, http.MethodPost, "/v0/requests/"+id+"/reject", map[string]any{"reason": "Document illisible"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "rejected", body["status"])

	res, _ = ts.do(t, http.MethodGet, "/v0/requests/"+id+"/notes", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestJurisdictionResolution(t *testing.T) {
	ts := newTestServer(t)

	// near Lyon: the Marseille consulate general beats the Paris embassy
	res, body := ts.do(t, http.MethodGet, "/v0/missions/jurisdiction?lon=4.8357&lat=45.764", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	effective := body["effective"].(map[string]any)
	require.Equal(t, "cg-marseille", effective["id"])
	require.Equal(t, "consulate_general", effective["kind"])
	require.NotNil(t, body["nearest_embassy"])

	// missing position is a distinguishable client error
	res, body = ts.do(t, http.MethodGet, "/v0/missions/jurisdiction", nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	errBody := body["error"].(map[string]any)
	require.Equal(t, "position_required", errBody["code"])

	res, body = ts.do(t, http.MethodGet, "/v0/missions/jurisdiction?lon=abc&lat=12", nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	errBody = body["error"].(map[string]any)
	require.Equal(t, "position_required", errBody["code"])
}

func TestDocumentsOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	created := createRequest(t, ts)
	id := created["id"].(string)

	res, body := ts.do(t, http.MethodPut, "/v0/requests/"+id+"/documents/doc-1", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, body["document_ids"], 1)

	// duplicate add keeps a single entry
	res, body = ts.do(t, http.MethodPut, "/v0/requests/"+id+"/documents/doc-1", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, body["document_ids"], 1)

	res, body = ts.do(t, http.MethodDelete, "/v0/requests/"+id+"/documents/doc-1", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, body["document_ids"], 0)
}

func TestCountsAndFilters(t *testing.T) {
	ts := newTestServer(t)
	var ids []string
	for i := 0; i < 3; i++ {
		created := createRequest(t, ts)
		ids = append(ids, created["id"].(string))
	}
	res, _ := ts.do(t, http.MethodPost, "/v0/requests/"+ids[0]+"/submit", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, body := ts.do(t, http.MethodGet, "/v0/requests?status=draft", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, body["items"], 2)

	res, body = ts.do(t, http.MethodGet, "/v0/requests/counts", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, float64(2), body["draft"])
	require.Equal(t, float64(1), body["submitted"])
}

func TestAPIKeyRoundtrip(t *testing.T) {
	ts := newTestServer(t)
	res, body := ts.do(t, http.MethodPost, "/v0/apikeys", map[string]any{"actor_id": "agent-1", "name": "desk"})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	rawKey := body["key"].(string)
	keyID := body["id"].(string)
	require.NotEmpty(t, rawKey)

	// the raw key authenticates as its actor
	req, err := http.NewRequest(http.MethodGet, ts.Server.URL+"/v0/requests", nil)
	require.NoError(t, err)
	req.Header.Set("X-Api-Key", rawKey)
	keyRes, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer keyRes.Body.Close()
	require.Equal(t, http.StatusOK, keyRes.StatusCode)

	res, _ = ts.do(t, http.MethodDelete, fmt.Sprintf("/v0/apikeys/%s", keyID), nil)
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	// revoked keys stop authenticating
	req, err = http.NewRequest(http.MethodGet, ts.Server.URL+"/v0/requests", nil)
	require.NoError(t, err)
	req.Header.Set("X-Api-Key", rawKey)
	keyRes, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer keyRes.Body.Close()
	require.Equal(t, http.StatusUnauthorized, keyRes.StatusCode)
}

func TestCitizenRoleForbidden(t *testing.T) {
	ts := newTestServer(t)
	citizenToken, err := server.IssueToken(testSecret, "citizen-1", []string{"citizen"})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodGet, ts.Server.URL+"/v0/requests", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+citizenToken)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	// citizens cannot list all requests
	require.Equal(t, http.StatusForbidden, res.StatusCode)
}
