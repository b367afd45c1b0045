package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wpguard/internal/domain/auth"
	"wpguard/internal/domain/changelog"
	"wpguard/internal/domain/schedule"
	"wpguard/internal/domain/watchlist"
	"wpguard/internal/platform/jsonx"
	"wpguard/internal/platform/storage"
	platformtesting "wpguard/internal/platform/testing"
)

const adminToken = "test-admin-token"

// fakeWatcher toggles a real in-memory watch list.
type fakeWatcher struct {
	store watchlist.Store
}

func (f *fakeWatcher) ToggleWatch(ctx context.Context, id string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, changelog.ErrEmptyIdentifier
	}
	return f.store.Toggle(ctx, id)
}

func (f *fakeWatcher) Watching(ctx context.Context) ([]string, error) {
	return f.store.List(ctx)
}

func (f *fakeWatcher) CheckOne(_ context.Context, slug string) changelog.Result {
	return changelog.Result{Slug: changelog.NormalizeSlug(slug), Status: changelog.StatusMatch}
}

type fakeRunner struct {
	err error
}

func (r fakeRunner) RunNow(context.Context) (*changelog.Report, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &changelog.Report{RunID: "run-42", Matched: 2}, nil
}

type env struct {
	engine  *gin.Engine
	nonces  *auth.NonceIssuer
	store   watchlist.Store
	history *storage.HistoryRepository
}

func newEnv(t *testing.T, runner Runner) *env {
	t.Helper()
	nonces, err := auth.NewNonceIssuer("test-nonce-secret", time.Hour, 64)
	require.NoError(t, err)
	return newEnvWithNonces(t, runner, nonces)
}

func newEnvWithNonces(t *testing.T, runner Runner, nonces *auth.NonceIssuer) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	e := &env{
		nonces:  nonces,
		store:   watchlist.NewMemory("hello-dolly/hello.php"),
		history: storage.NewHistoryRepository(platformtesting.SetupTestDB(t)),
	}
	if runner == nil {
		runner = fakeRunner{}
	}

	svc, err := NewService(Dependencies{
		Watcher:    &fakeWatcher{store: e.store},
		Runner:     runner,
		History:    e.history,
		Nonces:     nonces,
		AdminToken: adminToken,
		Logger:     platformtesting.NewLogger(t),
	})
	require.NoError(t, err)

	e.engine = gin.New()
	require.NoError(t, svc.Register(context.Background(), e.engine.Group("/api")))
	return e
}

func (e *env) do(t *testing.T, method, target string, form url.Values, authorised bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if authorised {
		req.Header.Set("Authorization", "Bearer "+adminToken)
	}
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func (e *env) nonce(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodGet, "/api/admin/nonce", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data NonceResponse `json:"data"`
	}
	require.NoError(t, jsonx.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, WatchAction, resp.Data.Action)
	require.NotEmpty(t, resp.Data.Nonce)
	return resp.Data.Nonce
}

func TestAdmin_RequiresBearer(t *testing.T) {
	e := newEnv(t, nil)
	for _, path := range []string{"/api/admin/nonce", "/api/admin/plugins", "/api/admin/history"} {
		rec := e.do(t, http.MethodGet, path, nil, false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestAdmin_RequiresToken(t *testing.T) {
	nonces, err := auth.NewNonceIssuer("test-nonce-secret", time.Hour, 0)
	require.NoError(t, err)

	_, err = NewService(Dependencies{
		Watcher: &fakeWatcher{store: watchlist.NewMemory()},
		Runner:  fakeRunner{},
		History: storage.NewHistoryRepository(platformtesting.SetupTestDB(t)),
		Nonces:  nonces,
		Logger:  platformtesting.NewLogger(t),
	})
	assert.Error(t, err)
}

func TestAdmin_RejectsCrossOrigin(t *testing.T) {
	e := newEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/admin/plugins", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	req.Header.Set("Origin", "https://evil.example.org")
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "http://example.com/api/admin/plugins", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	req.Header.Set("Origin", "https://example.com")
	rec = httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdmin_NonceCapacity(t *testing.T) {
	nonces, err := auth.NewNonceIssuer("test-nonce-secret", time.Hour, 1)
	require.NoError(t, err)
	e := newEnvWithNonces(t, nil, nonces)

	rec := e.do(t, http.MethodPost, "/api/admin/watch", url.Values{
		"plugin": {"akismet"},
		"_nonce": {e.nonce(t)},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/admin/nonce", nil, true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdmin_WatchToggle(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/api/admin/watch", url.Values{
		"plugin": {"akismet/akismet.php"},
		"_nonce": {e.nonce(t)},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `"Unwatch"`, strings.TrimSpace(rec.Body.String()))

	rec = e.do(t, http.MethodPost, "/api/admin/watch", url.Values{
		"plugin": {"akismet/akismet.php"},
		"_nonce": {e.nonce(t)},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `"<span style=\"color:green\">Watch</span>"`, strings.TrimSpace(rec.Body.String()))

	watching, err := e.store.Contains(context.Background(), "akismet/akismet.php")
	require.NoError(t, err)
	assert.False(t, watching)
}

func TestAdmin_WatchRejectsReusedNonce(t *testing.T) {
	e := newEnv(t, nil)
	nonce := e.nonce(t)

	rec := e.do(t, http.MethodPost, "/api/admin/watch", url.Values{"plugin": {"akismet"}, "_nonce": {nonce}}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/admin/watch", url.Values{"plugin": {"akismet"}, "_nonce": {nonce}}, true)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// the list still holds the plugin from the first call
	watching, err := e.store.Contains(context.Background(), "akismet")
	require.NoError(t, err)
	assert.True(t, watching)
}

func TestAdmin_WatchRejectsBadNonce(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/api/admin/watch", url.Values{"plugin": {"akismet"}, "_nonce": {"garbage"}}, true)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	other, _, err := e.nonces.Issue("something-else")
	require.NoError(t, err)
	rec = e.do(t, http.MethodPost, "/api/admin/watch", url.Values{"plugin": {"akismet"}, "_nonce": {other}}, true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdmin_WatchRequiresPlugin(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/api/admin/watch", url.Values{"_nonce": {e.nonce(t)}}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_Plugins(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodGet, "/api/admin/plugins", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []PluginRow `json:"data"`
	}
	require.NoError(t, jsonx.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "hello-dolly/hello.php", resp.Data[0].Plugin)
	assert.Equal(t, "hello-dolly", resp.Data[0].Slug)
	assert.Equal(t, watchlist.LabelUnwatch, resp.Data[0].Label)
	assert.Contains(t, resp.Data[0].ActionLink, `data-plugin-file="hello-dolly/hello.php"`)
}

func TestAdmin_Check(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/api/admin/check", url.Values{}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data changelog.Report `json:"data"`
	}
	require.NoError(t, jsonx.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "run-42", resp.Data.RunID)

	rec = e.do(t, http.MethodPost, "/api/admin/check", url.Values{"slug": {"akismet/akismet.php"}}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var one struct {
		Data changelog.Result `json:"data"`
	}
	require.NoError(t, jsonx.Unmarshal(rec.Body.Bytes(), &one))
	assert.Equal(t, "akismet", one.Data.Slug)
}

func TestAdmin_CheckBusy(t *testing.T) {
	e := newEnv(t, fakeRunner{err: schedule.ErrBusy})

	rec := e.do(t, http.MethodPost, "/api/admin/check", url.Values{}, true)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdmin_History(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	for i, slug := range []string{"akismet", "jetpack", "akismet"} {
		require.NoError(t, e.history.Append(ctx, &storage.CheckRecord{
			Slug:      slug,
			Status:    string(changelog.StatusMatch),
			CheckedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	rec := e.do(t, http.MethodGet, "/api/admin/history?slug=akismet/akismet.php", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data []storage.CheckRecord `json:"data"`
	}
	require.NoError(t, jsonx.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.True(t, resp.Data[0].CheckedAt.After(resp.Data[1].CheckedAt))

	rec = e.do(t, http.MethodGet, "/api/admin/history?limit=1", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, jsonx.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 1)

	rec = e.do(t, http.MethodGet, "/api/admin/history?limit=zero", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
