package httpapi

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptfusion/internal/adapter/memstore"
	"promptfusion/internal/domain"
	"promptfusion/internal/http/handlers"
	"promptfusion/internal/jobs"
	"promptfusion/internal/ledger"
	"promptfusion/internal/middleware"
	"promptfusion/internal/queue"
)

type apiFixture struct {
	store   domain.Store
	credits *ledger.Ledger
	queue   *queue.Memory
	handler http.Handler
	user    *domain.User
}

func newAPI(t *testing.T, secret string) *apiFixture {
	t.Helper()
	mem := memstore.New()
	store := mem.Store()
	credits := ledger.New(store.Ledger, store.Users)
	user, err := credits.OpenAccount(context.Background(), "api@example.com", domain.TierStandard)
	require.NoError(t, err)
	q := queue.NewMemory(time.Minute, 10*time.Millisecond)
	svc := jobs.NewService(store, credits, q)
	app := handlers.NewApp(svc, credits, zerolog.Nop())
	h := NewRouter(app, Options{Logger: zerolog.Nop(), CORSOrigins: []string{"*"}, JWTSecret: secret})
	return &apiFixture{store: store, credits: credits, queue: q, handler: h, user: user}
}

func (f *apiFixture) do(t *testing.T, method, path, body, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set(middleware.UserIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthNeedsNoAuth(t *testing.T) {
	f := newAPI(t, "")
	rec := f.do(t, http.MethodGet, "/v1/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestJobsRequireUser(t *testing.T) {
	f := newAPI(t, "")
	rec := f.do(t, http.MethodGet, "/v1/jobs", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubmitGetAndCancel(t *testing.T) {
	f := newAPI(t, "")

	rec := f.do(t, http.MethodPost, "/v1/jobs", `{"idea":"a lighthouse at dawn","providers":["IDEOGRAM"]}`, f.user.ID)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	sub := decodeBody(t, rec)
	assert.Equal(t, float64(140), sub["estimatedCost"])
	assert.Equal(t, float64(360), sub["creditsBalance"])
	assert.Equal(t, true, sub["enqueued"])
	job := sub["job"].(map[string]any)
	jobID := job["id"].(string)
	assert.Equal(t, "QUEUED", job["status"])
	assert.Equal(t, 1, f.queue.Len())

	rec = f.do(t, http.MethodGet, "/v1/jobs/"+jobID, "", f.user.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeBody(t, rec)
	assert.Equal(t, jobID, view["job"].(map[string]any)["id"])
	assert.Empty(t, view["runs"])

	rec = f.do(t, http.MethodGet, "/v1/jobs/"+jobID, "", "someone-else")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/jobs?limit=5", "", f.user.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["items"], 1)

	rec = f.do(t, http.MethodPost, "/v1/jobs/"+jobID+"/cancel", "", f.user.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CANCELED", decodeBody(t, rec)["status"])

	rec = f.do(t, http.MethodPost, "/v1/jobs/"+jobID+"/cancel", "", f.user.ID)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/credits", "", f.user.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(500), decodeBody(t, rec)["creditsBalance"])
}

func TestSubmitErrorMapping(t *testing.T) {
	f := newAPI(t, "")
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "malformed", body: `{"idea":`, want: http.StatusBadRequest},
		{name: "empty", body: `{}`, want: http.StatusBadRequest},
		{name: "unknown provider", body: `{"idea":"x","providers":["MIDJOURNEY"]}`, want: http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/v1/jobs", tc.body, f.user.ID)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
			assert.Equal(t, "bad_request", decodeBody(t, rec)["error"])
		})
	}

	rec := f.do(t, http.MethodPost, "/v1/jobs", `{"idea":"x"}`, f.user.ID)
	require.Equal(t, http.StatusAccepted, rec.Code)
	rec = f.do(t, http.MethodPost, "/v1/jobs", `{"idea":"x"}`, f.user.ID)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/jobs/not-a-uuid", "", f.user.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEstimate(t *testing.T) {
	f := newAPI(t, "")
	rec := f.do(t, http.MethodGet, "/v1/jobs/estimate", "", f.user.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(462), decodeBody(t, rec)["estimatedCost"])

	rec = f.do(t, http.MethodGet, "/v1/jobs/estimate?provider=FLUX_PRO_2&bypass=true", "", f.user.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(70), decodeBody(t, rec)["estimatedCost"])
}

func TestCreditHistoryAndReload(t *testing.T) {
	f := newAPI(t, "")
	rec := f.do(t, http.MethodGet, "/v1/credits/history", "", f.user.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decodeBody(t, rec)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "GRANT", items[0].(map[string]any)["type"])

	rec = f.do(t, http.MethodPost, "/v1/credits/reload", "", f.user.ID)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBearerAuth(t *testing.T) {
	f := newAPI(t, "secret")
	token, err := middleware.SignToken("secret", f.user.ID, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/credits", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/credits", "", f.user.ID)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJobArchive(t *testing.T) {
	ctx := context.Background()
	f := newAPI(t, "")
	rec := f.do(t, http.MethodPost, "/v1/jobs", `{"directPrompt":"a red kite","providers":["GEMINI_NANOBANANA_PRO","IDEOGRAM"]}`, f.user.ID)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	jobID := decodeBody(t, rec)["job"].(map[string]any)["id"].(string)

	rec = f.do(t, http.MethodGet, "/v1/jobs/"+jobID+"/archive", "", f.user.ID)
	assert.Equal(t, http.StatusConflict, rec.Code)

	_, err := f.store.Jobs.Claim(ctx, jobID)
	require.NoError(t, err)
	inline := &domain.ModelRun{JobID: jobID, Provider: domain.ProviderGemini}
	require.NoError(t, f.store.Runs.Create(ctx, inline))
	require.NoError(t, f.store.Runs.Succeed(ctx, inline.ID, []domain.ImageOutput{
		{URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png-bytes")), Width: 1024, Height: 1024},
	}))
	remote := &domain.ModelRun{JobID: jobID, Provider: domain.ProviderIdeogram}
	require.NoError(t, f.store.Runs.Create(ctx, remote))
	require.NoError(t, f.store.Runs.Succeed(ctx, remote.ID, []domain.ImageOutput{
		{URL: "https://cdn.example.com/a.png", Width: 1024, Height: 1024},
	}))
	_, err = f.store.Jobs.Finish(ctx, jobID, domain.JobStatusSucceeded, "")
	require.NoError(t, err)

	rec = f.do(t, http.MethodGet, "/v1/jobs/"+jobID+"/archive", "", f.user.ID)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))

	body := rec.Body.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)
	files := map[string]string{}
	for _, zf := range zr.File {
		rc, err := zf.Open()
		require.NoError(t, err)
		data, _ := io.ReadAll(rc)
		rc.Close()
		files[zf.Name] = string(data)
	}
	assert.Equal(t, "png-bytes", files["gemini_nanobanana_pro-01.png"])
	assert.Contains(t, files["links.txt"], "ideogram-01\thttps://cdn.example.com/a.png")
	assert.Contains(t, files, "manifest.json")
}
