package v1

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/clovid/prisma-sub000/internal/aggregator"
	"github.com/clovid/prisma-sub000/internal/app/appconfig"
	"github.com/clovid/prisma-sub000/internal/model"
	"github.com/clovid/prisma-sub000/internal/pkg/cache"
	"github.com/clovid/prisma-sub000/internal/pkg/middlewares"
	"github.com/clovid/prisma-sub000/internal/pkg/remote"
	"github.com/clovid/prisma-sub000/internal/repo"
	"github.com/clovid/prisma-sub000/internal/resource"
	"github.com/clovid/prisma-sub000/internal/server/httpserver"
	"github.com/clovid/prisma-sub000/internal/server/svr"
	"github.com/clovid/prisma-sub000/internal/service"
)

type fixture struct {
	app   *fiber.App
	store *cache.MemoryStore

	mu   sync.Mutex
	hits map[string]int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: cache.NewMemoryStore(), hits: map[string]int{}}

	mux := http.NewServeMux()
	handle := func(path, body string) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			f.hits[r.URL.Path]++
			f.mu.Unlock()
			_, _ = w.Write([]byte(body))
		})
	}
	handle("/tests", `{"data": [{"id": 4, "title": "Knieschmerzen", "number_of_datasets": 2}]}`)
	handle("/tests/count", `{"count": 7}`)
	handle("/tests/4/count", `2`)
	handle("/tests/4", `{"id": 4, "groups": [{"name": "Anamnese", "questions": [
		{"id": 1, "type": "mc", "title": "Schmerzort", "possibilities": [{"id": 0, "text": "Knie"}, {"id": 1, "text": "Hüfte"}]}
	]}]}`)
	handle("/tests/4/answers", `{"1": [{"user_id": 1, "answer": "1"}, {"user_id": 2, "answer": "0,1"}]}`)
	mux.HandleFunc("/slices/7", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "12", r.URL.Query().Get("index"))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "modules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
modules:
  - name: campus
    base_url: `+srv.URL+`
    backend: campus
`), 0o600))
	registry, err := appconfig.LoadModules(path)
	require.NoError(t, err)
	conf := &appconfig.Config{
		ConfigSpec: appconfig.ConfigSpec{
			MinimumUsersFilter:    5,
			MinimumTaskDatasets:   5,
			ConcurrentTaskFetches: 2,
			UpstreamTimeout:       5 * time.Second,
			UpstreamRetryAttempts: 1,
		},
		Modules: registry,
	}

	clients := remote.NewRegistry(conf, f.store)
	static := resource.NewStaticCache(f.store)
	images := resource.NewImageVolumes(static)
	modules, err := aggregator.NewModules(conf, clients, static, images)
	require.NoError(t, err)

	f.app = fiber.New(fiber.Config{ErrorHandler: httpserver.ErrorHandler})
	f.app.Use(middlewares.InjectIdentity())
	v1 := svr.CreateEndpointGroups(f.app)
	moduleService := service.NewModule(
		modules,
		service.NewCollection(),
		service.NewPrivacy(conf, repo.NewPrivacyAudit(nil)),
	)
	RegisterModule(v1, Module{ModuleService: moduleService})
	RegisterSlice(v1, Slice{Images: images, Clients: clients})
	RegisterMeta(v1, Meta{HealthService: service.NewHealth(nil, nil), ModuleService: moduleService})
	return f
}

func (f *fixture) get(t *testing.T, target string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set(middlewares.HeaderUserID, "42")
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestListModules(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get(t, "/api/v1/modules")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[{"name": "campus", "title": "campus", "backend": "campus"}]`, body)
}

func TestTasksAndCounts(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get(t, "/api/v1/modules/campus/tasks")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Knieschmerzen", gjson.Get(body, "0.title").String())

	resp, body = f.get(t, "/api/v1/modules/campus/count")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"count": 7}`, body)

	resp, body = f.get(t, "/api/v1/modules/campus/tasks/4/count?cohort=1,2,3,4,5,6")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"count": 2}`, body)
	assert.Equal(t, "no-cache, no-store, must-revalidate", resp.Header.Get(fiber.HeaderCacheControl))
}

func TestTabs(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get(t, "/api/v1/modules/campus/tasks/4/tabs")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Anamnese", gjson.Get(body, "0.name").String())
}

func TestSummaryIsServedBelowThresholds(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get(t, "/api/v1/modules/campus/tasks/4/summary?cohort=1,2&timespan=1000,5000&timespan=9000,12000")
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body, "Schmerzort")
	assert.Contains(t, body, "Hüfte")
	assert.Equal(t, 1, f.hits["/tests/4/answers"])
	assert.Equal(t, 1, f.hits["/tests/4/count"])
}

func TestRequestErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		target string
		status int
	}{
		{name: "unknown module", target: "/api/v1/modules/nope/tasks", status: fiber.StatusNotFound},
		{name: "malformed cohort", target: "/api/v1/modules/campus/tasks/4/summary?cohort=1,x", status: fiber.StatusBadRequest},
		{name: "blank task list", target: "/api/v1/modules/campus/tasks/,,/summary", status: fiber.StatusBadRequest},
		{name: "unknown slice", target: "/api/v1/slices/deadbeef", status: fiber.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.get(t, tt.target)
			assert.Equal(t, tt.status, resp.StatusCode, body)
		})
	}
}

func TestSliceIsStreamedFromItsModule(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Set(context.Background(), resource.SliceKey("cafe"), model.SliceDescriptor{
		Module:    "campus",
		URL:       "slices/7",
		Parameter: map[string]string{"index": "12"},
	}, time.Minute))

	resp, body := f.get(t, "/api/v1/slices/cafe")
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "png", body)
	assert.Equal(t, "image/png", resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderCacheControl), "immutable")
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get(t, "/api/v1/health")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status": "ok", "services": {"database": "disabled", "cache": "disabled"}}`, body)

	resp, body = f.get(t, "/api/v1/bininfo")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), gjson.Get(body, "modules").Int())
}
