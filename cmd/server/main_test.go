package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dirstore "taxcase/internal/directory/store"
	"taxcase/internal/identity"
	jwttoken "taxcase/internal/jwt_token"
	platformmetrics "taxcase/internal/platform/metrics"
	platformredis "taxcase/internal/platform/redis"
	revisionhandler "taxcase/internal/revision/handler"
	"taxcase/internal/revision/policy"
	revisionservice "taxcase/internal/revision/service"
	revisionstore "taxcase/internal/revision/store"
	id "taxcase/pkg/domain"
	"taxcase/pkg/testutil"
)

func newTestRouter(t *testing.T) (http.Handler, *jwttoken.JWTService, *dirstore.Seed) {
	t.Helper()
	directory := dirstore.NewInMemory()
	seed, err := dirstore.SeedDevelopment(context.Background(), directory, time.Now())
	require.NoError(t, err)

	tokens := jwttoken.NewJWTService("test-key", "taxcase", "taxcase-api")
	service := revisionservice.New(revisionstore.NewInMemory(), policy.New())
	reg := prometheus.NewRegistry()
	router := newRouter(
		discardLogger(),
		platformmetrics.NewWith(reg, reg),
		&infra{},
		tokens,
		identity.NewResolver(directory),
		revisionhandler.New(service, discardLogger()),
		"operator-token",
	)
	return router, tokens, seed
}

func TestHealth(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestHealthReportsDegradedCache(t *testing.T) {
	unreachable := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = unreachable.Close() })

	tokens := jwttoken.NewJWTService("test-key", "taxcase", "taxcase-api")
	reg := prometheus.NewRegistry()
	router := newRouter(
		discardLogger(),
		platformmetrics.NewWith(reg, reg),
		&infra{redis: &platformredis.Client{Client: unreachable}},
		tokens,
		identity.NewResolver(dirstore.NewInMemory()),
		revisionhandler.New(revisionservice.New(revisionstore.NewInMemory(), policy.New()), discardLogger()),
		"",
	)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
	assert.Contains(t, rec.Body.String(), `"redis":"unavailable"`)
}

func TestRevisionRoutesRequireToken(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/revisions", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestAndApproveEndToEnd(t *testing.T) {
	router, tokens, seed := newTestRouter(t)

	bearer := func(req *http.Request, userID id.UserID) *http.Request {
		token, err := tokens.GenerateAccessToken(userID, time.Hour)
		require.NoError(t, err)
		return testutil.WithBearer(req, token)
	}

	var created revisionhandler.RevisionResponse
	testutil.Given(t, "branch staff requested a revision", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/revisions", map[string]string{
			"target_kind": "tax_case",
			"target_id":   "TC-2024-001",
			"reason":      "late filing",
		})
		rr := testutil.DoRequest(router, bearer(req, seed.BranchStaff))
		testutil.AssertStatus(t, rr, http.StatusCreated)
		created = *testutil.UnmarshalResponse[revisionhandler.RevisionResponse](t, rr)
	})

	testutil.When(t, "branch staff tries to approve", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodPost, "/revisions/"+created.ID+"/approve")
		rr := testutil.DoRequest(router, bearer(req, seed.BranchStaff))
		testutil.Then(t, "the gate refuses", func(t *testing.T) {
			testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
		})
	})

	testutil.When(t, "holding staff approves", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodPost, "/revisions/"+created.ID+"/approve")
		rr := testutil.DoRequest(router, bearer(req, seed.HoldingStaff))
		testutil.Then(t, "the revision is approved", func(t *testing.T) {
			testutil.AssertStatusOK(t, rr)
			testutil.AssertJSONContains(t, rr, "state", "approved")
			testutil.AssertJSONContains(t, rr, "decider_id", seed.HoldingStaff.String())
		})
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAdminInvalidateRequiresToken(t *testing.T) {
	router, _, seed := newTestRouter(t)
	path := "/admin/principals/" + seed.HoldingStaff.String() + "/invalidate"

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set("X-Admin-Token", "operator-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
