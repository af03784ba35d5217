package registry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Service, *fakeClock) {
	t.Helper()
	svc, clock := newTestService(t)
	handler := NewHandler(svc, zap.NewNop())

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("addr", c.GetHeader("X-Caller-Address"))
		c.Next()
	})
	handler.RegisterRoutes(router.Group("/api/v1"))
	return router, svc, clock
}

func doJSON(router *gin.Engine, method, path, caller, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Caller-Address", caller)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerClaimFlow(t *testing.T) {
	router, _, clock := newTestRouter(t)

	rec := doJSON(router, http.MethodPost, "/api/v1/instantiate", "owner", `{"voting_period":86400}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(router, http.MethodPost, "/api/v1/claims", "org1",
		`{"longitudes":["77.1"],"latitudes":["28.7"],"time_started":1,"time_ended":2,"demanded_tokens":100,"ipfs_hashes":["QmA"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created CreateClaimResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, uint64(0), created.ClaimID)

	rec = doJSON(router, http.MethodPost, "/api/v1/claims/0/votes", "voter1", `{"vote":"yes"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Duplicate votes surface as conflicts.
	rec = doJSON(router, http.MethodPost, "/api/v1/claims/0/votes", "voter1", `{"vote":"no"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Finalizing early is also a conflict.
	rec = doJSON(router, http.MethodPost, "/api/v1/claims/0/finalize", "anyone", ``)
	assert.Equal(t, http.StatusConflict, rec.Code)

	clock.advance(86401 * time.Second)
	rec = doJSON(router, http.MethodPost, "/api/v1/claims/0/finalize", "anyone", ``)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"approved"`)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/organizations/org1", nil)
	req.Header.Set("X-Caller-Address", "anyone")
	get := httptest.NewRecorder()
	router.ServeHTTP(get, req)
	require.Equal(t, http.StatusOK, get.Code)
	assert.Contains(t, get.Body.String(), `"carbon_credits":100`)
}

func TestHandlerErrorMapping(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(router, http.MethodPost, "/api/v1/instantiate", "owner", `{"voting_period":86400}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Unknown claim.
	rec = doJSON(router, http.MethodPost, "/api/v1/claims/99/votes", "voter1", `{"vote":"yes"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Malformed vote option.
	rec = doJSON(router, http.MethodPost, "/api/v1/lend-requests", "borrower", `{"lender":"lender","amount":10}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(router, http.MethodPost, "/api/v1/lend-requests/0/respond", "lender", `{"response":"maybe"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Wrong counterparty.
	rec = doJSON(router, http.MethodPost, "/api/v1/lend-requests/0/respond", "impostor", `{"response":"accepted"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Accepting without funds.
	rec = doJSON(router, http.MethodPost, "/api/v1/lend-requests/0/respond", "lender", `{"response":"accepted"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Bad emissions payload.
	rec = doJSON(router, http.MethodPost, "/api/v1/organizations/emissions", "org1", `{"emissions":"not-a-number"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Re-instantiation.
	rec = doJSON(router, http.MethodPost, "/api/v1/instantiate", "owner", `{"voting_period":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerListEndpoints(t *testing.T) {
	router, svc, _ := newTestRouter(t)

	rec := doJSON(router, http.MethodPost, "/api/v1/instantiate", "owner", `{"voting_period":86400}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	for i := 0; i < 3; i++ {
		rec = doJSON(router, http.MethodPost, "/api/v1/claims", "org1", `{"demanded_tokens":5}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	seedOrganization(t, svc, "orgA", Organization{Name: "A"})
	seedOrganization(t, svc, "orgB", Organization{Name: "B"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/claims?start_after=0&limit=1", nil)
	req.Header.Set("X-Caller-Address", "anyone")
	list := httptest.NewRecorder()
	router.ServeHTTP(list, req)
	require.Equal(t, http.StatusOK, list.Code)
	var claimsResp struct {
		Claims []ClaimView `json:"claims"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &claimsResp))
	require.Len(t, claimsResp.Claims, 1)
	assert.Equal(t, uint64(1), claimsResp.Claims[0].ID)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/organizations?start_after=orgA", nil)
	req.Header.Set("X-Caller-Address", "anyone")
	list = httptest.NewRecorder()
	router.ServeHTTP(list, req)
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), "orgB")
	assert.NotContains(t, list.Body.String(), `"address":"orgA"`)

	// Invalid status filter.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/claims?status=bogus", nil)
	req.Header.Set("X-Caller-Address", "anyone")
	list = httptest.NewRecorder()
	router.ServeHTTP(list, req)
	assert.Equal(t, http.StatusBadRequest, list.Code)
}
