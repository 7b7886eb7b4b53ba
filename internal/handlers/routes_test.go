package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/forwardbot/internal/auth"
	"github.com/memohai/forwardbot/internal/healthcheck"
	"github.com/memohai/forwardbot/internal/mirror"
)

type fakeRoutingService struct {
	snapshot   mirror.Snapshot
	status     mirror.RefreshStatus
	refreshErr error
	refreshed  int
}

func (f *fakeRoutingService) Snapshot() mirror.Snapshot    { return f.snapshot }
func (f *fakeRoutingService) Status() mirror.RefreshStatus { return f.status }
func (f *fakeRoutingService) Refresh(ctx context.Context) (uint64, error) {
	f.refreshed++
	if f.refreshErr != nil {
		return 0, f.refreshErr
	}
	f.status.Version++
	return f.status.Version, nil
}

func serve(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestListRoutes(t *testing.T) {
	t.Parallel()

	svc := &fakeRoutingService{
		status: mirror.RefreshStatus{State: mirror.StateInstalled, Version: 2, Routes: 1},
		snapshot: mirror.Snapshot{Version: 2, Routes: []mirror.RouteView{{
			SourceChannelID: "1",
			Destinations:    []mirror.DestinationView{{ChannelID: "10", EndpointID: "wh"}},
		}}},
	}
	e := echo.New()
	NewRoutesHandler(nil, svc).Register(e)

	rec := serve(e, http.MethodGet, "/routes")
	require.Equal(t, http.StatusOK, rec.Code)

	var body RoutesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, mirror.StateInstalled, body.Status.State)
	require.Len(t, body.Table.Routes, 1)
	assert.Equal(t, "10", body.Table.Routes[0].Destinations[0].ChannelID)
	assert.NotContains(t, rec.Body.String(), "token")
}

func TestRefreshRoutes(t *testing.T) {
	t.Parallel()

	svc := &fakeRoutingService{status: mirror.RefreshStatus{Version: 4}}
	e := echo.New()
	NewRoutesHandler(nil, svc).Register(e)

	rec := serve(e, http.MethodPost, "/routes/refresh")
	require.Equal(t, http.StatusOK, rec.Code)
	var body RefreshResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, uint64(5), body.Version)

	svc.refreshErr = mirror.ErrRefreshInProgress
	assert.Equal(t, http.StatusConflict, serve(e, http.MethodPost, "/routes/refresh").Code)

	svc.refreshErr = &mirror.RefreshError{Stage: mirror.StageDiscovery, Err: errors.New("boom")}
	assert.Equal(t, http.StatusBadGateway, serve(e, http.MethodPost, "/routes/refresh").Code)
	assert.Equal(t, 3, svc.refreshed)
}

type staticChecker []healthcheck.CheckResult

func (s staticChecker) ListChecks(ctx context.Context) []healthcheck.CheckResult { return s }

func TestHealth(t *testing.T) {
	t.Parallel()

	e := echo.New()
	NewHealthHandler(staticChecker{{ID: "a", Status: healthcheck.StatusOK}}).Register(e)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/health").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodHead, "/health").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/ping").Code)

	failing := echo.New()
	NewHealthHandler(staticChecker{{ID: "a", Status: healthcheck.StatusError}}).Register(failing)
	rec := serve(failing, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var report healthcheck.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, healthcheck.StatusError, report.Status)
}

func TestAuthRefresh(t *testing.T) {
	t.Parallel()

	secret := "s3cret"
	e := echo.New()
	e.Use(auth.JWTMiddleware(secret, nil))
	NewAuthHandler(secret, time.Hour).Register(e)

	tok, _, err := auth.GenerateToken(auth.AdminSubject, secret, 10*time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.AccessToken)
	assert.Equal(t, "Bearer", body.TokenType)

	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodPost, "/auth/refresh").Code)
}
