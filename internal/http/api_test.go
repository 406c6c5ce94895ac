package http

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier-dashboard/internal/auth"
	"courier-dashboard/internal/domain"
	"courier-dashboard/internal/kv"
	"courier-dashboard/internal/service"
	"courier-dashboard/internal/session"
	"courier-dashboard/internal/storage"
)

const (
	testCookie = "courier_session"
	testOrigin = "http://localhost:5173"
)

type stubEntry struct {
	secret string
	user   domain.User
}

type stubAuthenticator struct {
	users map[string]stubEntry
}

func newStubAuthenticator() *stubAuthenticator {
	a := &stubAuthenticator{users: map[string]stubEntry{}}
	a.add("admin", "courier123", domain.RoleAdmin, "")
	a.add("john.doe", "john123", domain.RoleCourier, "JD")
	a.add("sarah.wilson", "sarah456", domain.RoleCourier, "SW")
	return a
}

func (a *stubAuthenticator) add(loginID, secret string, role domain.Role, courierID string) {
	a.users[loginID] = stubEntry{
		secret: secret,
		user:   domain.User{LoginID: loginID, DisplayName: loginID, Role: role, CourierID: courierID},
	}
}

func (a *stubAuthenticator) Authenticate(_ context.Context, loginID, secret string) (*domain.User, error) {
	if loginID == "" || secret == "" {
		return nil, service.ErrValidation
	}
	if loginID == "busy" {
		return nil, service.ErrLoginInProgress
	}
	entry, ok := a.users[loginID]
	if !ok || entry.secret != secret {
		return nil, service.ErrInvalidCredentials
	}
	u := entry.user
	return &u, nil
}

type records struct{}

func (records) ListRoutes(context.Context) ([]domain.RouteRecord, error) {
	return []domain.RouteRecord{
		{ID: 1, Date: "10/16/25", CourierID: "JD", CourierName: "John D.", Route: "R101", Stop: 1, Address: "123 Main St", Status: domain.ComplianceCompliant},
		{ID: 2, Date: "10/16/25", CourierID: "AL", CourierName: "Amanda L.", Route: "R202", Stop: 3, Address: "456 Oak Ave", Status: domain.ComplianceCompliant},
		{ID: 3, Date: "10/17/25", CourierID: "JD", CourierName: "John D.", Route: "R118", Stop: 2, Address: "90 Broadway", Status: domain.ComplianceNonCompliant},
	}, nil
}

func (records) ListScans(context.Context) ([]domain.ScanRecord, error) {
	return []domain.ScanRecord{
		{ID: 1, Date: "10/16/25", CourierID: "JD", CourierName: "John D.", Tracking: "1Z1", ScanType: domain.ScanTypeDelivery, DistanceFeet: 180, Status: domain.ComplianceCompliant},
		{ID: 2, Date: "10/16/25", CourierID: "AL", CourierName: "Amanda L.", Tracking: "1Z2", ScanType: domain.ScanTypePickup, DistanceFeet: 95, Status: domain.ComplianceCompliant},
		{ID: 3, Date: "10/17/25", CourierID: "JD", CourierName: "John D.", Tracking: "1Z3", ScanType: domain.ScanTypePickup, DistanceFeet: 275, Status: domain.ComplianceNonCompliant},
		{ID: 4, Date: "10/17/25", CourierID: "LH", CourierName: "Lisa H.", Tracking: "1Z4", ScanType: domain.ScanTypeException, DistanceFeet: 310, Status: domain.ComplianceNonCompliant},
	}, nil
}

type memoryStorage struct {
	objects map[string][]byte
}

func (s *memoryStorage) Put(_ context.Context, body io.Reader, opts storage.PutOptions) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.objects[opts.Key] = data
	return "s3://" + opts.Bucket + "/" + opts.Key, nil
}

func (s *memoryStorage) ListObjects(_ context.Context, _, prefix string) ([]storage.ObjectInfo, error) {
	var out []storage.ObjectInfo
	for key, data := range s.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, storage.ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	return out, nil
}

func (s *memoryStorage) GetObjectURL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return "https://" + bucket + ".example/" + key, nil
}

type testServer struct {
	router *gin.Engine
	kv     *kv.MemoryStore
}

func newTestServer(t *testing.T, store storage.Service) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()

	tokens, err := auth.NewManager("test-secret", "")
	require.NoError(t, err)

	memory := kv.NewMemoryStore()
	bucket := ""
	if store != nil {
		bucket = "exports"
	}
	handler := NewHandler(Config{
		Authenticator:  newStubAuthenticator(),
		Shell:          service.NewShell(session.NewStore(memory, session.WithLogger(logger)), service.WithShellLogger(logger)),
		Dashboards:     service.NewDashboardService(records{}),
		Exports:        service.NewExportService(store, bucket, "courier-exports"),
		Tokens:         tokens,
		CookieName:     testCookie,
		AllowedOrigins: []string{testOrigin + "/"},
		Logger:         logger,
	})
	router := gin.New()
	handler.RegisterRoutes(router)
	return &testServer{router: router, kv: memory}
}

func (s *testServer) do(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			data, _ := json.Marshal(b)
			reader = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, loginID, secret string, rememberMe bool) *http.Cookie {
	t.Helper()
	rec := s.do(http.MethodPost, "/api/login", loginRequest{LoginID: loginID, Secret: secret, RememberMe: rememberMe}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return sessionCookie(t, rec)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == testCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", testCookie)
	return nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionAnonymous(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodGet, "/api/session", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[SessionResponse](t, rec)
	assert.False(t, resp.Authenticated)
	assert.Nil(t, resp.User)
}

func TestLoginErrors(t *testing.T) {
	s := newTestServer(t, nil)

	cases := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"malformed", "{", http.StatusBadRequest, ErrCodeInvalidRequest},
		{"empty secret", loginRequest{LoginID: "admin"}, http.StatusBadRequest, ErrCodeValidation},
		{"empty login", loginRequest{Secret: "courier123"}, http.StatusBadRequest, ErrCodeValidation},
		{"wrong secret", loginRequest{LoginID: "admin", Secret: "nope"}, http.StatusUnauthorized, ErrCodeInvalidCredentials},
		{"unknown user", loginRequest{LoginID: "ghost", Secret: "courier123"}, http.StatusUnauthorized, ErrCodeInvalidCredentials},
		{"in progress", loginRequest{LoginID: "busy", Secret: "x"}, http.StatusConflict, ErrCodeLoginInProgress},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/login", tc.body, nil)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decode[APIError](t, rec).Code)
			assert.Empty(t, rec.Result().Cookies())
		})
	}
	assert.Zero(t, s.kv.Len())
}

func TestLoginOpensSession(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodPost, "/api/login", loginRequest{LoginID: "john.doe", Secret: "john123"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[SessionResponse](t, rec)
	require.True(t, resp.Authenticated)
	assert.Equal(t, "john.doe", resp.User.LoginID)
	assert.Equal(t, "JD", resp.User.CourierID)
	require.NotNil(t, resp.ExpiresAt)

	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.InDelta(t, (8 * time.Hour).Seconds(), float64(cookie.MaxAge), 5)
	assert.Equal(t, 2, s.kv.Len())

	rec = s.do(http.MethodGet, "/api/session", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	again := decode[SessionResponse](t, rec)
	assert.True(t, again.Authenticated)
	assert.Equal(t, resp.User, again.User)
}

func TestLoginReplacesPreviousSession(t *testing.T) {
	s := newTestServer(t, nil)

	first := s.login(t, "admin", "courier123", false)
	rec := s.do(http.MethodPost, "/api/login", loginRequest{LoginID: "john.doe", Secret: "john123"}, first)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 2, s.kv.Len())
	resp := decode[SessionResponse](t, s.do(http.MethodGet, "/api/session", nil, first))
	assert.False(t, resp.Authenticated)
}

func TestLogout(t *testing.T) {
	s := newTestServer(t, nil)
	cookie := s.login(t, "admin", "courier123", true)

	rec := s.do(http.MethodPost, "/api/logout", nil, cookie)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Less(t, sessionCookie(t, rec).MaxAge, 0)
	assert.Zero(t, s.kv.Len())

	resp := decode[SessionResponse](t, s.do(http.MethodGet, "/api/session", nil, cookie))
	assert.False(t, resp.Authenticated)

	// logging out without a session still succeeds
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPost, "/api/logout", nil, nil).Code)
}

func TestForgedCookieIsAnonymous(t *testing.T) {
	s := newTestServer(t, nil)

	forged := &http.Cookie{Name: testCookie, Value: "not-a-token"}
	resp := decode[SessionResponse](t, s.do(http.MethodGet, "/api/session", nil, forged))
	assert.False(t, resp.Authenticated)

	rec := s.do(http.MethodGet, "/api/dashboard", nil, forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDashboardRequiresSession(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{"/api/dashboard", "/api/dashboard/routes", "/api/dashboard/scans", "/api/dashboard/export", "/api/dashboard/exports"} {
		rec := s.do(http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, ErrCodeUnauthorized, decode[APIError](t, rec).Code, path)
	}
}

func TestDashboardForCourier(t *testing.T) {
	s := newTestServer(t, nil)
	cookie := s.login(t, "john.doe", "john123", false)

	rec := s.do(http.MethodGet, "/api/dashboard", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[DashboardResponse](t, rec)

	assert.True(t, d.IsCourier)
	assert.Equal(t, 2, d.RouteCount)
	assert.Equal(t, 1, d.RouteCompliantCount)
	assert.Equal(t, 1, d.RouteNoncompliantCount)
	assert.Equal(t, 2, d.ScanCount)
	assert.Equal(t, 50, d.ScanComplianceRate)
	assert.False(t, d.ExportArchiveEnabled)

	routes := decode[[]RouteRowResponse](t, s.do(http.MethodGet, "/api/dashboard/routes", nil, cookie))
	require.Len(t, routes, 2)
	assert.Equal(t, "R101", routes[0].Route)
	assert.Equal(t, "Off Route", routes[1].Compliance)

	scans := decode[[]ScanRowResponse](t, s.do(http.MethodGet, "/api/dashboard/scans", nil, cookie))
	require.Len(t, scans, 2)
	assert.True(t, scans[1].DistanceExceeded)
	assert.Equal(t, "Non-compliant", scans[1].Compliance)
}

func TestDashboardForAdminAndEmptyCourier(t *testing.T) {
	s := newTestServer(t, nil)

	d := decode[DashboardResponse](t, s.do(http.MethodGet, "/api/dashboard", nil, s.login(t, "admin", "courier123", false)))
	assert.False(t, d.IsCourier)
	assert.Equal(t, 3, d.RouteCount)
	assert.Equal(t, 4, d.ScanCount)
	assert.Equal(t, 50, d.ScanComplianceRate)

	d = decode[DashboardResponse](t, s.do(http.MethodGet, "/api/dashboard", nil, s.login(t, "sarah.wilson", "sarah456", false)))
	assert.Zero(t, d.RouteCount)
	assert.Zero(t, d.ScanCount)
	assert.Zero(t, d.ScanComplianceRate)
}

func TestExportCSV(t *testing.T) {
	s := newTestServer(t, nil)
	cookie := s.login(t, "john.doe", "john123", false)

	rec := s.do(http.MethodGet, "/api/dashboard/export?dataset=scans", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="scans-`)

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "1Z1", rows[1][6])
	assert.Equal(t, "1Z3", rows[2][6])
}

func TestExportValidation(t *testing.T) {
	s := newTestServer(t, nil)
	cookie := s.login(t, "admin", "courier123", false)

	rec := s.do(http.MethodGet, "/api/dashboard/export?dataset=users", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/dashboard/export?archive=maybe", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/dashboard/export?archive=true", nil, cookie)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, ErrCodeStorageUnavailable, decode[APIError](t, rec).Code)

	rec = s.do(http.MethodGet, "/api/dashboard/exports", nil, cookie)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestExportArchive(t *testing.T) {
	store := &memoryStorage{objects: map[string][]byte{}}
	s := newTestServer(t, store)
	cookie := s.login(t, "john.doe", "john123", false)

	rec := s.do(http.MethodGet, "/api/dashboard/export?dataset=routes&archive=true", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[ExportResponse](t, rec)
	assert.True(t, strings.HasPrefix(resp.Key, "courier-exports/john.doe/routes-"))
	assert.Equal(t, "https://exports.example/"+resp.Key, resp.URL)
	assert.NotContains(t, string(store.objects[resp.Key]), "Amanda")

	listed := decode[[]StorageObjectResponse](t, s.do(http.MethodGet, "/api/dashboard/exports", nil, cookie))
	require.Len(t, listed, 1)
	assert.Equal(t, resp.Key, listed[0].Key)

	other := s.login(t, "admin", "courier123", false)
	assert.Empty(t, decode[[]StorageObjectResponse](t, s.do(http.MethodGet, "/api/dashboard/exports", nil, other)))
}

func TestCORSAllowsListedOriginOnly(t *testing.T) {
	s := newTestServer(t, nil)
	cookie := s.login(t, "admin", "courier123", false)

	cases := []struct {
		name    string
		method  string
		path    string
		origin  string
		allowed bool
	}{
		{"preflight from listed origin", http.MethodOptions, "/api/login", testOrigin, true},
		{"read from listed origin", http.MethodGet, "/api/dashboard", testOrigin, true},
		{"preflight from other origin", http.MethodOptions, "/api/login", "https://evil.example", false},
		{"read from other origin", http.MethodGet, "/api/dashboard", "https://evil.example", false},
		{"sibling subdomain", http.MethodGet, "/api/session", "http://localhost:5174", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			req.Header.Set("Origin", tc.origin)
			req.AddCookie(cookie)
			rec := httptest.NewRecorder()
			s.router.ServeHTTP(rec, req)

			if tc.method == http.MethodOptions {
				assert.Equal(t, http.StatusNoContent, rec.Code)
			}
			if tc.allowed {
				assert.Equal(t, tc.origin, rec.Header().Get("Access-Control-Allow-Origin"))
				assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
				return
			}
			assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
			assert.Contains(t, rec.Header().Values("Vary"), "Origin")
		})
	}
}

func TestCORSWithoutAllowedOrigins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	logger, _ := test.NewNullLogger()
	NewHandler(Config{Logger: logger}).RegisterRoutes(router)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", testOrigin)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
