package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rockymount114/City-Workflow/internal/config"
	"github.com/rockymount114/City-Workflow/internal/middleware"
	"github.com/rockymount114/City-Workflow/internal/models"
	"github.com/rockymount114/City-Workflow/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

var testJustification = strings.Repeat("Needs access to maintain parcel layers. ", 2)

// setupMockDB creates a GORM *gorm.DB backed by sqlmock for unit tests.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)
	return gormDB, mock
}

func testConfig() *config.Config {
	return &config.Config{
		Env:         "test",
		JWTSecret:   testSecret,
		EmailDomain: "city.gov",
	}
}

// testServer is a full server on an in-memory sqlite database.
type testServer struct {
	t   *testing.T
	db  *gorm.DB
	cfg *config.Config
	srv *Server
	app *fiber.App
}

func newTestServer(t *testing.T, rdb *redis.Client) *testServer {
	t.Helper()
	db := testutil.NewSQLiteDB(t, testutil.AllModels()...)
	cfg := testConfig()
	srv, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)
	return &testServer{t: t, db: db, cfg: cfg, srv: srv, app: srv.App()}
}

func (ts *testServer) user(email string, role models.Role) (*models.User, string) {
	ts.t.Helper()
	u := testutil.CreateUser(ts.t, ts.db, email, role)
	return u, ts.token(u)
}

func (ts *testServer) token(u *models.User) string {
	ts.t.Helper()
	tok, _, err := middleware.IssueToken(ts.cfg, u.ID, u.Role, time.Hour)
	require.NoError(ts.t, err)
	return tok
}

// do performs a request and returns the response with its body read.
func (ts *testServer) do(method, path, token string, body any) (*http.Response, []byte) {
	ts.t.Helper()
	return ts.doWithHeaders(method, path, token, body, nil)
}

func (ts *testServer) doWithHeaders(method, path, token string, body any, headers map[string]string) (*http.Response, []byte) {
	ts.t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(ts.t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := ts.app.Test(req, -1)
	require.NoError(ts.t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(ts.t, err)
	return resp, data
}

// decode unmarshals a response body, failing the test on error.
func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

func TestActorFrom_ClientIP(t *testing.T) {
	tests := []struct {
		name      string
		forwarded string
		want      string
	}{
		{"first forwarded entry", "203.0.113.7, 10.0.0.1", "203.0.113.7"},
		{"single forwarded entry", "198.51.100.20", "198.51.100.20"},
		{"peer address without proxy", "", "0.0.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			admin, token := ts.user("admin@city.gov", models.RoleAdmin)

			headers := map[string]string{}
			if tt.forwarded != "" {
				headers[fiber.HeaderXForwardedFor] = tt.forwarded
			}
			resp, data := ts.doWithHeaders(http.MethodPost, "/api/admin/applications", token, fiber.Map{
				"name":             "Fleet Tracker",
				"approvalWorkflow": []string{"APPROVER_L1"},
			}, headers)
			require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(data))

			var entry models.AuditLog
			require.NoError(t, ts.db.Where("actor_id = ?", admin.ID).Last(&entry).Error)
			assert.Equal(t, tt.want, entry.IPAddress)
		})
	}
}

// --- humanizeParam (pure function, no HTTP) ---

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"userId", "user ID"},
		{"entityId", "entity ID"},
		{"actorId", "actor ID"},
		{"approvalStepId", "approval step ID"},
		{"something", "something"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, humanizeParam(tt.param))
		})
	}
}

// --- parsePage ---

func TestParsePage(t *testing.T) {
	app := fiber.New()
	app.Get("/items", func(c *fiber.Ctx) error {
		p := parsePage(c)
		return c.JSON(fiber.Map{"page": p.Number, "size": p.Size})
	})

	tests := []struct {
		query string
		page  float64
		size  float64
	}{
		{"", 1, 20},
		{"?page=3&pageSize=5", 3, 5},
		{"?page=0&pageSize=-4", 1, 20},
		{"?pageSize=500", 1, 100},
		{"?page=abc", 1, 20},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items"+tt.query, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			var body map[string]float64
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.page, body["page"])
			assert.Equal(t, tt.size, body["size"])
		})
	}
}

// --- parseID ---

func TestParseID(t *testing.T) {
	app := fiber.New()
	app.Get("/items/:id", func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return nil
		}
		return c.JSON(fiber.Map{"id": id})
	})

	for _, raw := range []string{"abc", "0", "-3"} {
		t.Run(raw, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items/"+raw, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			var body models.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, "Invalid ID", body.Error)
			assert.Equal(t, models.CodeValidation, body.Code)
		})
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/items/42", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

// --- respondAppError ---

func TestRespondAppError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"not found", models.NewNotFoundError("Application", 7), fiber.StatusNotFound, models.CodeNotFound, ""},
		{"conflict", models.NewConflictError("Application name already in use"), fiber.StatusConflict, models.CodeConflict, "Application name already in use"},
		{"forbidden", models.NewForbiddenError("nope"), fiber.StatusForbidden, models.CodeForbidden, "nope"},
		{"plain error", errors.New("pq: connection reset"), fiber.StatusInternalServerError, models.CodeInternal, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				return respondAppError(c, tt.err)
			})
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.status, resp.StatusCode)
			var body models.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, body.Error)
			}
			assert.NotContains(t, body.Error, "pq:")
		})
	}
}

func TestRespondAppError_FieldDetails(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		fields := models.FieldErrors{}
		fields.Add("name", "Name is required")
		return respondAppError(c, models.NewFieldValidationError(fields))
	})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotNil(t, body.Details)
	assert.Equal(t, []string{"Name is required"}, body.Details.Fields["name"])
}
