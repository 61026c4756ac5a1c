package handler

import (
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"family-service/internal/middleware"
	"family-service/internal/model"
	"family-service/internal/notify"
	"family-service/internal/permission"
	"family-service/pkg/config"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// openTestDB opens an isolated in-memory database with the full schema.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Tenant{},
		&model.User{},
		&model.Member{},
		&model.Event{},
		&model.Album{},
		&model.Image{},
		&model.Advertisement{},
		&model.Transaction{},
		&model.Notification{},
		&permission.RoleTemplate{},
	))
	return db
}

// seededPerms returns a permission service with the built-in templates.
func seededPerms(t *testing.T, db *gorm.DB) *permission.Service {
	t.Helper()
	svc := permission.NewService(db)
	require.NoError(t, svc.Seed())
	return svc
}

func testConfig() *config.Config {
	return &config.Config{
		Upload: config.UploadConfig{
			Dir:          "testdata/uploads",
			DefaultImage: "/uploads/default.png",
		},
		FamilyName:  "Elsaqar",
		FrontendURL: "http://localhost:3000",
	}
}

func testNotifier(db *gorm.DB) *notify.Notifier {
	return notify.New(db, zap.NewNop())
}

// jsonContext builds an echo context carrying a JSON body and the identity
// the auth middleware would have stored.
func jsonContext(t *testing.T, method, path string, body interface{}, callerID uint) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	var reader *strings.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	c := echo.New().NewContext(req, rec)
	if callerID != 0 {
		c.Set(middleware.UserIDKey, callerID)
	}
	return c, rec
}

func setPathID(c echo.Context, id string) {
	c.SetParamNames("id")
	c.SetParamValues(id)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// envelope decodes the standard response envelope.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func decodeInto(rec *httptest.ResponseRecorder, out interface{}) error {
	return json.Unmarshal(rec.Body.Bytes(), out)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, rec.Code, "body: %s", rec.Body.String())
}
