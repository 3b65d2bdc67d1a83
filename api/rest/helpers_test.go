package rest_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sketchmon/arena/config"
	mw "github.com/sketchmon/arena/middleware"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testSec = config.SecurityConfig{
	JWTSecret: "test-secret",
	JWTTTLH:   72 * time.Hour,
}

func nopLogger() *zap.Logger { return zap.NewNop() }

var errQueryDown = errors.New("query backend down")

// failQueries makes every SELECT on db fail from now on. Writes still go
// through.
func failQueries(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("test:fail_query", func(tx *gorm.DB) {
		_ = tx.AddError(errQueryDown)
	}))
}

func doJSON(r http.Handler, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postJSON(r http.Handler, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	return doJSON(r, http.MethodPost, path, body, headers...)
}

func getJSON(r http.Handler, path, token string) *httptest.ResponseRecorder {
	if token == "" {
		return doJSON(r, http.MethodGet, path, nil)
	}
	return doJSON(r, http.MethodGet, path, nil, "Authorization", "Bearer "+token)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// login registers (or logs in) username and returns its bearer token.
func login(t *testing.T, r http.Handler, username string) string {
	t.Helper()
	w := postJSON(r, "/api/auth/login", map[string]string{"username": username, "password": "pass1234"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)["token"].(string)
}

func itoa(i int64) string { return strconv.FormatInt(i, 10) }

// asAccount stands in for the auth middleware.
func asAccount(id int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(mw.AccountIDKey, id)
		c.Next()
	}
}
