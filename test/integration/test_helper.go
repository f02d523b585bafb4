package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"stakereferral/internal/events"
	"stakereferral/internal/handlers"
	"stakereferral/internal/models"
	"stakereferral/internal/referraltest"
	"stakereferral/internal/routes"
	"stakereferral/internal/store"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	// 运行测试
	code := m.Run()

	os.Exit(code)
}

// server is the full HTTP stack over a fresh SQLite database.
type server struct {
	*httptest.Server
	Fixture *referraltest.Fixture
	Hub     *events.Hub
}

func startServer(t *testing.T) *server {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))

	f := referraltest.NewWithStore(t, store.NewGorm(db))
	hub := events.NewHub(nil)
	f.Engine.SetEmitter(hub)

	handlers.Engine = f.Engine
	handlers.Accounts = f.Store
	handlers.SettleQueue = nil
	handlers.RPCEndpoints = nil

	srv := httptest.NewServer(routes.SetupRouter(routes.Options{Events: hub}))
	// 清理测试数据
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return &server{Server: srv, Fixture: f, Hub: hub}
}

// call sends a JSON request as caller and decodes the response into out
// when out is not nil.
func (s *server) call(t *testing.T, method, path string, caller solana.PublicKey, body, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if !caller.IsZero() {
		req.Header.Set(handlers.HeaderCaller, caller.String())
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}
