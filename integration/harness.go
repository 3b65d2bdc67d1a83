package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sketchmon/arena/api"
	apirest "github.com/sketchmon/arena/api/rest"
	"github.com/sketchmon/arena/api/sse"
	apiws "github.com/sketchmon/arena/api/ws"
	"github.com/sketchmon/arena/audit"
	"github.com/sketchmon/arena/config"
	"github.com/sketchmon/arena/game/arena"
	mw "github.com/sketchmon/arena/middleware"
	"github.com/sketchmon/arena/plugin/hook"
	"github.com/sketchmon/arena/resource"
	"github.com/sketchmon/arena/scheduler"
	"github.com/sketchmon/arena/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const (
	adminKey    = "integration-admin-key"
	waitTimeout = 5 * time.Second
)

// arenaConfig is the production shape with limits raised out of the way.
func arenaConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{AdminKey: adminKey},
		Game: config.GameConfig{
			CatalogPath:       "../data/catalog.yaml",
			StartEnergy:       100,
			OpponentStatMin:   1,
			OpponentStatMax:   10,
			OpponentHealthMin: 10,
			OpponentHealthMax: 100,
			TurnLockTTL:       waitTimeout,
			LeaderboardSize:   50,
		},
		Security: config.SecurityConfig{
			JWTSecret:      "arena-integration",
			JWTTTLH:        time.Hour,
			RateLimitRPS:   1000,
			RateLimitBurst: 2000,
			MoveRateRPS:    1000,
			MoveRateBurst:  2000,
		},
		AI: config.AIConfig{MaxUploadBytes: 1 << 20},
	}
}

// TestServer runs the whole arena behind httptest, routed by api.Register
// exactly as main routes it. Sketch analysis is off, so every upload gets
// the fallback creature.
type TestServer struct {
	DB  *gorm.DB
	Cfg *config.Config
	URL string
}

func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := arenaConfig()
	logger := zap.NewNop()

	db := testutil.SetupTestDB(t)
	c, pubsub := testutil.SetupTestCache(t)
	auditSvc := audit.New(db, logger)
	t.Cleanup(func() { auditSvc.Stop(context.Background()) })

	catalog, err := resource.LoadCatalog(cfg.Game.CatalogPath)
	require.NoError(t, err)
	repo := arena.NewGormRepository(db)
	require.NoError(t, repo.SyncCatalog(context.Background(), catalog))

	hooks := hook.NewHookCenter()
	battles := arena.NewService(repo, catalog, c, pubsub, cfg.Game, logger).WithHooks(hooks).WithAudit(auditSvc)
	ranking := apirest.NewRankingHandler(db, c, cfg.Game.LeaderboardSize, logger)
	hooks.Register(hook.OnBattleEnd, 100, "ranking", ranking.RecordWin)

	sched := scheduler.New(logger)
	t.Cleanup(sched.Stop)
	sched.Every("leaderboard_refresh", time.Hour, func(ctx context.Context) error {
		_, err := ranking.Refresh(ctx)
		return err
	})

	r := gin.New()
	r.Use(mw.TraceID(), mw.Recovery(logger), mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))
	monsters := apirest.NewMonsterHandler(db, nil, catalog.Traits, cfg.AI.MaxUploadBytes, logger).WithHooks(hooks).WithAudit(auditSvc)
	api.Register(r, api.Handlers{
		Auth:    apirest.NewAuthHandler(db, c, cfg.Security),
		Monster: monsters,
		Battle:  apirest.NewBattleHandler(battles, cfg.Game.StartEnergy, logger),
		Ranking: ranking,
		Admin:   apirest.NewAdminHandler(db, c, sched, logger),
		SSE:     sse.NewHandler(battles, pubsub, nil, logger),
		WS:      apiws.NewHandler(battles, pubsub, nil, logger),
	}, cfg, c)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &TestServer{DB: db, Cfg: cfg, URL: srv.URL}
}

// Reply is a finished HTTP exchange. JSON is set when the body was JSON.
type Reply struct {
	Status int
	Header http.Header
	JSON   map[string]interface{}
}

// Obj returns the nested object under key.
func (r Reply) Obj(key string) map[string]interface{} {
	m, _ := r.JSON[key].(map[string]interface{})
	return m
}

// ID returns the numeric "id" field of the nested object under key.
func (r Reply) ID(key string) int64 {
	id, _ := r.Obj(key)["id"].(float64)
	return int64(id)
}

func (ts *TestServer) send(t *testing.T, method, path string, body interface{}, header http.Header) Reply {
	t.Helper()
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.URL+path, payload)
	require.NoError(t, err)
	for k, vs := range header {
		req.Header[k] = vs
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := Reply{Status: resp.StatusCode, Header: resp.Header}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out.JSON), "body: %s", raw)
	}
	return out
}

// Call sends body as JSON with token as the bearer; either may be empty.
func (ts *TestServer) Call(t *testing.T, method, path, token string, body interface{}) Reply {
	t.Helper()
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return ts.send(t, method, path, body, h)
}

// Admin sends a request carrying the admin key.
func (ts *TestServer) Admin(t *testing.T, method, path string, body interface{}) Reply {
	t.Helper()
	h := http.Header{}
	h.Set("X-Admin-Key", adminKey)
	return ts.send(t, method, path, body, h)
}

// Login signs in, registering on first use.
func (ts *TestServer) Login(t *testing.T, username, password string) (token string, accountID int64) {
	t.Helper()
	rep := ts.Call(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, rep.Status, "login %s", username)
	return rep.JSON["token"].(string), int64(rep.JSON["account_id"].(float64))
}

// CreateMonster submits raw stats and returns the balanced monster id.
func (ts *TestServer) CreateMonster(t *testing.T, token string, raw map[string]interface{}) int64 {
	t.Helper()
	rep := ts.Call(t, http.MethodPost, "/api/monsters", token, raw)
	require.Equal(t, http.StatusCreated, rep.Status)
	return rep.ID("monster")
}

// StartBattle opens a battle for the monster and returns its view.
func (ts *TestServer) StartBattle(t *testing.T, token string, monsterID int64) Reply {
	t.Helper()
	rep := ts.Call(t, http.MethodPost, "/api/battles", token, map[string]int64{"monster_id": monsterID})
	require.Equal(t, http.StatusCreated, rep.Status)
	return rep
}

// Move plays one slot.
func (ts *TestServer) Move(t *testing.T, token string, battleID int64, slot int) Reply {
	t.Helper()
	return ts.Call(t, http.MethodPost, fmt.Sprintf("/api/battles/%d/moves", battleID), token, map[string]int{"slot": slot})
}

// SetHealth overwrites both health pools of a battle.
func (ts *TestServer) SetHealth(t *testing.T, battleID int64, player, opp int) {
	t.Helper()
	require.NoError(t, ts.DB.Table("battles").Where("id = ?", battleID).
		Updates(map[string]interface{}{"player_health": player, "opp_health": opp}).Error)
}

func (ts *TestServer) wsURL(battleID int64, token string) string {
	return fmt.Sprintf("ws%s/ws/battles/%d?token=%s", strings.TrimPrefix(ts.URL, "http"), battleID, token)
}

// Packet is one battle socket frame.
type Packet struct {
	Seq     uint64                 `json:"seq,omitempty"`
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

type battleSocket struct {
	t      *testing.T
	conn   *websocket.Conn
	seq    uint64
	readCh chan socketRead
}

type socketRead struct {
	data []byte
	err  error
}

// Socket opens the battle socket; it is closed when the test ends. Frames
// are read by a background loop so a timed-out wait leaves the connection
// usable.
func (ts *TestServer) Socket(t *testing.T, battleID int64, token string) *battleSocket {
	t.Helper()
	dialer := websocket.Dialer{HandshakeTimeout: waitTimeout}
	conn, resp, err := dialer.Dial(ts.wsURL(battleID, token), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err, "dial battle socket")
	s := &battleSocket{t: t, conn: conn, readCh: make(chan socketRead, 256)}
	go s.readLoop()
	t.Cleanup(func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})
	return s
}

func (s *battleSocket) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		s.readCh <- socketRead{data, err}
		if err != nil {
			return
		}
	}
}

func (s *battleSocket) send(kind string, payload map[string]interface{}) {
	s.t.Helper()
	s.seq++
	require.NoError(s.t, s.conn.SetWriteDeadline(time.Now().Add(waitTimeout)))
	require.NoError(s.t, s.conn.WriteJSON(Packet{Seq: s.seq, Type: kind, Payload: payload}))
}

func (s *battleSocket) next() Packet {
	s.t.Helper()
	select {
	case res := <-s.readCh:
		require.NoError(s.t, res.err, "read battle socket")
		var p Packet
		require.NoError(s.t, json.Unmarshal(res.data, &p))
		return p
	case <-time.After(waitTimeout):
		s.t.Fatal("battle socket read timed out")
		return Packet{}
	}
}

// await skips frames until one of kind arrives and matches.
func (s *battleSocket) await(kind string, match func(Packet) bool) Packet {
	s.t.Helper()
	for i := 0; i < 50; i++ {
		if p := s.next(); p.Type == kind && (match == nil || match(p)) {
			return p
		}
	}
	s.t.Fatalf("no %q frame in 50 reads", kind)
	return Packet{}
}

// uniqueName returns a username no other test uses.
func uniqueName(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString()[:13], "-", "")
}
