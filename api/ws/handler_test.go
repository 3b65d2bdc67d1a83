package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/sketchmon/arena/api/ws"
	"github.com/sketchmon/arena/cache"
	"github.com/sketchmon/arena/config"
	"github.com/sketchmon/arena/game/arena"
	mw "github.com/sketchmon/arena/middleware"
	"github.com/sketchmon/arena/model"
	"github.com/sketchmon/arena/resource"
	"github.com/sketchmon/arena/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var sec = config.SecurityConfig{JWTSecret: "ws-secret", JWTTTLH: time.Hour}

type socketEnv struct {
	srv     *httptest.Server
	svc     *arena.Service
	db      *gorm.DB
	cache   cache.Cache
	handler *ws.Handler
}

func newSocketEnv(t *testing.T, origins []string) *socketEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	cat, err := resource.LoadCatalog("../../data/catalog.yaml")
	require.NoError(t, err)
	repo := arena.NewGormRepository(db)
	require.NoError(t, repo.SyncCatalog(context.Background(), cat))
	svc := arena.NewService(repo, cat, c, ps, config.GameConfig{
		StartEnergy:       100,
		OpponentStatMin:   1,
		OpponentStatMax:   10,
		OpponentHealthMin: 10,
		OpponentHealthMax: 100,
	}, zap.NewNop())

	h := ws.NewHandler(svc, ps, origins, zap.NewNop())
	r := gin.New()
	r.GET("/ws/battles/:id", mw.StreamAuth(sec, c), h.ServeBattle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &socketEnv{srv: srv, svc: svc, db: db, cache: c, handler: h}
}

func (e *socketEnv) url(battleID int64, token string) string {
	return "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws/battles/" + strconv.FormatInt(battleID, 10) + "?token=" + token
}

func (e *socketEnv) token(t *testing.T, accountID int64) string {
	t.Helper()
	tok, err := mw.GenerateToken(accountID, "tester", sec.JWTSecret, time.Hour)
	require.NoError(t, err)
	require.NoError(t, e.cache.Set(context.Background(), cache.SessionKey(tok), strconv.FormatInt(accountID, 10), time.Hour))
	return tok
}

// battle starts a battle with deep health pools so no turn ends it.
func (e *socketEnv) battle(t *testing.T, accountID int64) int64 {
	t.Helper()
	mon := &model.Monster{AccountID: accountID, Name: "Inky", Type: "Fight", Attack: 8, Defense: 5, Speed: 5, Health: 60}
	require.NoError(t, e.db.Create(mon).Error)
	view, err := e.svc.StartBattle(context.Background(), accountID, mon.ID)
	require.NoError(t, err)
	require.NoError(t, e.db.Model(&model.Battle{}).Where("id = ?", view.Battle.ID).
		Updates(map[string]interface{}{"opp_health": 5000, "player_health": 5000}).Error)
	return view.Battle.ID
}

type packet struct {
	Seq     uint64                 `json:"seq,omitempty"`
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

func dial(t *testing.T, ctx context.Context, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func read(t *testing.T, ctx context.Context, conn *websocket.Conn) packet {
	t.Helper()
	var p packet
	require.NoError(t, wsjson.Read(ctx, conn, &p))
	return p
}

func TestServeBattle_MoveRoundTrip(t *testing.T) {
	env := newSocketEnv(t, nil)
	id := env.battle(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn := dial(t, ctx, env.url(id, env.token(t, 1)))
	snap := read(t, ctx, conn)
	require.Equal(t, "snapshot", snap.Type)
	assert.Len(t, snap.Payload["moves"], resource.Tiers)

	require.NoError(t, wsjson.Write(ctx, conn, packet{Seq: 1, Type: "move", Payload: map[string]interface{}{"slot": 0}}))

	// The event from the battle channel and the ack may arrive in either order.
	seen := map[string]packet{}
	for len(seen) < 2 {
		p := read(t, ctx, conn)
		seen[p.Type] = p
	}
	require.Contains(t, seen, "turn_resolved")
	require.Contains(t, seen, "move_ack")
	assert.EqualValues(t, 1, seen["move_ack"].Payload["turn"])
	assert.Equal(t, "in_progress", seen["move_ack"].Payload["outcome"])
	assert.EqualValues(t, id, seen["turn_resolved"].Payload["battle_id"])

	require.NoError(t, wsjson.Write(ctx, conn, packet{Seq: 2, Type: "move", Payload: map[string]interface{}{"slot": 9}}))
	p := read(t, ctx, conn)
	assert.Equal(t, "error", p.Type)
	assert.Equal(t, arena.ErrMoveNotAllowed.Error(), p.Payload["error"])

	require.NoError(t, wsjson.Write(ctx, conn, packet{Seq: 3, Type: "ping"}))
	assert.Equal(t, "pong", read(t, ctx, conn).Type)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
}

func TestServeBattle_State(t *testing.T) {
	env := newSocketEnv(t, nil)
	id := env.battle(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn := dial(t, ctx, env.url(id, env.token(t, 1)))
	read(t, ctx, conn)
	require.NoError(t, wsjson.Write(ctx, conn, packet{Type: "state"}))
	p := read(t, ctx, conn)
	assert.Equal(t, "snapshot", p.Type)
	assert.Equal(t, "in_progress", p.Payload["outcome"])
}

func TestServeBattle_Rejections(t *testing.T) {
	env := newSocketEnv(t, []string{"https://arena.example"})
	id := env.battle(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, env.url(id, ""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.Dial(ctx, env.url(id, env.token(t, 2)), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	hdr := http.Header{}
	hdr.Set("Origin", "https://evil.example")
	_, resp, err = websocket.Dial(ctx, env.url(id, env.token(t, 1)), &websocket.DialOptions{HTTPHeader: hdr})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServeBattle_UpgradeBehindGinMiddleware(t *testing.T) {
	env := newSocketEnv(t, nil)
	id := env.battle(t, 1)

	// Mirror the production chain: a middleware that reads the final status
	// after the handler returns.
	statuses := make(chan int, 1)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Next()
		statuses <- c.Writer.Status()
	})
	r.GET("/ws/battles/:id", mw.StreamAuth(sec, env.cache), env.handler.ServeBattle)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/battles/" + strconv.FormatInt(id, 10) + "?token=" + env.token(t, 1)
	conn, resp, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	snap := read(t, ctx, conn)
	assert.Equal(t, "snapshot", snap.Type)
	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))

	select {
	case code := <-statuses:
		assert.Equal(t, http.StatusSwitchingProtocols, code)
	case <-ctx.Done():
		t.Fatal("handler did not return after close")
	}
}
