package rest_test

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sketchmon/arena/api/rest"
	"github.com/sketchmon/arena/game/analyze"
	"github.com/sketchmon/arena/game/analyze/mocks"
	"github.com/sketchmon/arena/game/balance"
	"github.com/sketchmon/arena/model"
	"github.com/sketchmon/arena/plugin/hook"
	"github.com/sketchmon/arena/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"gorm.io/gorm"
)

var sketch = []byte("\x89PNG\r\n\x1a\nnot-really-a-png")

func newMonsterRouter(t *testing.T, a analyze.Analyzer, limit int64, account int64) (*gin.Engine, *rest.MonsterHandler, *gorm.DB) {
	db := testutil.SetupTestDB(t)
	h := rest.NewMonsterHandler(db, a, balance.DefaultTraits, limit, nopLogger())
	r := gin.New()
	g := r.Group("/api/monsters", asAccount(account))
	g.POST("/analyze", h.Analyze)
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	return r, h, db
}

func uploadSketch(r http.Handler, field string, data []byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mp := multipart.NewWriter(&body)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="`+field+`"; filename="sketch.png"`)
	hdr.Set("Content-Type", "image/png")
	part, _ := mp.CreatePart(hdr)
	_, _ = part.Write(data)
	_ = mp.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/monsters/analyze", &body)
	req.Header.Set("Content-Type", mp.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAnalyze_BalancesModelOutput(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := mocks.NewMockAnalyzer(ctrl)
	a.EXPECT().Analyze(gomock.Any(), sketch, "image/png").Return(balance.RawStats{
		Name: "Spike", Type: "fight", Attack: 20, Defense: 9, Speed: 7, Health: 300,
	}, nil)
	r, _, _ := newMonsterRouter(t, a, 0, 1)

	w := uploadSketch(r, "image", sketch)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.Equal(t, false, resp["fallback"])
	assert.NotEmpty(t, resp["flavor"])

	stats := resp["stats"].(map[string]interface{})
	assert.Equal(t, "Spike", stats["name"])
	assert.Equal(t, "Fight", stats["type"])
	assert.EqualValues(t, 6, stats["attack"])
	assert.EqualValues(t, 6, stats["defense"])
	assert.EqualValues(t, 7, stats["speed"], "speed is never rescaled")
	assert.EqualValues(t, 62, stats["health"])

	raw := resp["raw"].(map[string]interface{})
	assert.EqualValues(t, 300, raw["health"])
}

func TestAnalyze_FallbackOnError(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := mocks.NewMockAnalyzer(ctrl)
	a.EXPECT().Analyze(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(balance.RawStats{}, errors.New("model unavailable"))
	r, _, _ := newMonsterRouter(t, a, 0, 1)

	w := uploadSketch(r, "image", sketch)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, true, resp["fallback"])
	stats := resp["stats"].(map[string]interface{})
	assert.Equal(t, analyze.Fallback().Name, stats["name"])
	assert.EqualValues(t, 50, stats["health"])
}

func TestAnalyze_NoAnalyzer(t *testing.T) {
	r, _, _ := newMonsterRouter(t, nil, 0, 1)
	w := uploadSketch(r, "image", sketch)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["fallback"])
}

func TestAnalyze_BadUpload(t *testing.T) {
	r, _, _ := newMonsterRouter(t, nil, 16, 1)

	w := uploadSketch(r, "file", sketch)
	assert.Equal(t, http.StatusBadRequest, w.Code, "wrong form field")

	w = uploadSketch(r, "image", bytes.Repeat([]byte{0xff}, 64))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestCreateMonster_Rebalances(t *testing.T) {
	r, h, db := newMonsterRouter(t, nil, 0, 42)
	hc := hook.NewHookCenter()
	var created *hook.MonsterContext
	hc.Register(hook.OnMonsterCreated, 0, "test", func(_ context.Context, _ string, data interface{}) (interface{}, error) {
		created = data.(*hook.MonsterContext)
		return data, nil
	})
	h.WithHooks(hc)

	w := postJSON(r, "/api/monsters", map[string]interface{}{
		"name": "  Tank  ", "type": "FAIRY",
		"attack": 10, "defense": 10, "speed": 3, "health": 100,
		"image_ref": "ipfs://sketch",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var mon model.Monster
	require.NoError(t, db.Where("account_id = ?", 42).First(&mon).Error)
	assert.Equal(t, "Tank", mon.Name)
	assert.Equal(t, "Fairy", mon.Type)
	assert.Equal(t, 3, mon.Speed)
	assert.Equal(t, "ipfs://sketch", mon.ImageRef)
	assert.NotEmpty(t, mon.Flavor)
	budget := float64(mon.Attack) + float64(mon.Defense) + float64(mon.Health)/10
	assert.InDelta(t, balance.BudgetMax, budget, 1.0)

	require.NotNil(t, created)
	assert.Equal(t, mon.ID, created.MonsterID)
	assert.EqualValues(t, 42, created.AccountID)
}

func TestCreateMonster_CountFailureRejects(t *testing.T) {
	r, _, db := newMonsterRouter(t, nil, 0, 42)
	failQueries(t, db)

	w := postJSON(r, "/api/monsters", map[string]interface{}{
		"name": "Tank", "type": "Fairy",
		"attack": 10, "defense": 10, "speed": 3, "health": 100,
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "db error")

	var n int64
	require.NoError(t, db.Session(&gorm.Session{NewDB: true}).Raw("SELECT COUNT(*) FROM monsters").Row().Scan(&n))
	assert.Zero(t, n, "no monster is stored when the limit cannot be checked")
}

func TestCreateMonster_BadBody(t *testing.T) {
	r, _, _ := newMonsterRouter(t, nil, 0, 1)
	w := doJSON(r, http.MethodPost, "/api/monsters", "not an object")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAndGetMonsters(t *testing.T) {
	r, _, db := newMonsterRouter(t, nil, 0, 1)
	mine := &model.Monster{AccountID: 1, Name: "Mine", Type: "Fight", Attack: 5, Defense: 5, Speed: 5, Health: 50}
	theirs := &model.Monster{AccountID: 2, Name: "Theirs", Type: "Fright", Attack: 5, Defense: 5, Speed: 5, Health: 50}
	require.NoError(t, db.Create(mine).Error)
	require.NoError(t, db.Create(theirs).Error)

	w := getJSON(r, "/api/monsters", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)["monsters"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, "Mine", list[0].(map[string]interface{})["name"])

	w = getJSON(r, "/api/monsters/"+itoa(mine.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 15, decode(t, w)["budget"])

	w = getJSON(r, "/api/monsters/"+itoa(theirs.ID), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = getJSON(r, "/api/monsters/zero", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
