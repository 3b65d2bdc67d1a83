package integration

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var doodle = map[string]interface{}{
	"name": "Doodle", "type": "FIGHT", "attack": 6, "defense": 6, "speed": 5, "health": 60,
}

// fighter is a logged-in account with one monster.
type fighter struct {
	token     string
	accountID int64
	monsterID int64
}

func newFighter(t *testing.T, ts *TestServer, prefix string) fighter {
	t.Helper()
	token, accountID := ts.Login(t, uniqueName(prefix), "sketchbook")
	return fighter{token: token, accountID: accountID, monsterID: ts.CreateMonster(t, token, doodle)}
}

func TestBattle_WinIsRanked(t *testing.T) {
	ts := NewTestServer(t)
	f := newFighter(t, ts, "winner")

	view := ts.StartBattle(t, f.token, f.monsterID)
	require.Equal(t, "in_progress", view.JSON["outcome"])
	require.Len(t, view.JSON["moves"], 3)
	id := view.ID("battle")

	// The player cannot fall and the opponent drops at the first hit.
	ts.SetHealth(t, id, 100000, 1)

	outcome := "in_progress"
	for turn := 1; outcome == "in_progress"; turn++ {
		require.LessOrEqual(t, turn, 100, "battle never ended")
		rep := ts.Move(t, f.token, id, 2)
		require.Equal(t, http.StatusOK, rep.Status)
		assert.EqualValues(t, turn, rep.Obj("turn")["turn"])
		outcome = rep.JSON["outcome"].(string)
	}
	require.Equal(t, "opponent_defeated", outcome)
	assert.Equal(t, http.StatusConflict, ts.Move(t, f.token, id, 0).Status, "finished battles refuse moves")

	final := ts.Call(t, http.MethodGet, fmt.Sprintf("/api/battles/%d", id), f.token, nil)
	require.Equal(t, http.StatusOK, final.Status)
	assert.Equal(t, "player", final.Obj("battle")["winner"])
	assert.Equal(t, "opponent_defeated", final.JSON["outcome"])

	board := ts.Call(t, http.MethodGet, "/api/ranking/wins", "", nil)
	require.Equal(t, http.StatusOK, board.Status)
	assert.Equal(t, "cache", board.JSON["source"])
	entries := board.JSON["ranking"].([]interface{})
	require.Len(t, entries, 1)
	top := entries[0].(map[string]interface{})
	assert.EqualValues(t, f.accountID, top["account_id"])
	assert.EqualValues(t, 1, top["wins"])

	metrics := ts.Admin(t, http.MethodGet, "/api/admin/metrics", nil)
	require.Equal(t, http.StatusOK, metrics.Status)
	assert.EqualValues(t, 1, metrics.JSON["battles"])
	assert.EqualValues(t, 0, metrics.JSON["active_battles"])
}

func TestBattle_OwnershipAndCard(t *testing.T) {
	ts := NewTestServer(t)
	owner := newFighter(t, ts, "owner")
	intruder := newFighter(t, ts, "intruder")
	id := ts.StartBattle(t, owner.token, owner.monsterID).ID("battle")

	assert.Equal(t, http.StatusNotFound, ts.Call(t, http.MethodGet, fmt.Sprintf("/api/battles/%d", id), intruder.token, nil).Status)
	assert.Equal(t, http.StatusNotFound, ts.Move(t, intruder.token, id, 0).Status)
	assert.Equal(t, http.StatusNotFound,
		ts.Call(t, http.MethodPost, "/api/battles", intruder.token, map[string]int64{"monster_id": owner.monsterID}).Status,
		"cannot fight with someone else's monster")

	card := ts.Call(t, http.MethodGet, fmt.Sprintf("/api/battles/%d/card.png", id), owner.token, nil)
	require.Equal(t, http.StatusOK, card.Status)
	assert.Equal(t, "image/png", card.Header.Get("Content-Type"))
}

func TestBattle_SocketAndRESTShareState(t *testing.T) {
	ts := NewTestServer(t)
	f := newFighter(t, ts, "socket")
	id := ts.StartBattle(t, f.token, f.monsterID).ID("battle")
	ts.SetHealth(t, id, 5000, 5000)

	sock := ts.Socket(t, id, f.token)
	snap := sock.next()
	require.Equal(t, "snapshot", snap.Type)
	assert.Equal(t, "in_progress", snap.Payload["outcome"])

	sock.send("move", map[string]interface{}{"slot": 1})
	ack := sock.await("move_ack", nil)
	assert.EqualValues(t, 1, ack.Payload["turn"])

	view := ts.Call(t, http.MethodGet, fmt.Sprintf("/api/battles/%d", id), f.token, nil)
	require.Equal(t, http.StatusOK, view.Status)
	assert.EqualValues(t, 1, view.Obj("battle")["turn"])

	require.Equal(t, http.StatusOK, ts.Move(t, f.token, id, 0).Status)
	sock.await("turn_resolved", func(p Packet) bool { return p.Payload["turn"] == float64(2) })
}

func TestBattle_EventStream(t *testing.T) {
	ts := NewTestServer(t)
	f := newFighter(t, ts, "stream")
	id := ts.StartBattle(t, f.token, f.monsterID).ID("battle")
	ts.SetHealth(t, id, 5000, 5000)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/sse/battles/%d?token=%s", ts.URL, id, f.token), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream"))

	events := make(chan string, 16)
	go func() {
		defer close(events)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if name, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
				events <- name
			}
		}
	}()
	next := func() string {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "stream closed")
			return ev
		case <-ctx.Done():
			t.Fatal("no event before deadline")
			return ""
		}
	}

	require.Equal(t, "snapshot", next())
	require.Equal(t, http.StatusOK, ts.Move(t, f.token, id, 0).Status)
	assert.Equal(t, "turn_resolved", next())

	ann := ts.Admin(t, http.MethodPost, "/api/admin/announce", map[string]string{"message": "arena closes soon"})
	require.Equal(t, http.StatusOK, ann.Status)
	assert.Equal(t, "announce", next())
}
