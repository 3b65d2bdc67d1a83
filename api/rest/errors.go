package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sketchmon/arena/game/arena"
	"go.uber.org/zap"
)

// arenaErrors maps battle sentinels to a status and a client-safe message.
var arenaErrors = []struct {
	err    error
	status int
	msg    string
}{
	{arena.ErrMonsterNotFound, http.StatusNotFound, "monster not found"},
	{arena.ErrBattleNotFound, http.StatusNotFound, "battle not found"},
	{arena.ErrMoveNotAllowed, http.StatusBadRequest, "move not available in this battle"},
	{arena.ErrMoveNotFound, http.StatusUnprocessableEntity, "move not found"},
	{arena.ErrInvalidCombatant, http.StatusUnprocessableEntity, "combatant has invalid stats"},
	{arena.ErrBattleOver, http.StatusConflict, "battle already finished"},
	{arena.ErrBattleConflict, http.StatusConflict, "battle changed, reload and retry"},
	{arena.ErrBattleBusy, http.StatusConflict, "turn in progress, please retry"},
	{arena.ErrTurnRejected, http.StatusForbidden, "turn rejected"},
}

// respondArenaError writes the mapped error. Unknown errors are logged and
// reported as 500.
func respondArenaError(c *gin.Context, logger *zap.Logger, err error) {
	for _, e := range arenaErrors {
		if errors.Is(err, e.err) {
			c.JSON(e.status, gin.H{"error": e.msg})
			return
		}
	}
	logger.Error("arena request failed", zap.String("path", c.FullPath()), zap.Error(err))
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// paramID parses a positive int64 path parameter.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
