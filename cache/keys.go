package cache

import "fmt"

// Key layout shared by every component that touches the cache.
const (
	// RankingWinsKey is the ZSet of account id → battles won.
	RankingWinsKey = "ranking:wins"
)

// SessionKey holds the account id for an issued JWT.
func SessionKey(token string) string { return "session:" + token }

// BattleLockKey serialises turn submissions for one battle.
func BattleLockKey(battleID int64) string { return fmt.Sprintf("battle:lock:%d", battleID) }

// BattleChannel is the pub/sub channel carrying a battle's events.
func BattleChannel(battleID int64) string { return fmt.Sprintf("battle:%d", battleID) }
