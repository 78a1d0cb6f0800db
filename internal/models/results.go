package models

// Color 玩家颜色
type Color struct {
	ID      int64  `json:"id"`
	HexCode string `json:"hex_code"`
}

// PlayerResult 结算页玩家信息
type PlayerResult struct {
	ID    int64    `json:"id"`
	Name  string   `json:"name"`
	Order int      `json:"order"`
	Theme ThemeRef `json:"theme"`
	Color Color    `json:"color"`
}

// TurnScore 每个完整轮次的分数
type TurnScore struct {
	TurnNumber int    `json:"turn_number"`
	Scores     IntMap `json:"scores"`
	Delta      IntMap `json:"delta"`
}

// JokerImpact 道具使用的影响
type JokerImpact struct {
	UsageID             int64  `json:"usage_id"`
	TurnNumber          int    `json:"turn_number"`
	RoundID             int64  `json:"round_id"`
	RoundNumber         int    `json:"round_number"`
	UsingPlayerID       int64  `json:"using_player_id"`
	JokerInGameID       int64  `json:"joker_in_game_id"`
	JokerID             int64  `json:"joker_id"`
	JokerName           string `json:"joker_name"`
	TargetPlayerID      *int64 `json:"target_player_id,omitempty"`
	TargetGridID        *int64 `json:"target_grid_id,omitempty"`
	PointsDeltaByPlayer IntMap `json:"points_delta_by_player"`
}

// BonusRankingItem 加成排名
type BonusRankingItem struct {
	Rank     int   `json:"rank"`
	PlayerID int64 `json:"player_id"`
	Value    int64 `json:"value"`
}

// BonusComputedEffect 加成计算结果
type BonusComputedEffect struct {
	Key                 string             `json:"key"`
	MetricByPlayer      IntMap             `json:"metric_by_player"`
	Ranking             []BonusRankingItem `json:"ranking"`
	PointsDeltaByPlayer IntMap             `json:"points_delta_by_player"`
}

// BonusEffect 对局中加成的效果
type BonusEffect struct {
	BonusInGameID       int64                `json:"bonus_in_game_id"`
	Bonus               Bonus                `json:"bonus"`
	Effect              *BonusComputedEffect `json:"effect,omitempty"`
	PointsDeltaByPlayer IntMap               `json:"points_delta_by_player"`
}

// GameResults 对局结算，仅透传不做计算
type GameResults struct {
	Game            GameMeta       `json:"game"`
	Players         []PlayerResult `json:"players"`
	Scores          IntMap         `json:"scores"`
	ScoresWithBonus IntMap         `json:"scores_with_bonus"`
	TurnScores      []TurnScore    `json:"turn_scores"`
	JokersImpacts   []JokerImpact  `json:"jokers_impacts"`
	Bonus           []BonusEffect  `json:"bonus"`
}
