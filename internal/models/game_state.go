package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// GameMeta 对局元信息
type GameMeta struct {
	ID            int64  `json:"id"`
	URL           string `json:"url"`
	Seed          int64  `json:"seed"`
	RowsNumber    int    `json:"rows_number"`
	ColumnsNumber int    `json:"columns_number"`
	Finished      bool   `json:"finished"`
	OwnerID       int64  `json:"owner_id"`
	WithPawns     bool   `json:"with_pawns"`
}

// Player 对局中的玩家
type Player struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Order   int    `json:"order"`
	ThemeID int64  `json:"theme_id"`
	ColorID int64  `json:"color_id"`
	PawnRow *int   `json:"pawn_row"`
	PawnCol *int   `json:"pawn_col"`
}

// HasPawn 棋子是否已放置
func (p Player) HasPawn() bool {
	return p.PawnRow != nil && p.PawnCol != nil
}

// ThemeRef 主题引用
type ThemeRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// QuestionInGrid 格子内嵌的题目
type QuestionInGrid struct {
	ID     int64    `json:"id"`
	Points int      `json:"points"`
	Theme  ThemeRef `json:"theme"`
}

// GridCell 棋盘格子
type GridCell struct {
	GridID        int64          `json:"grid_id"`
	Row           int            `json:"row"`
	Column        int            `json:"column"`
	RoundID       *int64         `json:"round_id"`
	PlayerID      *int64         `json:"player_id"`
	CorrectAnswer bool           `json:"correct_answer"`
	SkipAnswer    bool           `json:"skip_answer"`
	Question      QuestionInGrid `json:"question"`
}

// IsAnswered 已作答的格子不可再被选择
func (c GridCell) IsAnswered() bool {
	return c.CorrectAnswer || c.SkipAnswer || c.RoundID != nil
}

// TurnPlayer 当前回合玩家
type TurnPlayer struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Order   int    `json:"order"`
	ThemeID int64  `json:"theme_id"`
}

// CurrentTurn 当前回合
type CurrentTurn struct {
	RoundID     int64      `json:"round_id"`
	RoundNumber int        `json:"round_number"`
	Player      TurnPlayer `json:"player"`
}

// Joker 道具定义
type Joker struct {
	ID                   int64  `json:"id"`
	Name                 string `json:"name"`
	Description          string `json:"description"`
	RequiresTargetPlayer bool   `json:"requires_target_player"`
	RequiresTargetGrid   bool   `json:"requires_target_grid"`
}

// JokerAvailability 对局中某个玩家的道具
type JokerAvailability struct {
	JokerInGameID int64 `json:"joker_in_game_id"`
	Joker         Joker `json:"joker"`
	Available     bool  `json:"available"`
}

// Bonus 加成定义
type Bonus struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// BonusInGame 对局中的加成
type BonusInGame struct {
	BonusInGameID int64 `json:"bonus_in_game_id"`
	Bonus         Bonus `json:"bonus"`
}

// LastRoundDelta 上一回合的分数变化
type LastRoundDelta struct {
	RoundID     int64  `json:"round_id"`
	RoundNumber int    `json:"round_number"`
	Delta       IntMap `json:"delta"`
}

// GameSnapshot 对局快照，每次拉取整体替换，不做局部修改
type GameSnapshot struct {
	Game                  GameMeta                       `json:"game"`
	Players               []Player                       `json:"players"`
	Grid                  []GridCell                     `json:"grid"`
	CurrentTurn           *CurrentTurn                   `json:"current_turn"`
	AvailableJokers       map[string][]JokerAvailability `json:"available_jokers"`
	Bonus                 []BonusInGame                  `json:"bonus"`
	Scores                IntMap                         `json:"scores"`
	LastRoundDelta        *LastRoundDelta                `json:"last_round_delta,omitempty"`
	MaxFullTurns          int                            `json:"max_full_turns"`
	CurrentFullTurnNumber int                            `json:"current_full_turn_number"`
}

// CellByGridID 按grid_id查找格子
func (s *GameSnapshot) CellByGridID(gridID int64) (GridCell, bool) {
	for _, c := range s.Grid {
		if c.GridID == gridID {
			return c, true
		}
	}
	return GridCell{}, false
}

// CellAt 按坐标查找格子
func (s *GameSnapshot) CellAt(row, col int) (GridCell, bool) {
	for _, c := range s.Grid {
		if c.Row == row && c.Column == col {
			return c, true
		}
	}
	return GridCell{}, false
}

// PlayerByID 按ID查找玩家
func (s *GameSnapshot) PlayerByID(id int64) (Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// JokersFor 返回玩家的道具列表
func (s *GameSnapshot) JokersFor(playerID int64) []JokerAvailability {
	if s.AvailableJokers == nil {
		return nil
	}
	return s.AvailableJokers[strconv.FormatInt(playerID, 10)]
}

// CurrentJoker 在当前回合玩家的道具中查找
func (s *GameSnapshot) CurrentJoker(jokerInGameID int64) (JokerAvailability, bool) {
	if s.CurrentTurn == nil {
		return JokerAvailability{}, false
	}
	for _, j := range s.JokersFor(s.CurrentTurn.Player.ID) {
		if j.JokerInGameID == jokerInGameID {
			return j, true
		}
	}
	return JokerAvailability{}, false
}

// IntMap 以字符串为键的整数映射，值兼容数字和数字字符串
type IntMap map[string]int64

// UnmarshalJSON 实现json.Unmarshaler
func (m *IntMap) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = nil
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(IntMap, len(raw))
	for k, v := range raw {
		var n json.Number
		if err := json.Unmarshal(v, &n); err != nil {
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("键 %s 的值不是整数: %s", k, string(v))
			}
			n = json.Number(s)
		}
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return fmt.Errorf("键 %s 的值不是整数: %s", k, string(v))
			}
			i = int64(f)
		}
		out[k] = i
	}
	*m = out
	return nil
}

// Get 按玩家ID取值
func (m IntMap) Get(playerID int64) int64 {
	return m[strconv.FormatInt(playerID, 10)]
}
