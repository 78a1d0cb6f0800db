package game

import (
	"sort"

	"github.com/wfunc/banquiz-board/internal/models"
)

// Position 棋盘坐标
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// 8个方向（横、竖、斜）
var directions = [8]Position{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// Board 快照的坐标索引
type Board struct {
	Rows  int
	Cols  int
	cells map[Position]models.GridCell
}

// NewBoard 按快照建立坐标索引
func NewBoard(snap *models.GameSnapshot) *Board {
	b := &Board{
		Rows:  snap.Game.RowsNumber,
		Cols:  snap.Game.ColumnsNumber,
		cells: make(map[Position]models.GridCell, len(snap.Grid)),
	}
	for _, c := range snap.Grid {
		b.cells[Position{Row: c.Row, Col: c.Column}] = c
	}
	return b
}

// Cell 取格子
func (b *Board) Cell(p Position) (models.GridCell, bool) {
	c, ok := b.cells[p]
	return c, ok
}

// InBounds 坐标是否在棋盘内
func (b *Board) InBounds(p Position) bool {
	return p.Row >= 0 && p.Row < b.Rows && p.Col >= 0 && p.Col < b.Cols
}

// IsBorder 是否为外圈格子
func (b *Board) IsBorder(p Position) bool {
	return p.Row == 0 || p.Row == b.Rows-1 || p.Col == 0 || p.Col == b.Cols-1
}

// free 格子存在且未作答
func (b *Board) free(p Position) bool {
	c, ok := b.cells[p]
	return ok && !c.IsAnswered()
}

// pawnPosition 玩家棋子位置
func pawnPosition(p models.Player) (Position, bool) {
	if !p.HasPawn() {
		return Position{}, false
	}
	return Position{Row: *p.PawnRow, Col: *p.PawnCol}, true
}

// LegalMoves 计算玩家本回合棋子可走的格子
//
// 未放置棋子时：所有未作答且没有其他棋子的外圈格子。
// 已放置棋子时：8个方向各取第一个未作答的格子；遇到其他棋子则该方向无落点。
func LegalMoves(snap *models.GameSnapshot, playerID int64) map[Position]bool {
	legal := make(map[Position]bool)
	if snap == nil {
		return legal
	}

	player, ok := snap.PlayerByID(playerID)
	if !ok {
		return legal
	}

	board := NewBoard(snap)
	occupied := make(map[Position]bool)
	for _, p := range snap.Players {
		if p.ID == playerID {
			continue
		}
		if pos, ok := pawnPosition(p); ok {
			occupied[pos] = true
		}
	}

	origin, placed := pawnPosition(player)
	if !placed {
		for r := 0; r < board.Rows; r++ {
			for c := 0; c < board.Cols; c++ {
				pos := Position{Row: r, Col: c}
				if board.IsBorder(pos) && board.free(pos) && !occupied[pos] {
					legal[pos] = true
				}
			}
		}
		return legal
	}

	for _, d := range directions {
		pos := Position{Row: origin.Row + d.Row, Col: origin.Col + d.Col}
		for board.InBounds(pos) {
			if occupied[pos] {
				break
			}
			if board.free(pos) {
				legal[pos] = true
				break
			}
			pos = Position{Row: pos.Row + d.Row, Col: pos.Col + d.Col}
		}
	}
	return legal
}

// SortedPositions 按行列排序
func SortedPositions(set map[Position]bool) []Position {
	out := make([]Position, 0, len(set))
	for p, ok := range set {
		if ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out
}

// CurrentLegalMoves 当前回合玩家的可走格子（未开启棋子或无回合时返回nil）
func CurrentLegalMoves(snap *models.GameSnapshot) map[Position]bool {
	if snap == nil || !snap.Game.WithPawns || snap.CurrentTurn == nil {
		return nil
	}
	return LegalMoves(snap, snap.CurrentTurn.Player.ID)
}

// IsCellPlayable 当前回合玩家能否选择该格子答题
func IsCellPlayable(snap *models.GameSnapshot, cell models.GridCell) bool {
	if cell.IsAnswered() {
		return false
	}
	if snap == nil || !snap.Game.WithPawns || snap.CurrentTurn == nil {
		return true
	}
	return LegalMoves(snap, snap.CurrentTurn.Player.ID)[Position{Row: cell.Row, Col: cell.Column}]
}
