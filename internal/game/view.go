package game

import (
	"fmt"
	"strconv"
	"time"

	"github.com/wfunc/banquiz-board/internal/errors"
	"github.com/wfunc/banquiz-board/internal/models"
)

// 界面文案
const (
	loadingText      = "Chargement…"
	noTurnLabel      = "Tour —"
	processingAnswer = "Envoi de la réponse…"
	processingJoker  = "Utilisation du joker…"
)

// ViewError 界面内联错误
type ViewError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Media 题目或答案的媒体地址
type Media struct {
	ImageURL *string `json:"image_url,omitempty"`
	AudioURL *string `json:"audio_url,omitempty"`
	VideoURL *string `json:"video_url,omitempty"`
}

// QuestionView 题目展示
type QuestionView struct {
	Loading       bool   `json:"loading"`
	QuestionID    int64  `json:"question_id"`
	Points        int    `json:"points"`
	Theme         string `json:"theme"`
	Question      string `json:"question"`
	Answer        string `json:"answer"`
	QuestionMedia *Media `json:"question_media,omitempty"`
	AnswerMedia   *Media `json:"answer_media,omitempty"`
	Error         string `json:"error,omitempty"`
}

// View 发布给前端的派生视图
type View struct {
	SessionID string        `json:"session_id"`
	GameURL   string        `json:"game_url"`
	State     SelectionKind `json:"state"`
	Phase     Phase         `json:"phase,omitempty"`

	JokerInGameID  *int64 `json:"joker_in_game_id,omitempty"`
	JokerName      string `json:"joker_name,omitempty"`
	TargetGridID   *int64 `json:"target_grid_id,omitempty"`
	TargetPlayerID *int64 `json:"target_player_id,omitempty"`

	InputDisabled         bool `json:"input_disabled"`
	GridInteractive       bool `json:"grid_interactive"`
	ScoreboardInteractive bool `json:"scoreboard_interactive"`
	JokersInteractive     bool `json:"jokers_interactive"`
	TargetingGrid         bool `json:"targeting_grid"`
	TargetingPlayer       bool `json:"targeting_player"`

	Hint          string     `json:"hint,omitempty"`
	HoverGridID   *int64     `json:"hover_grid_id,omitempty"`
	HoverPlayerID *int64     `json:"hover_player_id,omitempty"`
	Processing    string     `json:"processing,omitempty"`
	LastError     *ViewError `json:"last_error,omitempty"`

	SelectedCell *models.GridCell `json:"selected_cell,omitempty"`
	Question     *QuestionView    `json:"question,omitempty"`
	LegalCells   []Position       `json:"legal_cells,omitempty"`
	TurnLabel    string           `json:"turn_label"`
	PlayerColors map[string]string `json:"player_colors,omitempty"`

	Snapshot  *models.GameSnapshot `json:"snapshot,omitempty"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// viewInput 构建视图所需的控制器状态
type viewInput struct {
	sessionID   string
	gameURL     string
	selection   Selection
	busy        bool
	processing  string
	lastError   *ViewError
	hoverGrid   *int64
	hoverPlayer *int64
	question    *models.Question
	questionErr string
	snapshot    *models.GameSnapshot
	colors      []models.Color
	updatedAt   time.Time
}

// buildView 由控制器状态派生视图（纯函数）
func buildView(in viewInput) View {
	sel := in.selection
	if sel.Kind == "" {
		sel = Idle()
	}

	v := View{
		SessionID:  in.sessionID,
		GameURL:    in.gameURL,
		State:      sel.Kind,
		Phase:      sel.Phase(),
		Processing: in.processing,
		LastError:  in.lastError,
		Snapshot:   in.snapshot,
		TurnLabel:  turnLabel(in.snapshot),
		UpdatedAt:  in.updatedAt,
	}

	v.InputDisabled = in.busy || !hasTurn(in.snapshot) || in.snapshot.Game.Finished

	switch sel.Kind {
	case SelectionIdle:
		v.GridInteractive = !v.InputDisabled
		v.ScoreboardInteractive = !v.InputDisabled
		v.JokersInteractive = !v.InputDisabled
		v.LegalCells = SortedPositions(CurrentLegalMoves(in.snapshot))
	case SelectionViewingQuestion:
		v.SelectedCell = sel.Cell
		v.Question = questionView(sel.Cell, in.question, in.questionErr)
	case SelectionTargetingJoker:
		t := sel.Joker
		id := t.JokerInGameID
		v.JokerInGameID = &id
		v.JokerName = t.JokerName
		v.TargetGridID = t.TargetGridID
		v.TargetPlayerID = t.TargetPlayerID
		v.TargetingGrid = t.Phase == PhasePickGrid
		v.TargetingPlayer = t.Phase == PhasePickPlayer
		v.GridInteractive = !v.InputDisabled && v.TargetingGrid
		v.ScoreboardInteractive = !v.InputDisabled && v.TargetingPlayer
		v.JokersInteractive = !v.InputDisabled
		v.Hint = jokerHint(t)
		if v.TargetingGrid {
			v.HoverGridID = in.hoverGrid
		}
		if v.TargetingPlayer {
			v.HoverPlayerID = in.hoverPlayer
		}
	}

	v.PlayerColors = playerColors(in.snapshot, in.colors)
	return v
}

// turnLabel 回合标题
func turnLabel(snap *models.GameSnapshot) string {
	if !hasTurn(snap) {
		return noTurnLabel
	}
	return "Tour de " + snap.CurrentTurn.Player.Name
}

// jokerHint 目标选择提示
func jokerHint(t *JokerTargeting) string {
	switch t.Phase {
	case PhasePickGrid:
		if t.RequiresPlayer {
			return fmt.Sprintf("Joker %q : clique sur une case de la grille, puis sur un joueur.", t.JokerName)
		}
		return fmt.Sprintf("Joker %q : clique sur une case de la grille.", t.JokerName)
	case PhasePickPlayer:
		return fmt.Sprintf("Joker %q : clique sur un joueur.", t.JokerName)
	}
	return ""
}

// questionView 题目内容未加载时显示占位
func questionView(cell *models.GridCell, q *models.Question, loadErr string) *QuestionView {
	if cell == nil {
		return nil
	}

	qv := &QuestionView{
		QuestionID: cell.Question.ID,
		Points:     cell.Question.Points,
		Theme:      cell.Question.Theme.Name,
	}
	if q == nil || q.ID != cell.Question.ID {
		qv.Loading = loadErr == ""
		qv.Question = loadingText
		qv.Error = loadErr
		return qv
	}

	qv.Question = q.Question
	qv.Answer = q.Answer
	qv.QuestionMedia = &Media{
		ImageURL: q.QuestionImageSignedURL,
		AudioURL: q.QuestionAudioSignedURL,
		VideoURL: q.QuestionVideoSignedURL,
	}
	qv.AnswerMedia = &Media{
		ImageURL: q.AnswerImageSignedURL,
		AudioURL: q.AnswerAudioSignedURL,
		VideoURL: q.AnswerVideoSignedURL,
	}
	return qv
}

// playerColors 玩家ID到颜色的映射
func playerColors(snap *models.GameSnapshot, colors []models.Color) map[string]string {
	if snap == nil || len(colors) == 0 {
		return nil
	}
	byID := make(map[int64]string, len(colors))
	for _, c := range colors {
		byID[c.ID] = c.HexCode
	}
	out := make(map[string]string, len(snap.Players))
	for _, p := range snap.Players {
		if hex, ok := byID[p.ColorID]; ok {
			out[strconv.FormatInt(p.ID, 10)] = hex
		}
	}
	return out
}

// toViewError 将错误转换为内联错误
func toViewError(err error) *ViewError {
	if err == nil {
		return nil
	}
	appErr := errors.As(err)
	return &ViewError{
		Code:    int(appErr.Code),
		Message: appErr.Message,
		Details: appErr.Details,
	}
}
