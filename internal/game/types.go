package game

import (
	"github.com/wfunc/banquiz-board/internal/models"
)

// SelectionKind 选择状态
type SelectionKind string

const (
	SelectionIdle            SelectionKind = "idle"             // 空闲，可选题或选道具
	SelectionViewingQuestion SelectionKind = "viewing_question" // 正在查看题目
	SelectionTargetingJoker  SelectionKind = "targeting_joker"  // 正在为道具选择目标
)

// Phase 道具目标选择阶段
type Phase string

const (
	PhasePickGrid   Phase = "pick_grid"
	PhasePickPlayer Phase = "pick_player"
)

// JokerTargeting 道具目标选择中的数据
type JokerTargeting struct {
	JokerInGameID  int64  `json:"joker_in_game_id"`
	JokerID        int64  `json:"joker_id"`
	JokerName      string `json:"joker_name"`
	RequiresGrid   bool   `json:"requires_grid"`
	RequiresPlayer bool   `json:"requires_player"`
	TargetGridID   *int64 `json:"target_grid_id,omitempty"`
	TargetPlayerID *int64 `json:"target_player_id,omitempty"`
	Phase          Phase  `json:"phase"`
}

// Selection 选择状态（只由状态机持有，快照永不修改）
type Selection struct {
	Kind  SelectionKind    `json:"kind"`
	Cell  *models.GridCell `json:"cell,omitempty"`
	Joker *JokerTargeting  `json:"joker,omitempty"`
}

// Idle 空闲状态
func Idle() Selection {
	return Selection{Kind: SelectionIdle}
}

// ViewingQuestion 查看题目状态
func ViewingQuestion(cell models.GridCell) Selection {
	return Selection{Kind: SelectionViewingQuestion, Cell: &cell}
}

// Targeting 道具目标选择状态
func Targeting(t JokerTargeting) Selection {
	return Selection{Kind: SelectionTargetingJoker, Joker: &t}
}

// IsIdle 是否空闲
func (s Selection) IsIdle() bool {
	return s.Kind == SelectionIdle || s.Kind == ""
}

// Phase 当前目标阶段（非目标选择状态时为空）
func (s Selection) Phase() Phase {
	if s.Kind != SelectionTargetingJoker || s.Joker == nil {
		return ""
	}
	return s.Joker.Phase
}

// EventType 输入事件类型
type EventType string

const (
	EventClickCell     EventType = "click_cell"
	EventClickPlayer   EventType = "click_player"
	EventClickJoker    EventType = "click_joker"
	EventCancel        EventType = "cancel"
	EventSubmitAnswer  EventType = "submit_answer"
	EventCloseQuestion EventType = "close_question"
)

// AnswerOutcome 答题结果
type AnswerOutcome string

const (
	AnswerGood AnswerOutcome = "good"
	AnswerBad  AnswerOutcome = "bad"
	AnswerSkip AnswerOutcome = "skip" // 放弃题目，同样会提交
)

// Event 指针输入事件
type Event struct {
	Type          EventType     `json:"type" binding:"required"`
	GridID        int64         `json:"grid_id,omitempty"`
	PlayerID      int64         `json:"player_id,omitempty"`
	JokerInGameID int64         `json:"joker_in_game_id,omitempty"`
	Answer        AnswerOutcome `json:"answer,omitempty"`
}

// EffectType 副作用类型
type EffectType string

const (
	EffectLoadQuestion EffectType = "load_question"
	EffectSubmitAnswer EffectType = "submit_answer"
	EffectUseJoker     EffectType = "use_joker"
)

// Effect 状态转换产生的副作用
type Effect struct {
	Type       EffectType              `json:"type"`
	QuestionID int64                   `json:"question_id,omitempty"`
	Cell       *models.GridCell        `json:"cell,omitempty"`
	Answer     *models.AnswerRequest   `json:"answer,omitempty"`
	Joker      *models.JokerUseRequest `json:"joker,omitempty"`
}

// IsMutation 是否为变更操作
func (e Effect) IsMutation() bool {
	return e.Type == EffectSubmitAnswer || e.Type == EffectUseJoker
}

// Transition 一次状态转换的结果
type Transition struct {
	Next    Selection
	Effects []Effect
	Handled bool   // false 表示事件被忽略
	Reason  string // 被忽略的原因
	Err     error
}

// Mutation 返回第一个变更副作用
func (t Transition) Mutation() (Effect, bool) {
	for _, e := range t.Effects {
		if e.IsMutation() {
			return e, true
		}
	}
	return Effect{}, false
}
