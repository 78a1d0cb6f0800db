package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wfunc/banquiz-board/internal/errors"
	"github.com/wfunc/banquiz-board/internal/models"
	"go.uber.org/zap"
)

// 忽略原因
const (
	reasonNoTurn           = "no_active_turn"
	reasonUnknownTarget    = "unknown_target"
	reasonAnswered         = "cell_answered"
	reasonIllegalMove      = "illegal_pawn_move"
	reasonJokerUnavailable = "joker_unavailable"
	reasonOtherJoker       = "other_joker_targeting"
	reasonWrongPhase       = "wrong_phase"
	reasonNoTransition     = "no_transition"
)

// reduceFunc 单条转换规则
type reduceFunc func(sel Selection, ev Event, snap *models.GameSnapshot) Transition

// transitions 转换规则表（状态:事件）
var transitions = map[string]reduceFunc{}

func init() {
	add := func(kind SelectionKind, event EventType, fn reduceFunc) {
		transitions[transitionKey(kind, event)] = fn
	}

	// 空闲
	add(SelectionIdle, EventClickCell, idleClickCell)
	add(SelectionIdle, EventClickJoker, clickJoker)

	// 查看题目
	add(SelectionViewingQuestion, EventSubmitAnswer, submitAnswer)
	add(SelectionViewingQuestion, EventCloseQuestion, toIdle)

	// 道具目标选择
	add(SelectionTargetingJoker, EventClickJoker, clickJoker)
	add(SelectionTargetingJoker, EventClickCell, targetGrid)
	add(SelectionTargetingJoker, EventClickPlayer, targetPlayer)

	// 任何状态都可以取消
	for _, kind := range []SelectionKind{SelectionIdle, SelectionViewingQuestion, SelectionTargetingJoker} {
		add(kind, EventCancel, toIdle)
	}
}

// transitionKey 生成转换键
func transitionKey(kind SelectionKind, event EventType) string {
	return fmt.Sprintf("%s:%s", kind, event)
}

// Reduce 纯函数：根据当前选择、事件和快照计算下一个选择及副作用
func Reduce(sel Selection, ev Event, snap *models.GameSnapshot) Transition {
	kind := sel.Kind
	if kind == "" {
		kind = SelectionIdle
	}

	fn, ok := transitions[transitionKey(kind, ev.Type)]
	if !ok {
		if ev.Type == EventSubmitAnswer {
			return rejected(sel, errors.New(errors.ErrNoSelectedCell))
		}
		return ignored(sel, reasonNoTransition)
	}
	return fn(sel, ev, snap)
}

func ignored(sel Selection, reason string) Transition {
	return Transition{Next: sel, Reason: reason}
}

func rejected(sel Selection, err error) Transition {
	return Transition{Next: sel, Reason: reasonNoTransition, Err: err}
}

func toIdle(sel Selection, ev Event, snap *models.GameSnapshot) Transition {
	return Transition{Next: Idle(), Handled: true}
}

func hasTurn(snap *models.GameSnapshot) bool {
	return snap != nil && snap.CurrentTurn != nil
}

// idleClickCell 空闲时点击格子：未作答且可走则打开题目
func idleClickCell(sel Selection, ev Event, snap *models.GameSnapshot) Transition {
	if !hasTurn(snap) {
		return ignored(sel, reasonNoTurn)
	}
	cell, ok := snap.CellByGridID(ev.GridID)
	if !ok {
		return ignored(sel, reasonUnknownTarget)
	}
	if cell.IsAnswered() {
		return ignored(sel, reasonAnswered)
	}
	if !IsCellPlayable(snap, cell) {
		return ignored(sel, reasonIllegalMove)
	}

	return Transition{
		Next:    ViewingQuestion(cell),
		Handled: true,
		Effects: []Effect{{Type: EffectLoadQuestion, QuestionID: cell.Question.ID, Cell: &cell}},
	}
}

// clickJoker 点击道具按钮
func clickJoker(sel Selection, ev Event, snap *models.GameSnapshot) Transition {
	if !hasTurn(snap) {
		return ignored(sel, reasonNoTurn)
	}
	joker, ok := snap.CurrentJoker(ev.JokerInGameID)
	if !ok || !joker.Available {
		return ignored(sel, reasonJokerUnavailable)
	}

	if sel.Kind == SelectionTargetingJoker && sel.Joker != nil {
		// 再次点击同一个道具即取消
		if sel.Joker.JokerInGameID == joker.JokerInGameID {
			return Transition{Next: Idle(), Handled: true}
		}
		return ignored(sel, reasonOtherJoker)
	}

	t := JokerTargeting{
		JokerInGameID:  joker.JokerInGameID,
		JokerID:        joker.Joker.ID,
		JokerName:      joker.Joker.Name,
		RequiresGrid:   joker.Joker.RequiresTargetGrid,
		RequiresPlayer: joker.Joker.RequiresTargetPlayer,
	}

	phase, done := nextPhase(t)
	if done {
		// 不需要目标，直接使用
		return Transition{
			Next:    Idle(),
			Handled: true,
			Effects: []Effect{useJokerEffect(t, snap.CurrentTurn.RoundID)},
		}
	}

	t.Phase = phase
	return Transition{Next: Targeting(t), Handled: true}
}

// targetGrid 选择格子目标
func targetGrid(sel Selection, ev Event, snap *models.GameSnapshot) Transition {
	if sel.Phase() != PhasePickGrid {
		return ignored(sel, reasonWrongPhase)
	}
	if !hasTurn(snap) {
		return ignored(sel, reasonNoTurn)
	}
	cell, ok := snap.CellByGridID(ev.GridID)
	if !ok {
		return ignored(sel, reasonUnknownTarget)
	}
	if cell.IsAnswered() {
		return ignored(sel, reasonAnswered)
	}

	t := *sel.Joker
	t.TargetGridID = &cell.GridID
	return advance(t, snap)
}

// targetPlayer 选择玩家目标
func targetPlayer(sel Selection, ev Event, snap *models.GameSnapshot) Transition {
	if sel.Phase() != PhasePickPlayer {
		return ignored(sel, reasonWrongPhase)
	}
	if !hasTurn(snap) {
		return ignored(sel, reasonNoTurn)
	}
	player, ok := snap.PlayerByID(ev.PlayerID)
	if !ok {
		return ignored(sel, reasonUnknownTarget)
	}

	t := *sel.Joker
	t.TargetPlayerID = &player.ID
	return advance(t, snap)
}

// advance 记录目标后进入下一阶段或完成
func advance(t JokerTargeting, snap *models.GameSnapshot) Transition {
	phase, done := nextPhase(t)
	if done {
		return Transition{
			Next:    Idle(),
			Handled: true,
			Effects: []Effect{useJokerEffect(t, snap.CurrentTurn.RoundID)},
		}
	}
	t.Phase = phase
	return Transition{Next: Targeting(t), Handled: true}
}

// nextPhase 先格子后玩家
func nextPhase(t JokerTargeting) (Phase, bool) {
	if t.RequiresGrid && t.TargetGridID == nil {
		return PhasePickGrid, false
	}
	if t.RequiresPlayer && t.TargetPlayerID == nil {
		return PhasePickPlayer, false
	}
	return "", true
}

// useJokerEffect 只发送道具定义要求的目标
func useJokerEffect(t JokerTargeting, roundID int64) Effect {
	req := &models.JokerUseRequest{
		JokerInGameID: t.JokerInGameID,
		RoundID:       roundID,
	}
	if t.RequiresGrid && t.TargetGridID != nil {
		id := *t.TargetGridID
		req.TargetGridID = &id
	}
	if t.RequiresPlayer && t.TargetPlayerID != nil {
		id := *t.TargetPlayerID
		req.TargetPlayerID = &id
	}
	return Effect{Type: EffectUseJoker, Joker: req}
}

// submitAnswer 提交答案（放弃也是一次提交）
func submitAnswer(sel Selection, ev Event, snap *models.GameSnapshot) Transition {
	if sel.Cell == nil {
		return rejected(sel, errors.New(errors.ErrNoSelectedCell))
	}
	if !hasTurn(snap) {
		return rejected(sel, errors.New(errors.ErrNoActiveTurn))
	}

	req := &models.AnswerRequest{
		RoundID: snap.CurrentTurn.RoundID,
		GridID:  sel.Cell.GridID,
	}
	switch ev.Answer {
	case AnswerGood:
		req.CorrectAnswer = true
	case AnswerBad:
	case AnswerSkip:
		req.SkipAnswer = true
	default:
		return rejected(sel, errors.Newf(errors.ErrInvalidParam, "未知的答题结果: %q", ev.Answer))
	}

	cell := *sel.Cell
	return Transition{
		Next:    Idle(),
		Handled: true,
		Effects: []Effect{{Type: EffectSubmitAnswer, Answer: req, Cell: &cell}},
	}
}

// SelectionPersister 选择状态持久化接口
type SelectionPersister interface {
	Save(ctx context.Context, sessionID string, data *SelectionData) error
	Load(ctx context.Context, sessionID string) (*SelectionData, error)
	Delete(ctx context.Context, sessionID string) error
}

// SelectionData 选择状态数据（用于持久化，悬停与忙碌标记不持久化）
type SelectionData struct {
	SessionID  string    `json:"session_id"`
	GameURL    string    `json:"game_url"`
	Owner      string    `json:"owner,omitempty"`
	Selection  Selection `json:"selection"`
	LastUpdate time.Time `json:"last_update"`
}

// StateMachine 看板选择状态机
type StateMachine struct {
	mu         sync.RWMutex
	sessionID  string
	gameURL    string
	owner      string
	selection  Selection
	lastUpdate time.Time
	logger     *zap.Logger

	// 回调函数
	onStateChange func(from, to Selection)

	// 持久化接口
	persister SelectionPersister
}

// NewStateMachine 创建新的状态机
func NewStateMachine(sessionID, gameURL string, logger *zap.Logger, persister SelectionPersister) *StateMachine {
	return &StateMachine{
		sessionID:  sessionID,
		gameURL:    gameURL,
		selection:  Idle(),
		lastUpdate: time.Now(),
		logger:     logger,
		persister:  persister,
	}
}

// Apply 对当前选择执行一次转换
func (sm *StateMachine) Apply(ctx context.Context, ev Event, snap *models.GameSnapshot) Transition {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	from := sm.selection
	t := Reduce(from, ev, snap)
	if !t.Handled {
		sm.logger.Debug("事件被忽略",
			zap.String("session_id", sm.sessionID),
			zap.String("event", string(ev.Type)),
			zap.String("state", string(from.Kind)),
			zap.String("reason", t.Reason))
		return t
	}

	sm.setLocked(ctx, t.Next)

	sm.logger.Info("状态转换",
		zap.String("session_id", sm.sessionID),
		zap.String("game_url", sm.gameURL),
		zap.String("event", string(ev.Type)),
		zap.String("from", string(from.Kind)),
		zap.String("to", string(t.Next.Kind)),
		zap.Int("effects", len(t.Effects)))

	if sm.onStateChange != nil {
		sm.onStateChange(from, t.Next)
	}
	return t
}

// Set 直接设置选择（用于结算后重新打开题目与恢复）
func (sm *StateMachine) Set(ctx context.Context, sel Selection) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.setLocked(ctx, sel)
}

func (sm *StateMachine) setLocked(ctx context.Context, sel Selection) {
	sm.selection = sel
	sm.lastUpdate = time.Now()

	// 持久化状态
	if sm.persister != nil {
		if err := sm.persister.Save(ctx, sm.sessionID, sm.toData()); err != nil {
			sm.logger.Error("持久化状态失败",
				zap.Error(err),
				zap.String("session_id", sm.sessionID))
		}
	}
}

// GetSelection 获取当前选择
func (sm *StateMachine) GetSelection() Selection {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.selection
}

// LastUpdate 最后更新时间
func (sm *StateMachine) LastUpdate() time.Time {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.lastUpdate
}

// OnStateChange 设置状态变更回调
func (sm *StateMachine) OnStateChange(fn func(from, to Selection)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.onStateChange = fn
}

// toData 转换为持久化数据
func (sm *StateMachine) toData() *SelectionData {
	return &SelectionData{
		SessionID:  sm.sessionID,
		GameURL:    sm.gameURL,
		Owner:      sm.owner,
		Selection:  sm.selection,
		LastUpdate: sm.lastUpdate,
	}
}

// Snapshot 当前持久化数据
func (sm *StateMachine) Snapshot() *SelectionData {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.toData()
}

// LoadFromData 从持久化数据加载
func (sm *StateMachine) LoadFromData(data *SelectionData) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.sessionID = data.SessionID
	sm.gameURL = data.GameURL
	sm.selection = data.Selection
	if sm.selection.Kind == "" {
		sm.selection = Idle()
	}
	sm.lastUpdate = data.LastUpdate
}

// Reset 重置状态机
func (sm *StateMachine) Reset(ctx context.Context) {
	sm.Set(ctx, Idle())
}
