package game

import (
	"context"
	"sync"
	"time"

	"github.com/wfunc/banquiz-board/internal/cache"
	"github.com/wfunc/banquiz-board/internal/errors"
	"github.com/wfunc/banquiz-board/internal/models"
	"go.uber.org/zap"
)

// ControllerConfig 控制器依赖
type ControllerConfig struct {
	SessionID  string
	GameURL    string
	Owner      string // 打开会话的调用方，随选择一起持久化
	Queries    *cache.Queries
	Dispatcher *Dispatcher
	Persister  SelectionPersister
	Logger     *zap.Logger
}

// Controller 单个看板会话的控制器
// 一次只允许一个变更请求在途，结算并重新拉取快照之后才解除忙碌
type Controller struct {
	sessionID  string
	gameURL    string
	queries    *cache.Queries
	dispatcher *Dispatcher
	sm         *StateMachine
	logger     *zap.Logger

	mu           sync.RWMutex
	busy         bool
	processing   string
	lastError    *ViewError
	hoverGrid    *int64
	hoverPlayer  *int64
	question     *models.Question
	questionErr  string
	snapshot     *models.GameSnapshot
	colors       []models.Color
	lastActivity time.Time

	subMu       sync.RWMutex
	subscribers map[uint64]func(View)
	nextSubID   uint64
}

// NewController 创建控制器
func NewController(cfg ControllerConfig) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sm := NewStateMachine(cfg.SessionID, cfg.GameURL, logger, cfg.Persister)
	sm.owner = cfg.Owner
	return &Controller{
		sessionID:    cfg.SessionID,
		gameURL:      cfg.GameURL,
		queries:      cfg.Queries,
		dispatcher:   cfg.Dispatcher,
		sm:           sm,
		logger:       logger,
		lastActivity: time.Now(),
		subscribers:  make(map[uint64]func(View)),
	}
}

// SessionID 会话ID
func (c *Controller) SessionID() string { return c.sessionID }

// GameURL 对局地址
func (c *Controller) GameURL() string { return c.gameURL }

// StateMachine 选择状态机
func (c *Controller) StateMachine() *StateMachine { return c.sm }

// Busy 是否有变更请求在途
func (c *Controller) Busy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.busy
}

// LastActivity 最后一次输入时间
func (c *Controller) LastActivity() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastActivity
}

// Load 拉取快照和颜色，颜色失败不影响看板
func (c *Controller) Load(ctx context.Context) (View, error) {
	snap, err := c.queries.State(ctx, c.gameURL)
	if err != nil {
		return c.currentView(), err
	}

	colors, cerr := c.queries.Colors(ctx)
	if cerr != nil {
		c.logger.Warn("加载颜色失败", zap.Error(cerr), zap.String("session_id", c.sessionID))
	}

	c.mu.Lock()
	c.snapshot = snap
	if cerr == nil {
		c.colors = colors
	}
	c.mu.Unlock()

	// 恢复到查看题目时补拉题目内容
	if sel := c.sm.GetSelection(); sel.Kind == SelectionViewingQuestion && sel.Cell != nil {
		c.loadQuestion(ctx, *sel.Cell)
	}

	view := c.currentView()
	c.publish(view)
	return view, nil
}

// View 读取最新快照并返回视图
func (c *Controller) View(ctx context.Context) (View, error) {
	snap, err := c.queries.State(ctx, c.gameURL)
	if err != nil {
		return c.currentView(), err
	}
	c.setSnapshot(snap)
	return c.currentView(), nil
}

// Handle 处理一次指针输入
func (c *Controller) Handle(ctx context.Context, ev Event) (View, error) {
	c.touch()
	if c.Busy() {
		return c.currentView(), errors.New(errors.ErrBusy)
	}

	snap, err := c.queries.State(ctx, c.gameURL)
	if err != nil {
		return c.currentView(), err
	}
	c.setSnapshot(snap)

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return c.currentView(), errors.New(errors.ErrBusy)
	}

	t := c.sm.Apply(ctx, ev, snap)
	if t.Err != nil {
		c.lastError = toViewError(t.Err)
		c.mu.Unlock()
		view := c.currentView()
		c.publish(view)
		return view, t.Err
	}
	if !t.Handled {
		c.mu.Unlock()
		return c.currentView(), nil
	}

	c.lastError = nil
	c.syncHoverLocked(t.Next)
	if t.Next.Kind == SelectionViewingQuestion {
		c.question = nil
		c.questionErr = ""
	}

	mutation, hasMutation := t.Mutation()
	if hasMutation {
		c.busy = true
		c.processing = processingLabel(mutation)
	}
	c.mu.Unlock()

	c.publish(c.currentView())

	for _, e := range t.Effects {
		if e.Type == EffectLoadQuestion && e.Cell != nil {
			c.loadQuestion(ctx, *e.Cell)
		}
	}

	if !hasMutation {
		return c.currentView(), nil
	}

	// 请求一旦发出就不会中止
	derr := c.dispatch(context.WithoutCancel(ctx), mutation)
	return c.currentView(), derr
}

// Hover 悬停只在对应的目标阶段生效
func (c *Controller) Hover(gridID, playerID *int64) View {
	c.mu.Lock()
	switch c.sm.GetSelection().Phase() {
	case PhasePickGrid:
		c.hoverGrid = gridID
		c.hoverPlayer = nil
	case PhasePickPlayer:
		c.hoverGrid = nil
		c.hoverPlayer = playerID
	default:
		c.hoverGrid = nil
		c.hoverPlayer = nil
	}
	c.mu.Unlock()

	view := c.currentView()
	c.publish(view)
	return view
}

// Subscribe 订阅视图更新，返回取消函数
func (c *Controller) Subscribe(fn func(View)) func() {
	c.subMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subscribers, id)
		c.subMu.Unlock()
	}
}

// dispatch 发送变更并结算
func (c *Controller) dispatch(ctx context.Context, e Effect) error {
	var err error
	switch e.Type {
	case EffectSubmitAnswer:
		_, err = c.dispatcher.SubmitAnswer(ctx, c.sessionID, c.gameURL, *e.Answer)
	case EffectUseJoker:
		_, err = c.dispatcher.UseJoker(ctx, c.sessionID, c.gameURL, *e.Joker)
	}

	// 派发器已失效快照，这里重新拉取
	snap, ferr := c.queries.State(ctx, c.gameURL)

	c.mu.Lock()
	if ferr == nil {
		c.snapshot = snap
	}
	if err != nil {
		c.lastError = toViewError(err)
		if e.Type == EffectSubmitAnswer && e.Cell != nil && isTransportFailure(err) && c.sm.GetSelection().IsIdle() {
			// 请求未送达，重新打开题目以便重试
			c.sm.Set(ctx, ViewingQuestion(*e.Cell))
		}
	} else if ferr != nil {
		c.lastError = toViewError(ferr)
	}
	c.busy = false
	c.processing = ""
	c.mu.Unlock()

	c.publish(c.currentView())

	if err != nil {
		c.logger.Warn("变更请求失败",
			zap.String("session_id", c.sessionID),
			zap.String("effect", string(e.Type)),
			zap.Error(err))
	}
	return err
}

// loadQuestion 拉取题目内容，期间选择已变化则丢弃
func (c *Controller) loadQuestion(ctx context.Context, cell models.GridCell) {
	q, err := c.queries.Question(ctx, cell.Question.ID)

	c.mu.Lock()
	sel := c.sm.GetSelection()
	if sel.Kind != SelectionViewingQuestion || sel.Cell == nil || sel.Cell.GridID != cell.GridID {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.question = nil
		c.questionErr = errors.As(err).Message
		c.logger.Warn("加载题目失败",
			zap.String("session_id", c.sessionID),
			zap.Int64("question_id", cell.Question.ID),
			zap.Error(err))
	} else {
		c.question = q
		c.questionErr = ""
	}
	c.mu.Unlock()

	c.publish(c.currentView())
}

// syncHoverLocked 离开目标阶段时清除悬停
func (c *Controller) syncHoverLocked(next Selection) {
	switch next.Phase() {
	case PhasePickGrid:
		c.hoverPlayer = nil
	case PhasePickPlayer:
		c.hoverGrid = nil
	default:
		c.hoverGrid = nil
		c.hoverPlayer = nil
	}
}

func (c *Controller) setSnapshot(snap *models.GameSnapshot) {
	c.mu.Lock()
	c.snapshot = snap
	c.mu.Unlock()
}

func (c *Controller) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// currentView 由当前状态构建视图
func (c *Controller) currentView() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return buildView(viewInput{
		sessionID:   c.sessionID,
		gameURL:     c.gameURL,
		selection:   c.sm.GetSelection(),
		busy:        c.busy,
		processing:  c.processing,
		lastError:   c.lastError,
		hoverGrid:   c.hoverGrid,
		hoverPlayer: c.hoverPlayer,
		question:    c.question,
		questionErr: c.questionErr,
		snapshot:    c.snapshot,
		colors:      c.colors,
		updatedAt:   time.Now(),
	})
}

func (c *Controller) publish(view View) {
	c.subMu.RLock()
	subs := make([]func(View), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.subMu.RUnlock()

	for _, fn := range subs {
		fn(view)
	}
}

func processingLabel(e Effect) string {
	if e.Type == EffectUseJoker {
		return processingJoker
	}
	return processingAnswer
}

// isTransportFailure 请求未得到后端处理
func isTransportFailure(err error) bool {
	switch errors.GetCode(err) {
	case errors.ErrBackendUnavailable, errors.ErrTimeout, errors.ErrCanceled:
		return true
	}
	return false
}
