package game

import (
	"context"
	"sync"
	"time"

	"github.com/wfunc/banquiz-board/internal/cache"
	"github.com/wfunc/banquiz-board/internal/models"
	"go.uber.org/zap"
)

const (
	testRoundID  int64 = 99
	jokerSwap    int64 = 501 // 需要格子和玩家
	jokerDouble  int64 = 502 // 不需要目标
	jokerSteal   int64 = 503 // 只需要玩家
	jokerSpent   int64 = 504 // 已用完
	jokerBlocker int64 = 505 // 只需要格子
)

// turnSnapshot 5x5 棋盘，无棋子规则，玩家1的回合
func turnSnapshot() *models.GameSnapshot {
	snap := newBoardSnapshot(5, 5,
		models.Player{ID: 1, Name: "Alice", ColorID: 11},
		models.Player{ID: 2, Name: "Bob", ColorID: 12},
		models.Player{ID: 3, Name: "Chloé", ColorID: 13},
	)
	snap.Game.WithPawns = false
	snap.CurrentTurn = &models.CurrentTurn{
		RoundID:     testRoundID,
		RoundNumber: 4,
		Player:      models.TurnPlayer{ID: 1, Name: "Alice"},
	}
	snap.AvailableJokers = map[string][]models.JokerAvailability{
		"1": {
			{JokerInGameID: jokerSwap, Available: true, Joker: models.Joker{ID: 1, Name: "Échange", RequiresTargetGrid: true, RequiresTargetPlayer: true}},
			{JokerInGameID: jokerDouble, Available: true, Joker: models.Joker{ID: 2, Name: "Double"}},
			{JokerInGameID: jokerSteal, Available: true, Joker: models.Joker{ID: 3, Name: "Vol", RequiresTargetPlayer: true}},
			{JokerInGameID: jokerSpent, Available: false, Joker: models.Joker{ID: 4, Name: "Usé"}},
			{JokerInGameID: jokerBlocker, Available: true, Joker: models.Joker{ID: 5, Name: "Bloc", RequiresTargetGrid: true}},
		},
		"2": {
			{JokerInGameID: 601, Available: true, Joker: models.Joker{ID: 2, Name: "Double"}},
		},
	}
	return snap
}

// fakeAPI 内存后端，答题成功后标记格子并轮到下一位玩家
type fakeAPI struct {
	mu sync.Mutex

	snapshot *models.GameSnapshot
	question *models.Question
	colors   []models.Color

	stateCalls    int
	questionCalls int
	answers       []models.AnswerRequest
	jokers        []models.JokerUseRequest

	stateErr    error
	answerErr   error
	jokerErr    error
	questionErr error

	// 非 nil 时变更请求在此等待
	started chan struct{}
	release chan struct{}
}

func newFakeAPI(snap *models.GameSnapshot) *fakeAPI {
	return &fakeAPI{
		snapshot: snap,
		colors: []models.Color{
			{ID: 11, HexCode: "#ff0000"},
			{ID: 12, HexCode: "#00ff00"},
			{ID: 13, HexCode: "#0000ff"},
		},
	}
}

func (f *fakeAPI) GetGameState(ctx context.Context, gameURL string) (*models.GameSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateCalls++
	if f.stateErr != nil {
		return nil, f.stateErr
	}
	copied := *f.snapshot
	copied.Grid = append([]models.GridCell(nil), f.snapshot.Grid...)
	copied.AvailableJokers = make(map[string][]models.JokerAvailability, len(f.snapshot.AvailableJokers))
	for k, v := range f.snapshot.AvailableJokers {
		copied.AvailableJokers[k] = append([]models.JokerAvailability(nil), v...)
	}
	return &copied, nil
}

func (f *fakeAPI) SubmitAnswer(ctx context.Context, gameURL string, req models.AnswerRequest) (*models.AnswerResponse, error) {
	f.wait()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, req)
	if f.answerErr != nil {
		return nil, f.answerErr
	}

	for i := range f.snapshot.Grid {
		if f.snapshot.Grid[i].GridID == req.GridID {
			f.snapshot.Grid[i].RoundID = &req.RoundID
			f.snapshot.Grid[i].CorrectAnswer = req.CorrectAnswer
			f.snapshot.Grid[i].SkipAnswer = req.SkipAnswer
		}
	}
	f.snapshot.CurrentTurn = &models.CurrentTurn{
		RoundID:     req.RoundID + 1,
		RoundNumber: 5,
		Player:      models.TurnPlayer{ID: 2, Name: "Bob"},
	}
	return &models.AnswerResponse{GridID: req.GridID, RoundID: req.RoundID, CorrectAnswer: req.CorrectAnswer}, nil
}

func (f *fakeAPI) UseJoker(ctx context.Context, gameURL string, req models.JokerUseRequest) (*models.JokerUseResponse, error) {
	f.wait()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.jokers = append(f.jokers, req)
	if f.jokerErr != nil {
		return nil, f.jokerErr
	}

	for _, list := range f.snapshot.AvailableJokers {
		for i := range list {
			if list[i].JokerInGameID == req.JokerInGameID {
				list[i].Available = false
			}
		}
	}
	return &models.JokerUseResponse{ID: 1, JokerInGameID: req.JokerInGameID, RoundID: req.RoundID}, nil
}

func (f *fakeAPI) GetQuestion(ctx context.Context, questionID int64) (*models.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questionCalls++
	if f.questionErr != nil {
		return nil, f.questionErr
	}
	if f.question != nil {
		return f.question, nil
	}
	image := "https://cdn.example.com/q.png"
	return &models.Question{
		ID:                     questionID,
		Question:               "Capitale de l'Australie ?",
		Answer:                 "Canberra",
		Points:                 100,
		QuestionImageSignedURL: &image,
	}, nil
}

func (f *fakeAPI) GetResults(ctx context.Context, gameURL string) (*models.GameResults, error) {
	return &models.GameResults{}, nil
}

func (f *fakeAPI) ListColors(ctx context.Context) ([]models.Color, error) {
	return f.colors, nil
}

func (f *fakeAPI) wait() {
	if f.started == nil {
		return
	}
	f.started <- struct{}{}
	<-f.release
}

func (f *fakeAPI) block() {
	f.started = make(chan struct{})
	f.release = make(chan struct{})
}

func (f *fakeAPI) counts() (state, answers, jokers int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateCalls, len(f.answers), len(f.jokers)
}

func (f *fakeAPI) setAnswerErr(err error) {
	f.mu.Lock()
	f.answerErr = err
	f.mu.Unlock()
}

// memoryJournal 内存操作日志
type memoryJournal struct {
	mu      sync.Mutex
	records []*models.ActionRecord
}

func (j *memoryJournal) Create(ctx context.Context, record *models.ActionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, record)
	return nil
}

func (j *memoryJournal) all() []*models.ActionRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]*models.ActionRecord(nil), j.records...)
}

// newTestController 组装控制器及其依赖
func newTestController(api *fakeAPI) (*Controller, *memoryJournal) {
	journal := &memoryJournal{}
	qc := cache.New(time.Minute, 0)
	queries := cache.NewQueries(qc, api)
	return NewController(ControllerConfig{
		SessionID:  "session-1",
		GameURL:    "abc",
		Queries:    queries,
		Dispatcher: NewDispatcher(api, qc, journal, zap.NewNop()),
		Persister:  NewMemorySelectionPersister(),
		Logger:     zap.NewNop(),
	}), journal
}
