package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/banquiz-board/internal/errors"
	"github.com/wfunc/banquiz-board/internal/models"
	"go.uber.org/zap"
)

func TestReduce_IdleClickCell(t *testing.T) {
	snap := turnSnapshot()

	t.Run("未作答格子打开题目", func(t *testing.T) {
		tr := Reduce(Idle(), Event{Type: EventClickCell, GridID: 12}, snap)
		require.True(t, tr.Handled)
		assert.Equal(t, SelectionViewingQuestion, tr.Next.Kind)
		require.NotNil(t, tr.Next.Cell)
		assert.Equal(t, int64(12), tr.Next.Cell.GridID)
		require.Len(t, tr.Effects, 1)
		assert.Equal(t, EffectLoadQuestion, tr.Effects[0].Type)
		assert.Equal(t, int64(120), tr.Effects[0].QuestionID)
	})

	t.Run("已作答格子被忽略", func(t *testing.T) {
		s := turnSnapshot()
		markAnswered(s, 2, 1)
		tr := Reduce(Idle(), Event{Type: EventClickCell, GridID: 12}, s)
		assert.False(t, tr.Handled)
		assert.Equal(t, reasonAnswered, tr.Reason)
		assert.True(t, tr.Next.IsIdle())
	})

	t.Run("未知格子被忽略", func(t *testing.T) {
		tr := Reduce(Idle(), Event{Type: EventClickCell, GridID: 999}, snap)
		assert.False(t, tr.Handled)
		assert.Equal(t, reasonUnknownTarget, tr.Reason)
	})

	t.Run("没有回合时被忽略", func(t *testing.T) {
		s := turnSnapshot()
		s.CurrentTurn = nil
		tr := Reduce(Idle(), Event{Type: EventClickCell, GridID: 12}, s)
		assert.False(t, tr.Handled)
		assert.Equal(t, reasonNoTurn, tr.Reason)
	})

	t.Run("棋子规则下非法移动被忽略", func(t *testing.T) {
		s := turnSnapshot()
		s.Game.WithPawns = true
		// 玩家1没有棋子，只能选外圈
		tr := Reduce(Idle(), Event{Type: EventClickCell, GridID: 13}, s)
		assert.False(t, tr.Handled)
		assert.Equal(t, reasonIllegalMove, tr.Reason)

		tr = Reduce(Idle(), Event{Type: EventClickCell, GridID: 1}, s)
		assert.True(t, tr.Handled)
	})
}

func TestReduce_AnswerFlow(t *testing.T) {
	snap := turnSnapshot()
	cell, ok := snap.CellByGridID(12)
	require.True(t, ok)
	viewing := ViewingQuestion(cell)

	cases := []struct {
		name    string
		outcome AnswerOutcome
		correct bool
		skip    bool
	}{
		{"答对", AnswerGood, true, false},
		{"答错", AnswerBad, false, false},
		{"放弃", AnswerSkip, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := Reduce(viewing, Event{Type: EventSubmitAnswer, Answer: tc.outcome}, snap)
			require.True(t, tr.Handled)
			assert.True(t, tr.Next.IsIdle())

			effect, ok := tr.Mutation()
			require.True(t, ok)
			assert.Equal(t, EffectSubmitAnswer, effect.Type)
			assert.Equal(t, models.AnswerRequest{
				RoundID:       testRoundID,
				GridID:        12,
				CorrectAnswer: tc.correct,
				SkipAnswer:    tc.skip,
			}, *effect.Answer)
		})
	}

	t.Run("未知结果被拒绝", func(t *testing.T) {
		tr := Reduce(viewing, Event{Type: EventSubmitAnswer, Answer: "maybe"}, snap)
		assert.False(t, tr.Handled)
		assert.True(t, errors.Is(tr.Err, errors.ErrInvalidParam))
		assert.Equal(t, SelectionViewingQuestion, tr.Next.Kind)
	})

	t.Run("空闲时提交被拒绝", func(t *testing.T) {
		tr := Reduce(Idle(), Event{Type: EventSubmitAnswer, Answer: AnswerGood}, snap)
		assert.True(t, errors.Is(tr.Err, errors.ErrNoSelectedCell))
	})

	t.Run("没有回合时提交被拒绝", func(t *testing.T) {
		s := turnSnapshot()
		s.CurrentTurn = nil
		tr := Reduce(viewing, Event{Type: EventSubmitAnswer, Answer: AnswerGood}, s)
		assert.True(t, errors.Is(tr.Err, errors.ErrNoActiveTurn))
	})

	t.Run("关闭题目不提交", func(t *testing.T) {
		tr := Reduce(viewing, Event{Type: EventCloseQuestion}, snap)
		require.True(t, tr.Handled)
		assert.True(t, tr.Next.IsIdle())
		assert.Empty(t, tr.Effects)
	})

	t.Run("查看题目时忽略其他点击", func(t *testing.T) {
		for _, ev := range []Event{
			{Type: EventClickCell, GridID: 7},
			{Type: EventClickJoker, JokerInGameID: jokerSwap},
			{Type: EventClickPlayer, PlayerID: 2},
		} {
			tr := Reduce(viewing, ev, snap)
			assert.False(t, tr.Handled, "事件 %s", ev.Type)
			assert.Equal(t, viewing, tr.Next)
		}
	})
}

func TestReduce_JokerTargeting(t *testing.T) {
	snap := turnSnapshot()

	t.Run("格子加玩家：先格子后玩家，只派发一次", func(t *testing.T) {
		tr := Reduce(Idle(), Event{Type: EventClickJoker, JokerInGameID: jokerSwap}, snap)
		require.True(t, tr.Handled)
		assert.Equal(t, PhasePickGrid, tr.Next.Phase())
		assert.Empty(t, tr.Effects)

		// 选玩家阶段之前点击玩家无效
		ignored := Reduce(tr.Next, Event{Type: EventClickPlayer, PlayerID: 3}, snap)
		assert.False(t, ignored.Handled)
		assert.Equal(t, reasonWrongPhase, ignored.Reason)

		tr = Reduce(tr.Next, Event{Type: EventClickCell, GridID: 7}, snap)
		require.True(t, tr.Handled)
		assert.Equal(t, PhasePickPlayer, tr.Next.Phase())
		assert.Equal(t, int64(7), *tr.Next.Joker.TargetGridID)
		assert.Empty(t, tr.Effects)

		// 选玩家阶段点击格子无效
		ignored = Reduce(tr.Next, Event{Type: EventClickCell, GridID: 8}, snap)
		assert.False(t, ignored.Handled)

		tr = Reduce(tr.Next, Event{Type: EventClickPlayer, PlayerID: 3}, snap)
		require.True(t, tr.Handled)
		assert.True(t, tr.Next.IsIdle())

		var mutations []Effect
		for _, e := range tr.Effects {
			if e.IsMutation() {
				mutations = append(mutations, e)
			}
		}
		require.Len(t, mutations, 1)
		req := mutations[0].Joker
		assert.Equal(t, jokerSwap, req.JokerInGameID)
		assert.Equal(t, testRoundID, req.RoundID)
		assert.Equal(t, int64(7), *req.TargetGridID)
		assert.Equal(t, int64(3), *req.TargetPlayerID)
	})

	t.Run("不需要目标时立即使用", func(t *testing.T) {
		tr := Reduce(Idle(), Event{Type: EventClickJoker, JokerInGameID: jokerDouble}, snap)
		require.True(t, tr.Handled)
		assert.True(t, tr.Next.IsIdle())
		effect, ok := tr.Mutation()
		require.True(t, ok)
		assert.Nil(t, effect.Joker.TargetGridID)
		assert.Nil(t, effect.Joker.TargetPlayerID)
	})

	t.Run("只需要玩家时跳过格子阶段", func(t *testing.T) {
		tr := Reduce(Idle(), Event{Type: EventClickJoker, JokerInGameID: jokerSteal}, snap)
		require.True(t, tr.Handled)
		assert.Equal(t, PhasePickPlayer, tr.Next.Phase())

		tr = Reduce(tr.Next, Event{Type: EventClickPlayer, PlayerID: 2}, snap)
		effect, ok := tr.Mutation()
		require.True(t, ok)
		assert.Nil(t, effect.Joker.TargetGridID)
		assert.Equal(t, int64(2), *effect.Joker.TargetPlayerID)
	})

	t.Run("只需要格子时不发送玩家", func(t *testing.T) {
		tr := Reduce(Idle(), Event{Type: EventClickJoker, JokerInGameID: jokerBlocker}, snap)
		tr = Reduce(tr.Next, Event{Type: EventClickCell, GridID: 9}, snap)
		effect, ok := tr.Mutation()
		require.True(t, ok)
		assert.Equal(t, int64(9), *effect.Joker.TargetGridID)
		assert.Nil(t, effect.Joker.TargetPlayerID)
	})

	t.Run("再次点击同一道具取消", func(t *testing.T) {
		tr := Reduce(Idle(), Event{Type: EventClickJoker, JokerInGameID: jokerSwap}, snap)
		tr = Reduce(tr.Next, Event{Type: EventClickJoker, JokerInGameID: jokerSwap}, snap)
		require.True(t, tr.Handled)
		assert.True(t, tr.Next.IsIdle())
		assert.Empty(t, tr.Effects)
	})

	t.Run("已选格子后再次点击同一道具取消", func(t *testing.T) {
		tr := Reduce(Idle(), Event{Type: EventClickJoker, JokerInGameID: jokerSwap}, snap)
		tr = Reduce(tr.Next, Event{Type: EventClickCell, GridID: 7}, snap)
		require.Equal(t, PhasePickPlayer, tr.Next.Phase())
		require.Equal(t, int64(7), *tr.Next.Joker.TargetGridID)

		tr = Reduce(tr.Next, Event{Type: EventClickJoker, JokerInGameID: jokerSwap}, snap)
		require.True(t, tr.Handled)
		assert.True(t, tr.Next.IsIdle())
		assert.Nil(t, tr.Next.Joker)
		assert.Empty(t, tr.Effects)
		_, ok := tr.Mutation()
		assert.False(t, ok)
	})

	t.Run("目标选择中点击其他道具被忽略", func(t *testing.T) {
		tr := Reduce(Idle(), Event{Type: EventClickJoker, JokerInGameID: jokerSwap}, snap)
		next := Reduce(tr.Next, Event{Type: EventClickJoker, JokerInGameID: jokerSteal}, snap)
		assert.False(t, next.Handled)
		assert.Equal(t, reasonOtherJoker, next.Reason)
		assert.Equal(t, tr.Next, next.Next)
	})

	t.Run("不可用或非当前玩家的道具被忽略", func(t *testing.T) {
		for _, id := range []int64{jokerSpent, 601, 9999} {
			tr := Reduce(Idle(), Event{Type: EventClickJoker, JokerInGameID: id}, snap)
			assert.False(t, tr.Handled, "道具 %d", id)
			assert.Equal(t, reasonJokerUnavailable, tr.Reason)
		}
	})

	t.Run("目标格子已作答被忽略", func(t *testing.T) {
		s := turnSnapshot()
		markAnswered(s, 1, 1)
		tr := Reduce(Idle(), Event{Type: EventClickJoker, JokerInGameID: jokerSwap}, s)
		next := Reduce(tr.Next, Event{Type: EventClickCell, GridID: 7}, s)
		assert.False(t, next.Handled)
		assert.Equal(t, reasonAnswered, next.Reason)
	})

	t.Run("选格子阶段取消回到空闲", func(t *testing.T) {
		tr := Reduce(Idle(), Event{Type: EventClickJoker, JokerInGameID: jokerSwap}, snap)
		require.Equal(t, PhasePickGrid, tr.Next.Phase())

		tr = Reduce(tr.Next, Event{Type: EventCancel}, snap)
		require.True(t, tr.Handled)
		assert.True(t, tr.Next.IsIdle())
		assert.Nil(t, tr.Next.Joker)
		assert.Empty(t, tr.Effects)
	})

	t.Run("取消回到空闲", func(t *testing.T) {
		tr := Reduce(Idle(), Event{Type: EventClickJoker, JokerInGameID: jokerSwap}, snap)
		tr = Reduce(tr.Next, Event{Type: EventClickCell, GridID: 7}, snap)
		tr = Reduce(tr.Next, Event{Type: EventCancel}, snap)
		require.True(t, tr.Handled)
		assert.True(t, tr.Next.IsIdle())
		assert.Empty(t, tr.Effects)
	})
}

// StateMachineTestSuite 状态机测试套件
type StateMachineTestSuite struct {
	suite.Suite
	persister *MemorySelectionPersister
	sm        *StateMachine
	snap      *models.GameSnapshot
	ctx       context.Context
}

func (s *StateMachineTestSuite) SetupTest() {
	s.persister = NewMemorySelectionPersister()
	s.sm = NewStateMachine("session-1", "abc", zap.NewNop(), s.persister)
	s.snap = turnSnapshot()
	s.ctx = context.Background()
}

func (s *StateMachineTestSuite) TestApplyPersists() {
	tr := s.sm.Apply(s.ctx, Event{Type: EventClickCell, GridID: 12}, s.snap)
	s.True(tr.Handled)

	data, err := s.persister.Load(s.ctx, "session-1")
	s.Require().NoError(err)
	s.Equal(SelectionViewingQuestion, data.Selection.Kind)
	s.Equal(int64(12), data.Selection.Cell.GridID)
	s.Equal("abc", data.GameURL)
}

func (s *StateMachineTestSuite) TestIgnoredEventDoesNotPersist() {
	tr := s.sm.Apply(s.ctx, Event{Type: EventClickPlayer, PlayerID: 2}, s.snap)
	s.False(tr.Handled)

	_, err := s.persister.Load(s.ctx, "session-1")
	s.Error(err)
	s.True(s.sm.GetSelection().IsIdle())
}

func (s *StateMachineTestSuite) TestOnStateChange() {
	var changes []SelectionKind
	s.sm.OnStateChange(func(from, to Selection) {
		changes = append(changes, to.Kind)
	})

	s.sm.Apply(s.ctx, Event{Type: EventClickJoker, JokerInGameID: jokerSwap}, s.snap)
	s.sm.Apply(s.ctx, Event{Type: EventCancel}, s.snap)

	s.Equal([]SelectionKind{SelectionTargetingJoker, SelectionIdle}, changes)
}

func (s *StateMachineTestSuite) TestLoadFromData() {
	cell, _ := s.snap.CellByGridID(7)
	s.sm.LoadFromData(&SelectionData{
		SessionID: "session-1",
		GameURL:   "abc",
		Selection: ViewingQuestion(cell),
	})
	s.Equal(SelectionViewingQuestion, s.sm.GetSelection().Kind)

	s.sm.Reset(s.ctx)
	s.True(s.sm.GetSelection().IsIdle())
}

func TestStateMachineSuite(t *testing.T) {
	suite.Run(t, new(StateMachineTestSuite))
}
