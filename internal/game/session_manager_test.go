package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/wfunc/banquiz-board/internal/cache"
	"github.com/wfunc/banquiz-board/internal/errors"
	"go.uber.org/zap"
)

const (
	testOwner  = "user:3"
	otherOwner = "user:666"
)

// SessionManagerTestSuite 会话管理器测试套件
type SessionManagerTestSuite struct {
	suite.Suite
	api       *fakeAPI
	persister *MemorySelectionPersister
	manager   *SessionManager
	ctx       context.Context
}

func (s *SessionManagerTestSuite) SetupTest() {
	s.api = newFakeAPI(turnSnapshot())
	s.persister = NewMemorySelectionPersister()
	s.ctx = context.Background()

	qc := cache.New(time.Minute, 0)
	s.manager = NewSessionManager(&SessionManagerConfig{
		Logger:         zap.NewNop(),
		Queries:        cache.NewQueries(qc, s.api),
		Dispatcher:     NewDispatcher(s.api, qc, nil, zap.NewNop()),
		Persister:      s.persister,
		SessionTimeout: 30 * time.Minute,
		MaxSessions:    2,
	})
}

func (s *SessionManagerTestSuite) TestCreateAndGet() {
	session, err := s.manager.CreateSession(s.ctx, testOwner, "abc")
	s.Require().NoError(err)
	s.NotEmpty(session.ID)
	s.Equal("abc", session.GameURL)

	found, err := s.manager.GetSession(session.ID)
	s.Require().NoError(err)
	s.Same(session, found)
	s.Equal(1, s.manager.GetActiveSessions())
}

func (s *SessionManagerTestSuite) TestCreateRequiresGameURL() {
	_, err := s.manager.CreateSession(s.ctx, testOwner, "")
	s.True(errors.Is(err, errors.ErrInvalidParam))
}

func (s *SessionManagerTestSuite) TestSessionLimit() {
	_, err := s.manager.CreateSession(s.ctx, testOwner, "abc")
	s.Require().NoError(err)
	_, err = s.manager.CreateSession(s.ctx, testOwner, "abc")
	s.Require().NoError(err)

	_, err = s.manager.CreateSession(s.ctx, testOwner, "abc")
	s.True(errors.Is(err, errors.ErrSessionLimit))
}

func (s *SessionManagerTestSuite) TestGetMissing() {
	_, err := s.manager.GetSession("nope")
	s.True(errors.Is(err, errors.ErrSessionNotFound))
}

func (s *SessionManagerTestSuite) TestRemoveSavesSelection() {
	session, err := s.manager.CreateSession(s.ctx, testOwner, "abc")
	s.Require().NoError(err)

	_, err = session.Controller.Handle(s.ctx, Event{Type: EventClickJoker, JokerInGameID: jokerSwap})
	s.Require().NoError(err)

	s.Require().NoError(s.manager.RemoveSession(s.ctx, session.ID))
	s.Equal(0, s.manager.GetActiveSessions())

	data, err := s.persister.Load(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(SelectionTargetingJoker, data.Selection.Kind)

	err = s.manager.RemoveSession(s.ctx, session.ID)
	s.True(errors.Is(err, errors.ErrSessionNotFound))
}

func (s *SessionManagerTestSuite) TestRecoverAfterRemove() {
	session, err := s.manager.CreateSession(s.ctx, testOwner, "abc")
	s.Require().NoError(err)
	_, err = session.Controller.Handle(s.ctx, Event{Type: EventClickJoker, JokerInGameID: jokerSwap})
	s.Require().NoError(err)
	_, err = session.Controller.Handle(s.ctx, Event{Type: EventClickCell, GridID: 7})
	s.Require().NoError(err)
	s.Require().NoError(s.manager.RemoveSession(s.ctx, session.ID))

	recovered, err := s.manager.RecoverOrCreateSession(s.ctx, testOwner, session.ID, "abc")
	s.Require().NoError(err)
	sel := recovered.Controller.StateMachine().GetSelection()
	s.Equal(PhasePickPlayer, sel.Phase())
	s.Equal(int64(7), *sel.Joker.TargetGridID)
}

func (s *SessionManagerTestSuite) TestRecoverOrCreateReusesLive() {
	session, err := s.manager.CreateSession(s.ctx, testOwner, "abc")
	s.Require().NoError(err)

	again, err := s.manager.RecoverOrCreateSession(s.ctx, testOwner, session.ID, "abc")
	s.Require().NoError(err)
	s.Same(session, again)

	_, err = s.manager.RecoverOrCreateSession(s.ctx, testOwner, session.ID, "other")
	s.True(errors.Is(err, errors.ErrInvalidParam))
}

func (s *SessionManagerTestSuite) TestCleanupInactiveSessions() {
	s.manager.sessionTimeout = time.Millisecond
	session, err := s.manager.CreateSession(s.ctx, testOwner, "abc")
	s.Require().NoError(err)

	time.Sleep(5 * time.Millisecond)
	s.Equal(1, s.manager.CleanupInactiveSessions(s.ctx))
	s.Equal(0, s.manager.GetActiveSessions())

	_, err = s.persister.Load(s.ctx, session.ID)
	s.NoError(err)
}

func (s *SessionManagerTestSuite) TestListSessions() {
	first, _ := s.manager.CreateSession(s.ctx, testOwner, "abc")
	time.Sleep(time.Millisecond)
	second, _ := s.manager.CreateSession(s.ctx, testOwner, "def")

	infos := s.manager.ListSessions(testOwner)
	s.Require().Len(infos, 2)
	s.Equal(first.ID, infos[0].SessionID)
	s.Equal(second.ID, infos[1].SessionID)
	s.Equal(SelectionIdle, infos[0].State)
	s.Equal(testOwner, infos[0].Owner)
	s.False(infos[0].Busy)

	s.Empty(s.manager.ListSessions(otherOwner))
}

func (s *SessionManagerTestSuite) TestOwnership() {
	session, err := s.manager.CreateSession(s.ctx, testOwner, "abc")
	s.Require().NoError(err)

	s.Run("归属者可以访问", func() {
		found, err := s.manager.GetOwnedSession(session.ID, testOwner)
		s.Require().NoError(err)
		s.Same(session, found)
	})

	s.Run("其他调用方按不存在处理", func() {
		_, err := s.manager.GetOwnedSession(session.ID, otherOwner)
		s.True(errors.Is(err, errors.ErrSessionNotFound))
		_, err = s.manager.GetOwnedSession(session.ID, "")
		s.True(errors.Is(err, errors.ErrSessionNotFound))
	})

	s.Run("其他调用方不能接管活跃会话", func() {
		_, err := s.manager.RecoverOrCreateSession(s.ctx, otherOwner, session.ID, "abc")
		s.True(errors.Is(err, errors.ErrSessionNotFound))
	})
}

func (s *SessionManagerTestSuite) TestRecoverRejectsOtherOwner() {
	session, err := s.manager.CreateSession(s.ctx, testOwner, "abc")
	s.Require().NoError(err)
	_, err = session.Controller.Handle(s.ctx, Event{Type: EventClickJoker, JokerInGameID: jokerSwap})
	s.Require().NoError(err)
	s.Require().NoError(s.manager.RemoveSession(s.ctx, session.ID))

	data, err := s.persister.Load(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(testOwner, data.Owner)

	_, err = s.manager.RecoverOrCreateSession(s.ctx, otherOwner, session.ID, "abc")
	s.True(errors.Is(err, errors.ErrSessionNotFound))
	s.Equal(0, s.manager.GetActiveSessions())

	// 持久化的选择原样保留
	data, err = s.persister.Load(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(SelectionTargetingJoker, data.Selection.Kind)
}

func TestSessionManagerSuite(t *testing.T) {
	suite.Run(t, new(SessionManagerTestSuite))
}
