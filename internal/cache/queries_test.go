package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/banquiz-board/internal/backend"
	"github.com/wfunc/banquiz-board/internal/errors"
	"github.com/wfunc/banquiz-board/internal/models"
)

// stubAPI owner 非空时只认这一个令牌，和后端按令牌鉴权一致
type stubAPI struct {
	stateCalls int
	stateErr   error
	owner      string
}

func (s *stubAPI) authorize(ctx context.Context) error {
	if s.owner == "" {
		return nil
	}
	if token, _ := backend.TokenFromContext(ctx); token != s.owner {
		return errors.New(errors.ErrAuthorization, "not a participant")
	}
	return nil
}

func (s *stubAPI) GetGameState(ctx context.Context, gameURL string) (*models.GameSnapshot, error) {
	s.stateCalls++
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	if s.stateErr != nil {
		return nil, s.stateErr
	}
	return &models.GameSnapshot{Game: models.GameMeta{URL: gameURL}}, nil
}

func (s *stubAPI) SubmitAnswer(ctx context.Context, gameURL string, req models.AnswerRequest) (*models.AnswerResponse, error) {
	return &models.AnswerResponse{}, nil
}

func (s *stubAPI) UseJoker(ctx context.Context, gameURL string, req models.JokerUseRequest) (*models.JokerUseResponse, error) {
	return &models.JokerUseResponse{}, nil
}

func (s *stubAPI) GetQuestion(ctx context.Context, questionID int64) (*models.Question, error) {
	if err := s.authorize(ctx); err != nil {
		return nil, err
	}
	return &models.Question{ID: questionID}, nil
}

func (s *stubAPI) GetResults(ctx context.Context, gameURL string) (*models.GameResults, error) {
	return &models.GameResults{Game: models.GameMeta{URL: gameURL}}, nil
}

func (s *stubAPI) ListColors(ctx context.Context) ([]models.Color, error) {
	return []models.Color{{ID: 1, HexCode: "#000"}}, nil
}

func TestQueries(t *testing.T) {
	c, _ := newTestCache(1)
	api := &stubAPI{}
	q := NewQueries(c, api)
	ctx := context.Background()

	snap, err := q.State(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", snap.Game.URL)

	_, err = q.State(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 1, api.stateCalls)

	res, err := q.Results(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", res.Game.URL)

	question, err := q.Question(ctx, 70)
	require.NoError(t, err)
	assert.Equal(t, int64(70), question.ID)

	colors, err := q.Colors(ctx)
	require.NoError(t, err)
	assert.Len(t, colors, 1)
	assert.Same(t, c, q.Cache())
}

func TestQueries_StateError(t *testing.T) {
	c, _ := newTestCache(0)
	q := NewQueries(c, &stubAPI{stateErr: errors.New(errors.ErrBackendStatus)})

	_, err := q.State(context.Background(), "abc")
	assert.True(t, errors.Is(err, errors.ErrBackendStatus))
}

func TestQueries_ScopedByCaller(t *testing.T) {
	c, _ := newTestCache(0)
	api := &stubAPI{owner: "owner-token"}
	q := NewQueries(c, api)
	owner := backend.WithToken(context.Background(), "owner-token")
	other := backend.WithToken(context.Background(), "forged-token")

	_, err := q.State(owner, "abc")
	require.NoError(t, err)
	_, err = q.Question(owner, 70)
	require.NoError(t, err)

	t.Run("其他令牌不能读到新鲜的快照", func(t *testing.T) {
		_, err := q.State(other, "abc")
		assert.True(t, errors.Is(err, errors.ErrAuthorization))
		assert.Equal(t, 2, api.stateCalls)
	})

	t.Run("其他令牌不能读到题目", func(t *testing.T) {
		_, err := q.Question(other, 70)
		assert.True(t, errors.Is(err, errors.ErrAuthorization))
	})

	t.Run("没有令牌也不共享", func(t *testing.T) {
		_, err := q.State(context.Background(), "abc")
		assert.True(t, errors.Is(err, errors.ErrAuthorization))
	})

	t.Run("同一令牌仍走缓存", func(t *testing.T) {
		calls := api.stateCalls
		_, err := q.State(owner, "abc")
		require.NoError(t, err)
		assert.Equal(t, calls, api.stateCalls)
	})

	t.Run("失效作用于所有调用方", func(t *testing.T) {
		c.Invalidate(StateKey("abc"))
		_, _, fresh := c.Peek(StateKey("abc").Scoped(backend.TokenFingerprint(owner)))
		assert.False(t, fresh)
	})
}
