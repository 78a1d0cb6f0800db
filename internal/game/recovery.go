package game

import (
	"context"
	"fmt"
	"time"

	"github.com/wfunc/banquiz-board/internal/errors"
	"github.com/wfunc/banquiz-board/internal/models"
	"go.uber.org/zap"
)

// RecoveryManager 会话恢复管理器
// 恢复出的选择必须经最新快照校验，失效时回到空闲
type RecoveryManager struct {
	logger    *zap.Logger
	persister SelectionPersister
	timeout   time.Duration // 会话超时时间
}

// NewRecoveryManager 创建恢复管理器
func NewRecoveryManager(logger *zap.Logger, persister SelectionPersister, timeout time.Duration) *RecoveryManager {
	return &RecoveryManager{
		logger:    logger,
		persister: persister,
		timeout:   timeout,
	}
}

// LoadSelection 加载未超时的持久化选择
func (rm *RecoveryManager) LoadSelection(ctx context.Context, sessionID string) (*SelectionData, error) {
	data, err := rm.persister.Load(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrSessionNotFound, fmt.Sprintf("加载会话状态失败: %s", sessionID))
	}

	// 检查会话是否超时
	if rm.timeout > 0 && time.Since(data.LastUpdate) > rm.timeout {
		rm.logger.Warn("会话已超时",
			zap.String("session_id", sessionID),
			zap.Time("last_update", data.LastUpdate),
			zap.Duration("timeout", rm.timeout))

		if err := rm.persister.Delete(ctx, sessionID); err != nil {
			rm.logger.Error("删除超时会话失败", zap.Error(err))
		}
		return nil, errors.Newf(errors.ErrSessionNotFound, "会话已超时: %s", sessionID)
	}

	return data, nil
}

// Validate 用最新快照校验恢复的选择
func (rm *RecoveryManager) Validate(sel Selection, snap *models.GameSnapshot) Selection {
	strategy := rm.getRecoveryStrategy(sel.Kind)
	next, reason := strategy(sel, snap)
	if reason != "" {
		rm.logger.Info("恢复的选择已失效，重置到空闲",
			zap.String("from_state", string(sel.Kind)),
			zap.String("reason", reason))
	}
	return next
}

type recoveryStrategy func(sel Selection, snap *models.GameSnapshot) (Selection, string)

// getRecoveryStrategy 根据状态获取恢复策略
func (rm *RecoveryManager) getRecoveryStrategy(kind SelectionKind) recoveryStrategy {
	strategies := map[SelectionKind]recoveryStrategy{
		SelectionIdle:            rm.recoverIdle,
		SelectionViewingQuestion: rm.recoverViewing,
		SelectionTargetingJoker:  rm.recoverTargeting,
	}

	if strategy, exists := strategies[kind]; exists {
		return strategy
	}
	return rm.recoverToIdle
}

func (rm *RecoveryManager) recoverIdle(sel Selection, snap *models.GameSnapshot) (Selection, string) {
	return Idle(), ""
}

// recoverViewing 格子仍未作答且当前玩家可走时重新打开，格子数据取自最新快照
func (rm *RecoveryManager) recoverViewing(sel Selection, snap *models.GameSnapshot) (Selection, string) {
	if !hasTurn(snap) {
		return Idle(), reasonNoTurn
	}
	if sel.Cell == nil {
		return Idle(), reasonUnknownTarget
	}
	cell, ok := snap.CellByGridID(sel.Cell.GridID)
	if !ok {
		return Idle(), reasonUnknownTarget
	}
	if cell.IsAnswered() {
		return Idle(), reasonAnswered
	}
	// 保存之后棋子可能已经移动
	if !IsCellPlayable(snap, cell) {
		return Idle(), reasonIllegalMove
	}
	return ViewingQuestion(cell), ""
}

// recoverTargeting 道具仍可用且已选目标仍有效
func (rm *RecoveryManager) recoverTargeting(sel Selection, snap *models.GameSnapshot) (Selection, string) {
	if !hasTurn(snap) {
		return Idle(), reasonNoTurn
	}
	if sel.Joker == nil {
		return Idle(), reasonJokerUnavailable
	}
	joker, ok := snap.CurrentJoker(sel.Joker.JokerInGameID)
	if !ok || !joker.Available {
		return Idle(), reasonJokerUnavailable
	}

	t := *sel.Joker
	if t.TargetGridID != nil {
		cell, ok := snap.CellByGridID(*t.TargetGridID)
		if !ok || cell.IsAnswered() {
			return Idle(), reasonAnswered
		}
	}
	if t.TargetPlayerID != nil {
		if _, ok := snap.PlayerByID(*t.TargetPlayerID); !ok {
			return Idle(), reasonUnknownTarget
		}
	}

	phase, done := nextPhase(t)
	if done {
		// 目标已齐但请求从未发出，不自动补发
		return Idle(), reasonNoTransition
	}
	t.Phase = phase
	return Targeting(t), ""
}

func (rm *RecoveryManager) recoverToIdle(sel Selection, snap *models.GameSnapshot) (Selection, string) {
	return Idle(), reasonNoTransition
}

// Recover 为控制器恢复持久化的选择
func (rm *RecoveryManager) Recover(ctx context.Context, c *Controller, snap *models.GameSnapshot) error {
	data, err := rm.LoadSelection(ctx, c.SessionID())
	if err != nil {
		return err
	}
	if data.GameURL != c.GameURL() {
		return errors.Newf(errors.ErrSessionNotFound, "会话属于其他对局: %s", data.GameURL)
	}
	// 没有记录归属的旧数据照常恢复
	if data.Owner != "" && data.Owner != c.sm.owner {
		return errors.Newf(errors.ErrAuthorization, "会话属于其他用户: %s", c.SessionID())
	}

	restored := rm.Validate(data.Selection, snap)
	c.sm.LoadFromData(data)
	if restored.Kind != data.Selection.Kind || restored.Kind != SelectionIdle {
		// 写回校验后的选择
		c.sm.Set(ctx, restored)
	}

	rm.logger.Info("会话恢复成功",
		zap.String("session_id", c.SessionID()),
		zap.String("state", string(restored.Kind)))
	return nil
}

// CleanupExpiredSessions 清理过期的持久化选择
func (rm *RecoveryManager) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	cleaner, ok := rm.persister.(ExpiredSessionCleaner)
	if !ok || rm.timeout <= 0 {
		return 0, nil
	}

	n, err := cleaner.DeleteBefore(ctx, time.Now().Add(-rm.timeout))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		rm.logger.Info("清理过期会话", zap.Int64("count", n))
	}
	return n, nil
}
