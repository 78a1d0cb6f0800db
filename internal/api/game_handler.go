package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/banquiz-board/internal/errors"
	"github.com/wfunc/banquiz-board/internal/game"
	"github.com/wfunc/banquiz-board/internal/utils"
	"go.uber.org/zap"
)

// GameHandler 对局查询处理器
type GameHandler struct {
	board    *game.BoardService
	frontURL string
	logger   *zap.Logger
}

// NewGameHandler 创建对局处理器
func NewGameHandler(board *game.BoardService, frontURL string, logger *zap.Logger) *GameHandler {
	return &GameHandler{board: board, frontURL: frontURL, logger: logger}
}

// MovesResponse 可走格子响应
type MovesResponse struct {
	GameURL  string          `json:"game_url"`
	PlayerID *int64          `json:"player_id,omitempty"`
	Cells    []game.Position `json:"cells"`
}

// State 对局快照
// @Summary 对局快照
// @Tags Games
// @Security Bearer
// @Produce json
// @Param url path string true "对局地址"
// @Success 200 {object} SuccessResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /api/v1/games/{url}/state [get]
func (h *GameHandler) State(c *gin.Context) {
	snap, err := h.board.GetState(c.Request.Context(), c.Param("url"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, snap)
}

// Moves 棋子可走格子
// @Summary 可走格子
// @Description 不带 player_id 时取当前回合玩家；对局未启用棋子时为空
// @Tags Games
// @Security Bearer
// @Produce json
// @Param url path string true "对局地址"
// @Param player_id query int false "玩家ID"
// @Success 200 {object} SuccessResponse
// @Failure 422 {object} errors.ErrorResponse
// @Router /api/v1/games/{url}/moves [get]
func (h *GameHandler) Moves(c *gin.Context) {
	playerID, ok := parseOptionalInt64Query(c, "player_id")
	if !ok {
		return
	}

	gameURL := c.Param("url")
	cells, err := h.board.LegalMoves(c.Request.Context(), gameURL, playerID)
	if err != nil {
		respondError(c, err)
		return
	}
	if cells == nil {
		cells = []game.Position{}
	}
	respondOK(c, MovesResponse{GameURL: gameURL, PlayerID: playerID, Cells: cells})
}

// Results 对局结算
// @Summary 对局结算
// @Tags Games
// @Security Bearer
// @Produce json
// @Param url path string true "对局地址"
// @Success 200 {object} SuccessResponse
// @Router /api/v1/games/{url}/results [get]
func (h *GameHandler) Results(c *gin.Context) {
	results, err := h.board.GetResults(c.Request.Context(), c.Param("url"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, results)
}

// Stats 对局的操作统计
// @Summary 操作统计
// @Tags Games
// @Security Bearer
// @Produce json
// @Param url path string true "对局地址"
// @Success 200 {object} SuccessResponse
// @Router /api/v1/games/{url}/stats [get]
func (h *GameHandler) Stats(c *gin.Context) {
	stats, err := h.board.GetStatistics(c.Request.Context(), c.Param("url"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, stats)
}

// Actions 对局的操作日志
// @Summary 对局操作日志
// @Tags Games
// @Security Bearer
// @Produce json
// @Param url path string true "对局地址"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} SuccessResponse
// @Router /api/v1/games/{url}/actions [get]
func (h *GameHandler) Actions(c *gin.Context) {
	p := parsePagination(c)
	records, err := h.board.GetGameHistory(c.Request.Context(), c.Param("url"), p)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, pageOf(records, p))
}

// QRCode 对局页二维码
// @Summary 对局页二维码
// @Tags Games
// @Produce png
// @Param url path string true "对局地址"
// @Param size query int false "尺寸（像素）"
// @Success 200 {file} binary
// @Router /api/v1/games/{url}/qrcode [get]
func (h *GameHandler) QRCode(c *gin.Context) {
	size, err := strconv.Atoi(c.DefaultQuery("size", "0"))
	if err != nil {
		badRequest(c, "无效的size")
		return
	}

	png, err := utils.GameQRCode(h.frontURL, c.Param("url"), size)
	if err != nil {
		respondError(c, errors.Wrap(err, errors.ErrInvalidParam))
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// Question 题目内容
// @Summary 题目内容
// @Tags Games
// @Security Bearer
// @Produce json
// @Param id path int true "题目ID"
// @Success 200 {object} SuccessResponse
// @Router /api/v1/questions/{id} [get]
func (h *GameHandler) Question(c *gin.Context) {
	id, ok := parseInt64Param(c, "id")
	if !ok {
		return
	}
	question, err := h.board.GetQuestion(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, question)
}

// Colors 颜色列表
// @Summary 颜色列表
// @Tags Games
// @Security Bearer
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /api/v1/colors [get]
func (h *GameHandler) Colors(c *gin.Context) {
	colors, err := h.board.GetColors(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, colors)
}
