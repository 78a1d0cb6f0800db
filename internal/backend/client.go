package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wfunc/banquiz-board/internal/config"
	"github.com/wfunc/banquiz-board/internal/errors"
	"github.com/wfunc/banquiz-board/internal/logger"
	"github.com/wfunc/banquiz-board/internal/models"
	"github.com/wfunc/banquiz-board/internal/utils"
	"go.uber.org/zap"
)

// API Banquiz后端接口
type API interface {
	GetGameState(ctx context.Context, gameURL string) (*models.GameSnapshot, error)
	SubmitAnswer(ctx context.Context, gameURL string, req models.AnswerRequest) (*models.AnswerResponse, error)
	UseJoker(ctx context.Context, gameURL string, req models.JokerUseRequest) (*models.JokerUseResponse, error)
	GetQuestion(ctx context.Context, questionID int64) (*models.Question, error)
	GetResults(ctx context.Context, gameURL string) (*models.GameResults, error)
	ListColors(ctx context.Context) ([]models.Color, error)
}

// Client Banquiz后端HTTP客户端
type Client struct {
	baseURL       string
	httpClient    *http.Client
	autoNextRound bool
	signedURLs    bool
	colorsLimit   int
	expiryLeeway  time.Duration
	logger        *zap.Logger
}

// Option 客户端选项
type Option func(*Client)

// WithHTTPClient 指定底层HTTP客户端
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithExpiryLeeway 令牌过期宽限期
func WithExpiryLeeway(d time.Duration) Option {
	return func(c *Client) {
		c.expiryLeeway = d
	}
}

// WithLogger 指定日志器
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient 创建后端客户端
func NewClient(cfg *config.BackendConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	colorsLimit := cfg.ColorsLimit
	if colorsLimit <= 0 {
		colorsLimit = 500
	}

	c := &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:    &http.Client{Timeout: timeout},
		autoNextRound: cfg.AutoNextRound,
		signedURLs:    cfg.SignedURLs,
		colorsLimit:   colorsLimit,
		logger:        logger.WithModule("backend"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetGameState 获取对局快照
func (c *Client) GetGameState(ctx context.Context, gameURL string) (*models.GameSnapshot, error) {
	var out models.GameSnapshot
	if err := c.do(ctx, http.MethodGet, gamePath(gameURL, "state"), nil, nil, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitAnswer 提交答案
func (c *Client) SubmitAnswer(ctx context.Context, gameURL string, req models.AnswerRequest) (*models.AnswerResponse, error) {
	query := url.Values{}
	query.Set("auto_next_round", strconv.FormatBool(c.autoNextRound))

	var out models.AnswerResponse
	if err := c.do(ctx, http.MethodPost, gamePath(gameURL, "answers"), query, req, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UseJoker 使用道具
func (c *Client) UseJoker(ctx context.Context, gameURL string, req models.JokerUseRequest) (*models.JokerUseResponse, error) {
	var out models.JokerUseResponse
	if err := c.do(ctx, http.MethodPost, gamePath(gameURL, "jokers/use"), nil, req, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetQuestion 获取题目内容（可带签名媒体地址）
func (c *Client) GetQuestion(ctx context.Context, questionID int64) (*models.Question, error) {
	query := url.Values{}
	query.Set("with_signed_url", strconv.FormatBool(c.signedURLs))

	var out models.Question
	path := "/games/questions/" + strconv.FormatInt(questionID, 10)
	if err := c.do(ctx, http.MethodGet, path, query, nil, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetResults 获取对局结算
func (c *Client) GetResults(ctx context.Context, gameURL string) (*models.GameResults, error) {
	var out models.GameResults
	if err := c.do(ctx, http.MethodGet, gamePath(gameURL, "results"), nil, nil, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListColors 获取颜色列表（公开接口，不带令牌）
func (c *Client) ListColors(ctx context.Context) ([]models.Color, error) {
	query := url.Values{}
	query.Set("offset", "0")
	query.Set("limit", strconv.Itoa(c.colorsLimit))

	var out []models.Color
	if err := c.do(ctx, http.MethodGet, "/games/colors", query, nil, false, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func gamePath(gameURL, suffix string) string {
	return "/games/" + url.PathEscape(gameURL) + "/" + suffix
}

// do 发送请求并解析响应
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, withAuth bool, out interface{}) error {
	start := time.Now()
	status, err := c.send(ctx, method, path, query, body, withAuth, out)

	fields := []zap.Field{
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
		zap.Duration("latency", time.Since(start)),
	}
	if err != nil {
		c.logger.Warn("backend_call_failed", append(fields, zap.Error(err))...)
		return err
	}
	c.logger.Debug("backend_call", fields...)
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body interface{}, withAuth bool, out interface{}) (int, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, errors.Wrap(err, errors.ErrInvalidParam, "序列化请求体失败")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrInvalidParam, "构建请求失败")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if withAuth {
		if token, ok := TokenFromContext(ctx); ok {
			if _, err := utils.CheckToken(token, c.expiryLeeway); err == utils.ErrExpiredToken {
				return 0, errors.New(errors.ErrTokenExpired)
			}
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return 0, errors.Wrap(err, errors.ErrTimeout, method+" "+path)
		}
		if ctx.Err() == context.Canceled {
			return 0, errors.Wrap(err, errors.ErrCanceled, method+" "+path)
		}
		return 0, errors.Wrap(err, errors.ErrBackendUnavailable, method+" "+path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, errors.Wrap(err, errors.ErrBackendUnavailable, "读取响应失败")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, statusError(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, errors.Wrap(err, errors.ErrBackendDecode, method+" "+path)
	}
	return resp.StatusCode, nil
}

// statusError 将后端错误状态码映射为应用错误
func statusError(status int, body []byte) *errors.AppError {
	detail := extractDetail(body)
	if detail == "" {
		detail = fmt.Sprintf("HTTP %d", status)
	}

	switch {
	case status == http.StatusUnauthorized:
		return errors.New(errors.ErrAuthentication, detail)
	case status == http.StatusForbidden:
		return errors.New(errors.ErrAuthorization, detail)
	case status == http.StatusBadRequest,
		status == http.StatusNotFound,
		status == http.StatusConflict,
		status == http.StatusUnprocessableEntity:
		// 回合、格子或道具已与服务端状态不一致
		return errors.New(errors.ErrStaleState, detail)
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return errors.New(errors.ErrTimeout, detail)
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable:
		return errors.New(errors.ErrBackendUnavailable, detail)
	default:
		return errors.Newf(errors.ErrBackendStatus, "HTTP %d: %s", status, detail)
	}
}

// extractDetail 提取后端错误信息（detail字段或原始文本）
func extractDetail(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if len(payload.Detail) > 0 {
			var s string
			if err := json.Unmarshal(payload.Detail, &s); err == nil {
				return s
			}
			return string(payload.Detail)
		}
		if payload.Message != "" {
			return payload.Message
		}
	}

	return utils.Truncate(string(body), 200)
}
