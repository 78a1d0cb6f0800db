package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ErrorsTestSuite 错误包测试套件
type ErrorsTestSuite struct {
	suite.Suite
}

// 测试创建新错误
func (suite *ErrorsTestSuite) TestNew() {
	err := New(ErrInvalidParam)
	suite.NotNil(err)
	suite.Equal(ErrInvalidParam, err.Code)
	suite.Equal("无效的参数", err.Message)
	suite.Empty(err.Details)

	// 带详情的错误
	err = New(ErrSessionNotFound, "会话: abc")
	suite.Equal(ErrSessionNotFound, err.Code)
	suite.Equal("会话不存在", err.Message)
	suite.Equal("会话: abc", err.Details)

	// 多个详情
	err = New(ErrBackendStatus, "状态码: 500", "路径: /games/x/state")
	suite.Equal("状态码: 500; 路径: /games/x/state", err.Details)
}

// 测试格式化错误创建
func (suite *ErrorsTestSuite) TestNewf() {
	err := Newf(ErrInvalidTarget, "格子 %d 已作答", 12)
	suite.Equal(ErrInvalidTarget, err.Code)
	suite.Equal("格子 12 已作答", err.Details)
}

// 测试错误包装
func (suite *ErrorsTestSuite) TestWrap() {
	originalErr := errors.New("connection refused")
	wrappedErr := Wrap(originalErr, ErrBackendUnavailable)
	suite.NotNil(wrappedErr)
	suite.Equal(ErrBackendUnavailable, wrappedErr.Code)
	suite.Equal("connection refused", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)

	// 包装nil错误
	suite.Nil(Wrap(nil, ErrUnknown))

	// 包装已有的AppError，保留原始错误码
	appErr := New(ErrStaleState, "回合已结束")
	wrappedAppErr := Wrap(appErr, ErrBackendStatus, "提交答案")
	suite.Equal(ErrStaleState, wrappedAppErr.Code)
	suite.Contains(wrappedAppErr.Details, "提交答案")
}

// 测试格式化错误包装
func (suite *ErrorsTestSuite) TestWrapf() {
	originalErr := errors.New("unexpected EOF")
	wrappedErr := Wrapf(originalErr, ErrBackendDecode, "解析 %s 失败", "game state")
	suite.Equal(ErrBackendDecode, wrappedErr.Code)
	suite.Equal("解析 game state 失败", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)
}

// 测试错误码判断
func (suite *ErrorsTestSuite) TestIs() {
	err := New(ErrBusy)
	suite.True(Is(err, ErrBusy))
	suite.False(Is(err, ErrNotFound))
	suite.False(Is(nil, ErrBusy))
	suite.False(Is(errors.New("标准错误"), ErrUnknown))
}

// 测试获取错误码
func (suite *ErrorsTestSuite) TestGetCode() {
	suite.Equal(ErrTokenExpired, GetCode(New(ErrTokenExpired)))
	suite.Equal(ErrUnknown, GetCode(errors.New("标准错误")))
	suite.Equal(ErrorCode(0), GetCode(nil))
}

// 测试错误消息
func (suite *ErrorsTestSuite) TestError() {
	err := &AppError{
		Code:    ErrNoActiveTurn,
		Message: "当前没有进行中的回合",
	}
	suite.Equal("[2000] 当前没有进行中的回合", err.Error())

	err.Details = "game: abc"
	suite.Equal("[2000] 当前没有进行中的回合: game: abc", err.Error())
}

// 测试Unwrap
func (suite *ErrorsTestSuite) TestUnwrap() {
	originalErr := errors.New("原始错误")
	suite.Equal(originalErr, Wrap(originalErr, ErrUnknown).Unwrap())
	suite.Nil(New(ErrUnknown).Unwrap())
}

// 测试WithCause
func (suite *ErrorsTestSuite) TestWithCause() {
	cause := errors.New("SQL语法错误")
	err := New(ErrDatabaseQuery).WithCause(cause)
	suite.Equal(cause, err.Cause)
	suite.Equal("SQL语法错误", err.Details)

	// 保留原有Details
	err2 := New(ErrDatabaseQuery, "查询失败").WithCause(cause)
	suite.Equal("查询失败", err2.Details)
}

// 测试HTTP状态码映射
func (suite *ErrorsTestSuite) TestHTTPStatus() {
	testCases := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrInvalidParam, 400},
		{ErrSessionNotFound, 404},
		{ErrAuthorization, 403},
		{ErrTimeout, 408},
		{ErrBusy, 409},
		{ErrStaleState, 409},
		{ErrNoActiveTurn, 422},
		{ErrNoSelectedCell, 422},
		{ErrBackendUnavailable, 502},
		{ErrBackendDecode, 502},
		{ErrTokenExpired, 401},
		{ErrDatabaseConnect, 503},
		{ErrUnknown, 500},
	}

	for _, tc := range testCases {
		err := New(tc.code)
		suite.Equal(tc.expected, err.HTTPStatus(), "错误码 %d 应该返回HTTP状态码 %d", tc.code, tc.expected)
	}
}

// 测试可重试判断
func (suite *ErrorsTestSuite) TestIsRetryable() {
	for _, code := range []ErrorCode{ErrTimeout, ErrBackendUnavailable, ErrDatabaseConnect} {
		suite.True(IsRetryable(New(code)), "错误码 %d 应该是可重试的", code)
	}

	for _, code := range []ErrorCode{ErrStaleState, ErrInvalidTarget, ErrBackendStatus} {
		suite.False(IsRetryable(New(code)), "错误码 %d 不应该是可重试的", code)
	}

	suite.False(IsRetryable(nil))
}

// 测试调用栈捕获
func (suite *ErrorsTestSuite) TestStackCapture() {
	err := New(ErrUnknown)
	suite.Require().NotEmpty(err.Stack)
	suite.LessOrEqual(len(err.Stack), 10)
}

// 测试错误响应
func (suite *ErrorsTestSuite) TestErrorResponse() {
	err := New(ErrSessionNotFound, "会话不存在")
	response := NewErrorResponse(err, "req-123")

	suite.False(response.Success)
	suite.Equal(err.Code, response.Error.Code)
	suite.Equal("会话不存在", response.Error.Details)
	suite.Empty(response.Error.Stack)
	suite.Equal("req-123", response.RequestID)
	suite.Greater(response.Timestamp, int64(0))
}

// 测试未知错误码
func (suite *ErrorsTestSuite) TestUnknownErrorCode() {
	err := New(ErrorCode(99999))
	suite.Equal(ErrorCode(99999), err.Code)
	suite.Equal("未知错误", err.Message)
}

// 测试对局相关错误
func (suite *ErrorsTestSuite) TestGameErrors() {
	gameErrors := map[ErrorCode]string{
		ErrNoActiveTurn:   "当前没有进行中的回合",
		ErrNoSelectedCell: "未选择格子",
		ErrBusy:           "正在处理上一个操作",
		ErrStaleState:     "对局状态已过期",
		ErrInvalidTarget:  "无效的目标",
	}

	for code, expectedMsg := range gameErrors {
		suite.Equal(expectedMsg, New(code).Message)
	}
}

func TestErrorsSuite(t *testing.T) {
	suite.Run(t, new(ErrorsTestSuite))
}
