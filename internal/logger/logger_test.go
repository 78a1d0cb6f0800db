package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/banquiz-board/internal/config"
	"go.uber.org/zap/zapcore"
)

func TestBuild_FileOutput(t *testing.T) {
	dir := t.TempDir()
	l, err := Build(&config.LogConfig{
		Level:  "debug",
		Format: "json",
		Output: "file",
		File: config.LogFileConfig{
			Path:     dir,
			Filename: "board.log",
			MaxSize:  1,
		},
		Modules: map[string]string{"game": "warn"},
	})
	require.NoError(t, err)

	l.Info("hello")
	l.Error("boom")
	require.NoError(t, l.Sync())

	game := WithModule("game")
	game.Info("模块info被过滤")
	game.Warn("模块warn")
	require.NoError(t, game.Sync())

	data, err := os.ReadFile(filepath.Join(dir, "board.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")

	errData, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errData), "boom")
	assert.NotContains(t, string(errData), "hello")

	// 模块日志器写入同一个文件，级别独立
	assert.Contains(t, string(data), "模块warn")
	assert.NotContains(t, string(data), "模块info被过滤")
}

func TestSetLevel(t *testing.T) {
	SetLevel("error")
	assert.Equal(t, zapcore.ErrorLevel, Level())

	SetLevel("unknown")
	assert.Equal(t, zapcore.InfoLevel, Level())
}

func TestGetLogger_Uninitialized(t *testing.T) {
	assert.NotNil(t, GetLogger())
	assert.NotNil(t, WithModule("backend"))
}
