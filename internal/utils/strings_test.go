package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	t.Run("不超长原样返回", func(t *testing.T) {
		assert.Equal(t, "abc", Truncate("abc", 5))
		assert.Equal(t, "abc", Truncate("abc", 3))
	})

	t.Run("按字节截断", func(t *testing.T) {
		assert.Equal(t, "ab", Truncate("abc", 2))
		assert.Equal(t, "", Truncate("abc", 0))
	})

	t.Run("不切开多字节字符", func(t *testing.T) {
		// 每个汉字三个字节
		assert.Equal(t, "回", Truncate("回合已结束", 4))
		assert.Equal(t, "回", Truncate("回合已结束", 5))
		assert.Equal(t, "回合", Truncate("回合已结束", 6))
		assert.Equal(t, "", Truncate("回合", 2))
		assert.Equal(t, "Chlo", Truncate("Chloé", 5))

		long := strings.Repeat("格子已被作答", 50)
		for n := 0; n < 40; n++ {
			out := Truncate(long, n)
			assert.True(t, utf8.ValidString(out), "n=%d", n)
			assert.LessOrEqual(t, len(out), n)
		}
	})
}
