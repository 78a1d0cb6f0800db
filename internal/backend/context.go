package backend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

type tokenKey struct{}

// WithToken 将访问令牌放入上下文，后端请求时透传
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext 从上下文取出访问令牌
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok && token != ""
}

// TokenFingerprint 令牌摘要，用来区分调用方而不保存令牌本身；没有令牌时为空
func TokenFingerprint(ctx context.Context) string {
	token, ok := TokenFromContext(ctx)
	if !ok {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
