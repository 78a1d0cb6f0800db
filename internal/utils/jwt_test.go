package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"
)

// JWTTestSuite 令牌检查测试套件
type JWTTestSuite struct {
	suite.Suite
}

func (suite *JWTTestSuite) sign(exp time.Time) string {
	claims := &TokenClaims{
		UserID:    42,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice@example.com",
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	suite.Require().NoError(err)
	return token
}

// 测试解析令牌（不需要密钥）
func (suite *JWTTestSuite) TestInspectToken() {
	token := suite.sign(time.Now().Add(time.Hour))

	claims, err := InspectToken(token)
	suite.NoError(err)
	suite.Equal(int64(42), claims.UserID)
	suite.Equal("alice@example.com", claims.Subject)
	suite.Equal("access", claims.TokenType)
}

// 测试无效令牌
func (suite *JWTTestSuite) TestInspectInvalidToken() {
	_, err := InspectToken("")
	suite.ErrorIs(err, ErrInvalidToken)

	_, err = InspectToken("not.a.token")
	suite.ErrorIs(err, ErrInvalidToken)
}

// 测试过期检查
func (suite *JWTTestSuite) TestCheckToken() {
	valid := suite.sign(time.Now().Add(time.Hour))
	_, err := CheckToken(valid, 5*time.Second)
	suite.NoError(err)

	expired := suite.sign(time.Now().Add(-time.Minute))
	claims, err := CheckToken(expired, 0)
	suite.ErrorIs(err, ErrExpiredToken)
	suite.NotNil(claims)

	// 在宽限期内即将过期
	soon := suite.sign(time.Now().Add(2 * time.Second))
	_, err = CheckToken(soon, 10*time.Second)
	suite.ErrorIs(err, ErrExpiredToken)
}

// 测试过期时间
func (suite *JWTTestSuite) TestTokenExpiry() {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	got, ok := TokenExpiry(suite.sign(exp))
	suite.True(ok)
	suite.True(got.Equal(exp))

	_, ok = TokenExpiry("garbage")
	suite.False(ok)
}

func (suite *JWTTestSuite) TestExpiresWithin_NoExp() {
	c := &TokenClaims{}
	suite.False(c.ExpiresWithin(time.Now(), time.Hour))
}

func TestJWTTestSuite(t *testing.T) {
	suite.Run(t, new(JWTTestSuite))
}
