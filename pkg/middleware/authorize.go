package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/kvgate/pkg/token"
)

// TokenVerifier はアクセストークンを検証してクレームを返す。
type TokenVerifier interface {
	Verify(tokenString string) (*token.Claims, error)
}

// Admitter はアイデンティティ単位の流入可否を判定する。
type Admitter interface {
	TryAcquire(key string) bool
}

// headerKeyIdentity は認証済みアイデンティティを伝えるHTTPヘッダーキー。
const headerKeyIdentity = "X-Identity"

// Authorize はトークン検証と流入制御を1つのゲートにまとめたGinミドルウェアを返す。
// 検証の順序は認証→流入制御で固定する。認証に失敗したリクエストは
// 流入制御に到達せず、どのアイデンティティのバケットも消費しない。
// 両方のゲートを通過した場合のみ、コンテキストに "identity" と "is_admin" を設定する。
func Authorize(verifier TokenVerifier, limiter Admitter) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 欠落・形式不正・署名不正はすべて同じ応答にし、
		// どの失敗だったかを呼び出し元に漏らさない。
		authHeader := c.GetHeader("Authorization")
		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if authHeader == "" || !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":  "invalid_token",
				"error": "トークンが無効です",
			})
			return
		}

		claims, err := verifier.Verify(tokenString)
		if err != nil {
			if errors.Is(err, token.ErrExpiredToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"code":  "expired_token",
					"error": "トークンの有効期限が切れています",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":  "invalid_token",
				"error": "トークンが無効です",
			})
			return
		}

		if !limiter.TryAcquire(claims.Identity) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":  "rate_limit_exceeded",
				"error": "リクエスト数が上限を超えました。しばらく待ってから再試行してください",
			})
			return
		}

		c.Set("identity", claims.Identity)
		c.Set("is_admin", claims.Admin)
		c.Header(headerKeyIdentity, claims.Identity)
		c.Next()
	}
}

// RequireAdmin は管理者権限を要求するGinミドルウェアを返す。
// Authorizeミドルウェアが事前に適用されている必要がある。
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":  "permission_denied",
				"error": "管理者権限が必要です",
			})
			return
		}
		c.Next()
	}
}

// GetIdentity はGinコンテキストから認証済みアイデンティティ名を取得する。
// Authorizeミドルウェアが事前に適用されている必要がある。
func GetIdentity(c *gin.Context) string {
	v, _ := c.Get("identity")
	if identity, ok := v.(string); ok {
		return identity
	}
	return ""
}

// IsAdmin はGinコンテキストから管理者権限の有無を取得する。
func IsAdmin(c *gin.Context) bool {
	v, _ := c.Get("is_admin")
	if admin, ok := v.(bool); ok {
		return admin
	}
	return false
}
