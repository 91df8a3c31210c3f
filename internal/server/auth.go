package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/kvgate/internal/auth"
	"github.com/nao1215/kvgate/internal/credential"
	"github.com/nao1215/kvgate/pkg/middleware"
)

// issueTokenRequest はトークン発行リクエストのJSON構造。
type issueTokenRequest struct {
	// Username はプリンシパル名。
	Username string `json:"username" binding:"required"`
	// Password は平文パスワード。
	Password string `json:"password" binding:"required"`
}

// registerRequest はアイデンティティ登録リクエストのJSON構造。
type registerRequest struct {
	// Username はプリンシパル名。
	Username string `json:"username" binding:"required,max=100"`
	// Password は平文パスワード。
	Password string `json:"password" binding:"required,min=8"`
	// Admin は管理者権限を付与するかどうか。
	Admin bool `json:"admin"`
}

// handleIssueToken は資格情報を検証してアクセストークンを発行するハンドラを返す。
func (s *Server) handleIssueToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req issueTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":  "validation_error",
				"error": "usernameとpasswordは必須です",
			})
			return
		}

		tokenString, err := s.authService.Issue(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				log.Printf("ログイン失敗: username=%s", req.Username)
				c.JSON(http.StatusUnauthorized, gin.H{
					"code":  "invalid_credentials",
					"error": "名前またはパスワードが正しくありません",
				})
				return
			}
			log.Printf("トークン発行エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":  "internal_error",
				"error": "トークンの発行に失敗しました",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"access_token": tokenString,
			"token_type":   "bearer",
		})
	}
}

// handleGetCurrentIdentity は認証済みアイデンティティの情報を返すハンドラを返す。
func (s *Server) handleGetCurrentIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := middleware.GetIdentity(c)

		identity, err := s.store.GetByName(c.Request.Context(), name)
		if err != nil {
			// トークンは有効だがアイデンティティが削除されている場合
			if errors.Is(err, credential.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{
					"code":  "not_found",
					"error": "アイデンティティが見つかりません",
				})
				return
			}
			log.Printf("アイデンティティ取得エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":  "internal_error",
				"error": "内部エラーが発生しました",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"id":       identity.ID,
			"username": identity.Name,
			"is_admin": identity.Admin,
			"disabled": identity.Disabled,
		})
	}
}

// handleRegister は新しいアイデンティティを登録するハンドラを返す。
// 管理者のみが呼び出せる。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":  "validation_error",
				"error": "リクエスト内容が不正です。usernameは必須、passwordは8文字以上",
			})
			return
		}
		if !namePattern.MatchString(req.Username) {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":  "validation_error",
				"error": "usernameは英数字・アンダースコア・ハイフンのみ使用できます",
			})
			return
		}

		identity, err := s.store.Create(c.Request.Context(), req.Username, req.Password, req.Admin)
		if err != nil {
			if errors.Is(err, credential.ErrAlreadyExists) {
				c.JSON(http.StatusConflict, gin.H{
					"code":  "already_exists",
					"error": "同名のアイデンティティが既に存在します",
				})
				return
			}
			log.Printf("アイデンティティ登録エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":  "internal_error",
				"error": "アイデンティティの登録に失敗しました",
			})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"id":       identity.ID,
			"username": identity.Name,
			"is_admin": identity.Admin,
		})
	}
}
