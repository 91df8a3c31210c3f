package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/kvgate/internal/auth"
	"github.com/nao1215/kvgate/internal/config"
	"github.com/nao1215/kvgate/internal/credential"
	"github.com/nao1215/kvgate/internal/datastore"
	"github.com/nao1215/kvgate/pkg/middleware"
	"github.com/nao1215/kvgate/pkg/ratelimit"
	"github.com/nao1215/kvgate/pkg/token"
)

// Server はkvgateのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はプロセス共通の設定。
	cfg *config.Config
	// store は資格情報ストア。
	store *credential.Store
	// authService は資格情報の検証とトークン発行を行うサービス。
	authService *auth.Service
	// limiter はアイデンティティ単位の流入制御器。
	limiter *ratelimit.Limiter
	// datastore はリモートKVストアへのクライアント。
	datastore *datastore.Client
}

// NewServer は新しいkvgateサーバーを生成する。
// 資格情報ストアの初期化と管理者アイデンティティのブートストラップを行う。
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	store, err := credential.Open(cfg.CredentialDBPath)
	if err != nil {
		return nil, fmt.Errorf("資格情報ストアの初期化に失敗: %w", err)
	}

	if err := store.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminPassword, cfg.AdminDisabled); err != nil {
		store.Close()
		return nil, fmt.Errorf("管理者アイデンティティの作成に失敗: %w", err)
	}

	signer := token.NewSigner(cfg.SigningSecret, cfg.TokenTTL)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	s := &Server{
		router:      router,
		cfg:         cfg,
		store:       store,
		authService: auth.NewService(store, signer),
		limiter:     ratelimit.New(cfg.RateLimitCapacity, cfg.RateLimitRefillPeriod),
		datastore:   datastore.New(cfg.DatastoreURL, cfg.DatastoreAuthSecret),
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.cfg.Port))
}

// Close はサーバーが保持するリソースを解放する。
func (s *Server) Close() error {
	return s.store.Close()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// 認証エンドポイント（認証不要）
	authGroup := s.router.Group("/api/v1/auth")
	{
		authGroup.POST("/token", s.handleIssueToken())
	}

	// 認証と流入制御を通過したリクエストのみが到達するエンドポイント。
	// 認証失敗はどのバケットも消費しない。
	api := s.router.Group("/api/v1")
	api.Use(middleware.Authorize(s.authService, s.limiter))
	{
		api.GET("/auth/me", s.handleGetCurrentIdentity())
		api.POST("/auth/register", middleware.RequireAdmin(), s.handleRegister())

		data := api.Group("/data")
		{
			data.GET("/:collection", s.handleListItems())
			data.POST("/:collection", s.handleCreateItem())
			data.GET("/:collection/:id", s.handleGetItem())
			data.PUT("/:collection/:id", s.handleUpdateItem())
			data.DELETE("/:collection/:id", s.handleDeleteItem())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "kvgate"})
	})
}
