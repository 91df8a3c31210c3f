package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はkvgate全体の設定。プロセス起動時に一度だけ読み込み、
// 以降は読み取り専用の共有設定として各コンポーネントに注入する。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// SigningSecret はアクセストークン署名用のプロセス共通秘密鍵。
	SigningSecret string
	// TokenTTL は発行するアクセストークンの有効期間。
	TokenTTL time.Duration
	// RateLimitCapacity はアイデンティティごとのバケット容量（最大リクエスト数）。
	RateLimitCapacity int
	// RateLimitRefillPeriod は空のバケットが満タンに戻るまでの時間。
	RateLimitRefillPeriod time.Duration
	// CORSAllowedOrigins はCORSで許可するオリジンのリスト。
	CORSAllowedOrigins []string
	// DatastoreURL はリモートKVストアのベースURL。
	DatastoreURL string
	// DatastoreAuthSecret はリモートKVストアへの認証シークレット。空なら未使用。
	DatastoreAuthSecret string
	// CredentialDBPath は資格情報ストア（SQLite）のファイルパス。
	CredentialDBPath string
	// AdminName は起動時に作成する管理者アイデンティティ名。
	AdminName string
	// AdminPassword は管理者の初期パスワード。
	AdminPassword string
	// AdminDisabled は管理者アイデンティティを無効化するかどうか。
	AdminDisabled bool
}

// Load は.envファイル（存在する場合）と環境変数から設定を読み込む。
// 未設定の項目には開発用のデフォルト値を適用する。
func Load() (*Config, error) {
	// .envが無いのは本番環境では正常なので、エラーは無視する
	_ = godotenv.Load()

	ttl, err := parseDuration("TOKEN_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	refillPeriod, err := parseDuration("RATE_LIMIT_REFILL_PERIOD", 60*time.Second)
	if err != nil {
		return nil, err
	}
	capacity, err := parseInt("RATE_LIMIT_CAPACITY", 60)
	if err != nil {
		return nil, err
	}
	if capacity < 1 {
		return nil, fmt.Errorf("RATE_LIMIT_CAPACITYは1以上を指定すること: %d", capacity)
	}

	cfg := &Config{
		Port:                  getEnvOr("PORT", "8080"),
		SigningSecret:         getEnvOr("SIGNING_SECRET", "dev-secret-key"),
		TokenTTL:              ttl,
		RateLimitCapacity:     capacity,
		RateLimitRefillPeriod: refillPeriod,
		CORSAllowedOrigins:    splitAndTrim(getEnvOr("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		DatastoreURL:          getEnvOr("DATASTORE_URL", "http://localhost:9000"),
		DatastoreAuthSecret:   os.Getenv("DATASTORE_AUTH_SECRET"),
		CredentialDBPath:      getEnvOr("CREDENTIAL_DB_PATH", "/data/kvgate.db"),
		AdminName:             getEnvOr("ADMIN_NAME", "admin"),
		AdminPassword:         getEnvOr("ADMIN_PASSWORD", "admin-password-for-development"),
		AdminDisabled:         strings.EqualFold(getEnvOr("ADMIN_DISABLED", "false"), "true"),
	}
	return cfg, nil
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// parseDuration は環境変数をtime.Durationとして解釈する。
func parseDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%sの解釈に失敗: %w", key, err)
	}
	return d, nil
}

// parseInt は環境変数を整数として解釈する。
func parseInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%sの解釈に失敗: %w", key, err)
	}
	return n, nil
}

// splitAndTrim はカンマ区切り文字列を分割し、前後の空白を除去する。
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
