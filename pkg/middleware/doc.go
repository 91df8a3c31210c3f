// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// アクセストークンの検証と流入制御を組み合わせた認可ゲート、
// 管理者権限チェック、CORS設定、パニックリカバリを含む。
package middleware
