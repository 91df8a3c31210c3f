// Package credential はアイデンティティと資格情報の永続化を提供する。
//
// アイデンティティ名からbcryptパスワードハッシュへの対応をSQLiteに保持し、
// 認証サービスからの参照契約（名前→ハッシュ）を実装する。
// 起動時の管理者ブートストラップもこのパッケージが担う。
package credential
