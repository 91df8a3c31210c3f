// Package auth は資格情報の検証とアクセストークンの発行を提供する。
//
// ログイン時に資格情報ストアのパスワードハッシュと照合し、
// 成功した場合のみ署名付きアクセストークンを発行する。
// トークンの検証は署名と時刻のみから判定し、状態を持たない。
package auth
