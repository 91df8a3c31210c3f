// Package token は署名付きアクセストークンの発行と検証を提供する。
//
// トークンはHS256で署名されたJWTで、アイデンティティ名と発行時刻、
// 有効期限を含む。サーバー側に状態を持たないため、検証だけなら
// どのプロセスでも実行できる。有効期限前の失効手段は意図的に存在しない。
package token
