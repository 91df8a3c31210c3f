// Package server はkvgateのHTTP APIを提供する。
//
// 認証エンドポイントでアクセストークンを発行し、保護されたエンドポイントでは
// トークン検証→流入制御の順でゲートを通過したリクエストのみを
// リモートKVストアに転送する。外部からアクセス可能な唯一の境界であり、
// ストア側の失敗は統一されたエラー分類で呼び出し元に返す。
package server
