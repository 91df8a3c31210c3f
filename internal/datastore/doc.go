// Package datastore はリモートKVストアへの転送境界を提供する。
//
// パスで指定した位置へのCRUD操作をストアのREST APIに転送し、
// ストア側の失敗を統一されたエラー分類
// （NotFound / PermissionDenied / Invalid / Unavailable）に写す。
// 再試行やバックオフはストア側の責務であり、このパッケージは行わない。
package datastore
