// Package ratelimit はトークンバケット方式の流入制御を提供する。
//
// アイデンティティごとに独立したバケットを持ち、リクエストのたびに
// 経過時間分のトークンを補充してから1つ消費する。バケット間で
// ロックを共有しないため、別アイデンティティのリクエスト同士が
// 競合することはない。
package ratelimit
