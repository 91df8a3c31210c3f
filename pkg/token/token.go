package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken はトークンが不正（署名不一致・形式不正・クレーム欠落）な場合のエラー。
// 失敗理由を呼び出し元に漏らさないため、期限切れ以外の失敗はすべてこのエラーに集約する。
var ErrInvalidToken = errors.New("トークンが無効")

// ErrExpiredToken はトークンの有効期限が切れている場合のエラー。
var ErrExpiredToken = errors.New("トークンの有効期限切れ")

// issuer は発行者クレームに設定するサービス名。
const issuer = "kvgate"

// Claims はアクセストークンのクレーム（ペイロード）を表す。
// 認証済みアイデンティティをリクエスト処理全体に伝播するために使用する。
type Claims struct {
	jwt.RegisteredClaims
	// Identity は認証済みプリンシパルの名前。
	Identity string `json:"identity"`
	// Admin は管理者権限を持つかどうか。
	Admin bool `json:"admin"`
}

// Signer はアクセストークンの発行と検証を行う。
// 署名鍵と有効期限はプロセス起動時に固定され、以降変更されない。
type Signer struct {
	// secret はHMAC署名用の共有秘密鍵。
	secret []byte
	// ttl は発行するトークンの有効期間。
	ttl time.Duration
}

// NewSigner は新しいSignerを生成する。
func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Sign はアイデンティティ情報から署名済みアクセストークンを生成する。
// 有効期限は発行時刻 + TTL。発行したトークンはサーバー側に保存せず、
// 有効性は検証のたびに署名と時刻から再導出する。
func (s *Signer) Sign(identity string, admin bool) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   identity,
		},
		Identity: identity,
		Admin:    admin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// Verify はトークン文字列を検証し、クレームを返す。
// 署名が一致しHS256で署名されており、かつ現在時刻が有効期限より前の場合のみ成功する。
// 期限切れはErrExpiredToken、それ以外の失敗はすべてErrInvalidTokenを返す。
// 副作用はなく、外部状態を参照しない。
func (s *Signer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.Identity == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
