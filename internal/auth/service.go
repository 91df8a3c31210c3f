package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/nao1215/kvgate/internal/credential"
	"github.com/nao1215/kvgate/pkg/token"
)

// ErrInvalidCredentials は名前またはパスワードが正しくない場合のエラー。
// アイデンティティが存在しない場合も同じエラーにし、名前の存在有無を漏らさない。
var ErrInvalidCredentials = errors.New("名前またはパスワードが正しくない")

// Service は資格情報の検証とアクセストークンの発行・検証を行う。
type Service struct {
	// store は資格情報ストア。
	store *credential.Store
	// signer はアクセストークンの署名・検証器。
	signer *token.Signer
}

// NewService は新しい認証サービスを生成する。
func NewService(store *credential.Store, signer *token.Signer) *Service {
	return &Service{
		store:  store,
		signer: signer,
	}
}

// Issue は名前とパスワードを検証し、成功すれば署名済みアクセストークンを発行する。
// パスワードの比較はbcryptの定数時間比較で行う。アイデンティティが存在しない、
// パスワードが一致しない、無効化されている、のいずれの場合も
// ErrInvalidCredentialsを返す。
func (s *Service) Issue(ctx context.Context, name, password string) (string, error) {
	identity, err := s.store.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			// 名前が存在しない場合もハッシュ比較と同等のコストをかけ、
			// 応答時間から存在有無を推測されにくくする
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("アイデンティティの参照に失敗: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	if identity.Disabled {
		return "", ErrInvalidCredentials
	}

	signed, err := s.signer.Sign(identity.Name, identity.Admin)
	if err != nil {
		return "", fmt.Errorf("トークンの発行に失敗: %w", err)
	}
	return signed, nil
}

// Verify はアクセストークンを検証してクレームを返す。副作用はない。
// 失敗時はtoken.ErrInvalidTokenまたはtoken.ErrExpiredTokenを返す。
func (s *Service) Verify(tokenString string) (*token.Claims, error) {
	return s.signer.Verify(tokenString)
}

// dummyHash は存在しないアイデンティティへの比較に使うbcryptハッシュ。
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("kvgate-dummy-password"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}()
