package credential

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/nao1215/kvgate/pkg/migration"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// ErrNotFound は指定した名前のアイデンティティが存在しない場合のエラー。
var ErrNotFound = errors.New("アイデンティティが見つからない")

// ErrAlreadyExists は同名のアイデンティティが既に存在する場合のエラー。
var ErrAlreadyExists = errors.New("アイデンティティが既に存在する")

// Identity は認証可能なプリンシパル。
type Identity struct {
	// ID はアイデンティティの一意識別子。
	ID string
	// Name はプリンシパル名。全体で一意。
	Name string
	// PasswordHash はbcryptでハッシュ化されたパスワード。
	PasswordHash string
	// Admin は管理者権限を持つかどうか。
	Admin bool
	// Disabled は無効化されているかどうか。無効なアイデンティティは認証できない。
	Disabled bool
}

// Store はSQLiteを使った資格情報ストア。
// アイデンティティ名からパスワードハッシュへの対応を保持する。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// Open は指定パスのSQLiteデータベースを開き、スキーマを適用してStoreを生成する。
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if err := migration.Run(db, migrationFS, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &Store{db: db}, nil
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// LookupHash は名前からパスワードハッシュを取得する。
// 存在しない場合はErrNotFoundを返す。
func (s *Store) LookupHash(ctx context.Context, name string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT password_hash FROM identities WHERE name = ?`, name).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("パスワードハッシュの取得に失敗: %w", err)
	}
	return hash, nil
}

// GetByName は名前からアイデンティティを取得する。
// 存在しない場合はErrNotFoundを返す。
func (s *Store) GetByName(ctx context.Context, name string) (*Identity, error) {
	var identity Identity
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, password_hash, is_admin, disabled FROM identities WHERE name = ?`, name,
	).Scan(&identity.ID, &identity.Name, &identity.PasswordHash, &identity.Admin, &identity.Disabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("アイデンティティの取得に失敗: %w", err)
	}
	return &identity, nil
}

// Create は新しいアイデンティティを作成する。パスワードはbcryptでハッシュ化して保存する。
// 同名のアイデンティティが存在する場合はErrAlreadyExistsを返す。
func (s *Store) Create(ctx context.Context, name, password string, admin bool) (*Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}

	identity := &Identity{
		ID:           uuid.New().String(),
		Name:         name,
		PasswordHash: string(hash),
		Admin:        admin,
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO identities (id, name, password_hash, is_admin, disabled) VALUES (?, ?, ?, ?, 0)`,
		identity.ID, identity.Name, identity.PasswordHash, identity.Admin)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("アイデンティティの作成に失敗: %w", err)
	}
	return identity, nil
}

// UpdatePassword は既存アイデンティティのパスワードハッシュをローテーションする。
func (s *Store) UpdatePassword(ctx context.Context, name, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE identities SET password_hash = ? WHERE name = ?`, string(hash), name)
	if err != nil {
		return fmt.Errorf("パスワードの更新に失敗: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureAdmin は管理者アイデンティティが存在することを保証する。
// 存在しなければ作成し、既に存在すれば何もしない。起動時に一度呼び出す。
func (s *Store) EnsureAdmin(ctx context.Context, name, password string, disabled bool) error {
	_, err := s.GetByName(ctx, name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	identity, err := s.Create(ctx, name, password, true)
	if err != nil {
		// 並行起動で先に作成された場合は成功扱いにする
		if errors.Is(err, ErrAlreadyExists) {
			return nil
		}
		return err
	}

	if disabled {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE identities SET disabled = 1 WHERE id = ?`, identity.ID); err != nil {
			return fmt.Errorf("管理者の無効化に失敗: %w", err)
		}
	}
	return nil
}

// isUniqueViolation はUNIQUE制約違反かどうかを判定する。
// ドライバが専用のエラー型を公開していないため、メッセージで判定する。
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE")
}
