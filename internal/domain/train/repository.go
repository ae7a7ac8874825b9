package train

import (
	"context"
	"time"
)

// SearchFilter は列車検索の絞り込み条件
// 空のフィールドは条件なしとして扱う
type SearchFilter struct {
	Source      string
	Destination string
	Date        *time.Time
}

// Repository は列車リポジトリのインターフェース
type Repository interface {
	// Create は新しい列車を作成する
	Create(ctx context.Context, train *Train) error

	// GetByID はIDから列車を取得する
	GetByID(ctx context.Context, id string) (*Train, error)

	// Search は条件に一致する列車一覧を取得する
	// 出発地・到着地は大文字小文字を区別しない完全一致
	Search(ctx context.Context, filter SearchFilter) ([]*Train, error)
}
