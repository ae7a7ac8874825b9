package booking

import (
	"context"

	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/transaction"
)

// Repository は予約リポジトリのインターフェース
// 予約と乗客は常に一体で永続化される
type Repository interface {
	// Create は予約と乗客を1つのトランザクションで作成する
	Create(ctx context.Context, tx transaction.Tx, booking *Booking) error

	// GetByID はIDから予約を取得する（乗客を含む）
	GetByID(ctx context.Context, id string) (*Booking, error)

	// GetByUserID はユーザーIDから予約一覧を取得する
	GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*Booking, error)

	// UpdateStatus は CONFIRMED の予約だけを更新する（compare-and-set）
	// 遷移済みなら ErrBookingAlreadyCancelled を返す（トランザクション必須）
	UpdateStatus(ctx context.Context, tx transaction.Tx, booking *Booking) error

	// Delete は予約を削除する
	// 乗客は予約に従属するため併せて削除される
	Delete(ctx context.Context, id string) error
}
