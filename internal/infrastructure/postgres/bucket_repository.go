package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/inventory"
)

type bucketRow struct {
	ID          string    `db:"id"`
	TrainID     string    `db:"train_id"`
	ClassName   string    `db:"class_name"`
	Quota       string    `db:"quota"`
	TotalSeats  int       `db:"total_seats"`
	BookedSeats int       `db:"booked_seats"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r *bucketRow) toEntity() *inventory.Bucket {
	return &inventory.Bucket{
		ID: r.ID, TrainID: r.TrainID, Class: r.ClassName, Quota: r.Quota,
		TotalSeats: r.TotalSeats, BookedSeats: r.BookedSeats,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

// BucketRepository は seat_classes テーブルに対するバケット定義リポジトリ兼
// 座席在庫 Ledger の実装
//
// TryReserve の検査と加算は単一の条件付きUPDATEで行うため、
// 直列化は行ロックに閉じており、別バケットの操作は互いにブロックしない
type BucketRepository struct{ db *sqlx.DB }

func NewBucketRepository(db *sqlx.DB) *BucketRepository { return &BucketRepository{db: db} }

func (r *BucketRepository) Create(ctx context.Context, b *inventory.Bucket) error {
	query := `INSERT INTO seat_classes (train_id, class_name, quota, total_seats, booked_seats, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, b.TrainID, b.Class, b.Quota, b.TotalSeats, b.BookedSeats, b.CreatedAt, b.UpdatedAt).Scan(&b.ID); err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			return inventory.ErrBucketAlreadyExists
		}
		return fmt.Errorf("バケット作成に失敗: %w", err)
	}
	return nil
}

func (r *BucketRepository) GetByKey(ctx context.Context, key inventory.BucketKey) (*inventory.Bucket, error) {
	var row bucketRow
	query := `SELECT id, train_id, class_name, quota, total_seats, booked_seats, created_at, updated_at FROM seat_classes WHERE train_id = $1 AND class_name = $2 AND quota = $3`
	if err := r.db.GetContext(ctx, &row, query, key.TrainID, key.Class, key.Quota); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inventory.ErrBucketNotFound
		}
		return nil, fmt.Errorf("バケット取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *BucketRepository) ListByTrainID(ctx context.Context, trainID string) ([]*inventory.Bucket, error) {
	var rows []bucketRow
	query := `SELECT id, train_id, class_name, quota, total_seats, booked_seats, created_at, updated_at FROM seat_classes WHERE train_id = $1 ORDER BY class_name, quota`
	if err := r.db.SelectContext(ctx, &rows, query, trainID); err != nil {
		return nil, fmt.Errorf("バケット一覧取得に失敗: %w", err)
	}
	buckets := make([]*inventory.Bucket, len(rows))
	for i := range rows {
		buckets[i] = rows[i].toEntity()
	}
	return buckets, nil
}

// TryReserve は booked_seats + count <= total_seats の検査と加算を
// 1つの条件付きUPDATEとしてアトミックに実行する
func (r *BucketRepository) TryReserve(ctx context.Context, key inventory.BucketKey, count int) error {
	if count < 0 {
		return inventory.ErrInvalidSeatCount
	}
	if count == 0 {
		return nil
	}

	query := `UPDATE seat_classes SET booked_seats = booked_seats + $1, updated_at = NOW() WHERE train_id = $2 AND class_name = $3 AND quota = $4 AND booked_seats + $1 <= total_seats`
	result, err := r.db.ExecContext(ctx, query, count, key.TrainID, key.Class, key.Quota)
	if err != nil {
		return fmt.Errorf("座席確保に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 1 {
		return nil
	}

	// 更新対象なし: バケット不在か空席不足かを区別する
	if _, err := r.GetByKey(ctx, key); err != nil {
		return err
	}
	return inventory.ErrInsufficientSeats
}

// Release は booked_seats を減算する（0で下限クランプ）
// 行ロックを取ってから減算量を決めるため、同一バケットの確保と競合しない
func (r *BucketRepository) Release(ctx context.Context, key inventory.BucketKey, count int) (int, error) {
	if count < 0 {
		return 0, inventory.ErrInvalidSeatCount
	}
	if count == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	var booked int
	query := `SELECT booked_seats FROM seat_classes WHERE train_id = $1 AND class_name = $2 AND quota = $3 FOR UPDATE`
	if err := tx.GetContext(ctx, &booked, query, key.TrainID, key.Class, key.Quota); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, inventory.ErrBucketNotFound
		}
		return 0, fmt.Errorf("バケット取得に失敗: %w", err)
	}

	released := count
	if released > booked {
		released = booked
	}
	if released > 0 {
		update := `UPDATE seat_classes SET booked_seats = booked_seats - $1, updated_at = NOW() WHERE train_id = $2 AND class_name = $3 AND quota = $4`
		if _, err := tx.ExecContext(ctx, update, released, key.TrainID, key.Class, key.Quota); err != nil {
			return 0, fmt.Errorf("座席解放に失敗: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("コミットに失敗: %w", err)
	}
	return released, nil
}

// Availability は残席数のスナップショットを返す
func (r *BucketRepository) Availability(ctx context.Context, key inventory.BucketKey) (int, error) {
	var available int
	query := `SELECT total_seats - booked_seats FROM seat_classes WHERE train_id = $1 AND class_name = $2 AND quota = $3`
	if err := r.db.GetContext(ctx, &available, query, key.TrainID, key.Class, key.Quota); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, inventory.ErrBucketNotFound
		}
		return 0, fmt.Errorf("残席取得に失敗: %w", err)
	}
	return available, nil
}

// ReconcileBuckets は CONFIRMED 予約の乗客数から booked_seats を再計算する
// 予約記録が真実の源であり、帳簿側のずれ（解放漏れ等）をここで修正する
func (r *BucketRepository) ReconcileBuckets(ctx context.Context) (int, error) {
	query := `
		UPDATE seat_classes sc
		SET booked_seats = sub.cnt, updated_at = NOW()
		FROM (
			SELECT sc2.id,
			       COALESCE((
			           SELECT COUNT(p.id)
			           FROM bookings b
			           JOIN passengers p ON p.booking_id = b.id
			           WHERE b.status = 'CONFIRMED'
			             AND b.train_id = sc2.train_id
			             AND b.class_name = sc2.class_name
			             AND b.quota = sc2.quota
			       ), 0) AS cnt
			FROM seat_classes sc2
		) sub
		WHERE sc.id = sub.id AND sc.booked_seats <> sub.cnt`
	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("バケット整合性チェックに失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

var (
	_ inventory.Repository = (*BucketRepository)(nil)
	_ inventory.Ledger     = (*BucketRepository)(nil)
	_ inventory.Reconciler = (*BucketRepository)(nil)
)
