package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/transaction"
)

type bookingRow struct {
	ID            string    `db:"id"`
	UserID        string    `db:"user_id"`
	TrainID       string    `db:"train_id"`
	ClassName     string    `db:"class_name"`
	Quota         string    `db:"quota"`
	Status        string    `db:"status"`
	PaymentStatus string    `db:"payment_status"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

type passengerRow struct {
	ID        string `db:"id"`
	BookingID string `db:"booking_id"`
	Name      string `db:"name"`
	Age       int    `db:"age"`
	Gender    string `db:"gender"`
	BerthPref string `db:"berth_pref"`
}

func toBookingEntity(row *bookingRow, passengers []booking.Passenger) *booking.Booking {
	return &booking.Booking{
		ID: row.ID, UserID: row.UserID, TrainID: row.TrainID,
		Class: row.ClassName, Quota: row.Quota,
		Status:        booking.Status(row.Status),
		PaymentStatus: booking.PaymentStatus(row.PaymentStatus),
		Passengers:    passengers,
		CreatedAt:     row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}
}

type BookingRepository struct{ db *sqlx.DB }

func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create は予約と乗客を同一トランザクションで作成する
func (r *BookingRepository) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return errors.New("トランザクションが不正です")
	}

	query := `INSERT INTO bookings (user_id, train_id, class_name, quota, status, payment_status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	if err := sqlxTx.QueryRowContext(ctx, query, b.UserID, b.TrainID, b.Class, b.Quota, string(b.Status), string(b.PaymentStatus), b.CreatedAt, b.UpdatedAt).Scan(&b.ID); err != nil {
		return fmt.Errorf("予約作成に失敗: %w", err)
	}

	for i := range b.Passengers {
		p := &b.Passengers[i]
		p.BookingID = b.ID
		insert := `INSERT INTO passengers (booking_id, name, age, gender, berth_pref) VALUES ($1, $2, $3, $4, $5) RETURNING id`
		if err := sqlxTx.QueryRowContext(ctx, insert, p.BookingID, p.Name, p.Age, p.Gender, p.BerthPref).Scan(&p.ID); err != nil {
			return fmt.Errorf("乗客作成に失敗: %w", err)
		}
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	var row bookingRow
	query := `SELECT id, user_id, train_id, class_name, quota, status, payment_status, created_at, updated_at FROM bookings WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	passengers, err := r.getPassengers(ctx, id)
	if err != nil {
		return nil, err
	}
	return toBookingEntity(&row, passengers), nil
}

func (r *BookingRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	var rows []bookingRow
	query := `SELECT id, user_id, train_id, class_name, quota, status, payment_status, created_at, updated_at FROM bookings WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	result := make([]*booking.Booking, len(rows))
	for i := range rows {
		passengers, err := r.getPassengers(ctx, rows[i].ID)
		if err != nil {
			return nil, err
		}
		result[i] = toBookingEntity(&rows[i], passengers)
	}
	return result, nil
}

// UpdateStatus は CONFIRMED の予約だけを更新する（compare-and-set）
// 並行キャンセルが競合しても勝者の1回だけが遷移に成功する
func (r *BookingRepository) UpdateStatus(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return errors.New("トランザクションが不正です")
	}

	query := `UPDATE bookings SET status = $1, payment_status = $2, updated_at = $3 WHERE id = $4 AND status = $5`
	result, err := sqlxTx.ExecContext(ctx, query, string(b.Status), string(b.PaymentStatus), b.UpdatedAt, b.ID, string(booking.StatusConfirmed))
	if err != nil {
		return fmt.Errorf("予約更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 1 {
		return nil
	}

	// 更新対象なし: 予約不在か遷移済みかを区別する
	var status string
	if err := sqlxTx.GetContext(ctx, &status, `SELECT status FROM bookings WHERE id = $1`, b.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return booking.ErrBookingNotFound
		}
		return fmt.Errorf("予約取得に失敗: %w", err)
	}
	return booking.ErrBookingAlreadyCancelled
}

// Delete は予約と従属する乗客を明示的に削除する
func (r *BookingRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM passengers WHERE booking_id = $1`, id); err != nil {
		return fmt.Errorf("乗客削除に失敗: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("予約削除に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return booking.ErrBookingNotFound
	}
	return tx.Commit()
}

func (r *BookingRepository) getPassengers(ctx context.Context, bookingID string) ([]booking.Passenger, error) {
	var rows []passengerRow
	query := `SELECT id, booking_id, name, age, gender, berth_pref FROM passengers WHERE booking_id = $1 ORDER BY id`
	if err := r.db.SelectContext(ctx, &rows, query, bookingID); err != nil {
		return nil, fmt.Errorf("乗客取得に失敗: %w", err)
	}
	passengers := make([]booking.Passenger, len(rows))
	for i, row := range rows {
		passengers[i] = booking.Passenger{
			ID: row.ID, BookingID: row.BookingID, Name: row.Name,
			Age: row.Age, Gender: row.Gender, BerthPref: row.BerthPref,
		}
	}
	return passengers, nil
}

var _ booking.Repository = (*BookingRepository)(nil)
