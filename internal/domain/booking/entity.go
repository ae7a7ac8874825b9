package booking

import (
	"time"

	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/inventory"
)

// Status は予約の状態を表す
type Status string

const (
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// PaymentStatus は支払いの状態を表す
type PaymentStatus string

const (
	PaymentPaid   PaymentStatus = "PAID"
	PaymentFailed PaymentStatus = "FAILED"
)

// Booking は予約エンティティを表す
// 予約時点のバケットキー（クラス・クォータ）を非正規化して保持し、
// キャンセル時の解放先は必ずこのコピーから導出する
type Booking struct {
	ID            string
	UserID        string
	TrainID       string
	Class         string
	Quota         string
	Status        Status
	PaymentStatus PaymentStatus
	Passengers    []Passenger
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Passenger は乗客を表す
// 予約と同時に作成され、以後変更・削除されない
type Passenger struct {
	ID        string
	BookingID string
	Name      string
	Age       int
	Gender    string
	BerthPref string
}

// NewBooking は新しい予約を作成する
func NewBooking(userID, trainID, class, quota string, passengers []Passenger, now time.Time) *Booking {
	return &Booking{
		UserID:        userID,
		TrainID:       trainID,
		Class:         class,
		Quota:         quota,
		Status:        StatusConfirmed,
		PaymentStatus: PaymentPaid,
		Passengers:    passengers,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// BucketKey は予約が座席を確保したバケットの識別子を返す
func (b *Booking) BucketKey() inventory.BucketKey {
	return inventory.BucketKey{TrainID: b.TrainID, Class: b.Class, Quota: b.Quota}
}

// SeatCount は予約が占有する座席数（= 乗客数）を返す
func (b *Booking) SeatCount() int {
	return len(b.Passengers)
}

// IsCancelled は予約がキャンセル済みかを返す
func (b *Booking) IsCancelled() bool {
	return b.Status == StatusCancelled
}

// Cancel は予約をキャンセル状態に遷移させる
// CANCELLED は終端状態であり再キャンセルはエラー
func (b *Booking) Cancel(now time.Time) error {
	if b.Status == StatusCancelled {
		return ErrBookingAlreadyCancelled
	}
	b.Status = StatusCancelled
	b.UpdatedAt = now
	return nil
}

// Validate は予約の検証を行う
func (b *Booking) Validate() error {
	if b.UserID == "" {
		return ErrUserIDRequired
	}
	if b.TrainID == "" {
		return ErrTrainIDRequired
	}
	if b.Class == "" {
		return ErrClassRequired
	}
	if b.Quota == "" {
		return ErrQuotaRequired
	}
	if len(b.Passengers) == 0 {
		return ErrPassengersRequired
	}
	for i := range b.Passengers {
		if err := b.Passengers[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate は乗客の検証を行う
func (p *Passenger) Validate() error {
	if p.Name == "" {
		return ErrPassengerNameRequired
	}
	if p.Age <= 0 {
		return ErrInvalidPassengerAge
	}
	if p.Gender == "" {
		return ErrPassengerGenderRequired
	}
	if p.BerthPref == "" {
		return ErrBerthPrefRequired
	}
	return nil
}
