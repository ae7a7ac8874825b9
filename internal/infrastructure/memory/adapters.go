package memory

import (
	"context"

	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/train"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/transaction"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/user"
)

// リポジトリインターフェースは各ドメインで Create 等の同名メソッドを
// 要求するため、Store への薄いビューとして提供する

// TrainRepo は train.Repository ビューを返す
func (s *Store) TrainRepo() train.Repository { return trainRepo{s} }

type trainRepo struct{ s *Store }

func (r trainRepo) Create(ctx context.Context, t *train.Train) error {
	return r.s.CreateTrain(ctx, t)
}

func (r trainRepo) GetByID(ctx context.Context, id string) (*train.Train, error) {
	return r.s.GetTrainByID(ctx, id)
}

func (r trainRepo) Search(ctx context.Context, filter train.SearchFilter) ([]*train.Train, error) {
	return r.s.SearchTrains(ctx, filter)
}

// BucketRepo は inventory.Repository ビューを返す
func (s *Store) BucketRepo() inventory.Repository { return bucketRepo{s} }

type bucketRepo struct{ s *Store }

func (r bucketRepo) Create(ctx context.Context, b *inventory.Bucket) error {
	return r.s.CreateBucket(ctx, b)
}

func (r bucketRepo) GetByKey(ctx context.Context, key inventory.BucketKey) (*inventory.Bucket, error) {
	return r.s.GetBucketByKey(ctx, key)
}

func (r bucketRepo) ListByTrainID(ctx context.Context, trainID string) ([]*inventory.Bucket, error) {
	return r.s.ListBucketsByTrainID(ctx, trainID)
}

// BookingRepo は booking.Repository ビューを返す
func (s *Store) BookingRepo() booking.Repository { return bookingRepo{s} }

type bookingRepo struct{ s *Store }

func (r bookingRepo) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	return r.s.CreateBooking(ctx, tx, b)
}

func (r bookingRepo) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	return r.s.GetBookingByID(ctx, id)
}

func (r bookingRepo) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	return r.s.GetBookingsByUserID(ctx, userID, limit, offset)
}

func (r bookingRepo) UpdateStatus(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	return r.s.UpdateBookingStatus(ctx, tx, b)
}

func (r bookingRepo) Delete(ctx context.Context, id string) error {
	return r.s.DeleteBooking(ctx, id)
}

// UserRepo は user.Repository ビューを返す
func (s *Store) UserRepo() user.Repository { return userRepo{s} }

type userRepo struct{ s *Store }

func (r userRepo) Create(ctx context.Context, u *user.User) error {
	return r.s.CreateUser(ctx, u)
}

func (r userRepo) GetByID(ctx context.Context, id string) (*user.User, error) {
	return r.s.GetUserByID(ctx, id)
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.s.GetUserByEmail(ctx, email)
}

var (
	_ inventory.Ledger     = (*Store)(nil)
	_ inventory.Reconciler = (*Store)(nil)
	_ transaction.Manager  = (*Store)(nil)
)
