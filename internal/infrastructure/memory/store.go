// Package memory はテストおよびローカル実行用のインメモリ実装を提供する
// 帳簿はバケット単位の mutex で直列化し、バケット間は互いにブロックしない
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/train"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/transaction"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/user"
)

// Store は全リポジトリと帳簿のインメモリ実装
type Store struct {
	mu       sync.RWMutex
	trains   map[string]*train.Train
	buckets  map[inventory.BucketKey]*bucketState
	bookings map[string]*booking.Booking
	users    map[string]*user.User
	emails   map[string]string // email -> user ID
}

type bucketState struct {
	mu     sync.Mutex
	bucket inventory.Bucket
}

// NewStore は空のStoreを作成する
func NewStore() *Store {
	return &Store{
		trains:   make(map[string]*train.Train),
		buckets:  make(map[inventory.BucketKey]*bucketState),
		bookings: make(map[string]*booking.Booking),
		users:    make(map[string]*user.User),
		emails:   make(map[string]string),
	}
}

// --- transaction.Manager ---

type noopTx struct{}

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }

// Begin は何もしないトランザクションを返す
// インメモリ実装では各操作が個別にアトミックである
func (s *Store) Begin(ctx context.Context) (transaction.Tx, error) {
	return noopTx{}, nil
}

// --- train.Repository ---

func (s *Store) CreateTrain(ctx context.Context, t *train.Train) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = uuid.NewString()
	cp := *t
	s.trains[t.ID] = &cp
	return nil
}

func (s *Store) GetTrainByID(ctx context.Context, id string) (*train.Train, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trains[id]
	if !ok {
		return nil, train.ErrTrainNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Store) SearchTrains(ctx context.Context, filter train.SearchFilter) ([]*train.Train, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*train.Train
	for _, t := range s.trains {
		if filter.Source != "" && !strings.EqualFold(t.Source, filter.Source) {
			continue
		}
		if filter.Destination != "" && !strings.EqualFold(t.Destination, filter.Destination) {
			continue
		}
		if filter.Date != nil && !t.Date.Equal(*filter.Date) {
			continue
		}
		cp := *t
		result = append(result, &cp)
	}
	return result, nil
}

// --- inventory.Repository ---

func (s *Store) CreateBucket(ctx context.Context, b *inventory.Bucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := b.Key()
	if _, ok := s.buckets[key]; ok {
		return inventory.ErrBucketAlreadyExists
	}
	b.ID = uuid.NewString()
	s.buckets[key] = &bucketState{bucket: *b}
	return nil
}

func (s *Store) GetBucketByKey(ctx context.Context, key inventory.BucketKey) (*inventory.Bucket, error) {
	st, err := s.bucketState(key)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	cp := st.bucket
	return &cp, nil
}

func (s *Store) ListBucketsByTrainID(ctx context.Context, trainID string) ([]*inventory.Bucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*inventory.Bucket
	for _, st := range s.buckets {
		st.mu.Lock()
		if st.bucket.TrainID == trainID {
			cp := st.bucket
			result = append(result, &cp)
		}
		st.mu.Unlock()
	}
	return result, nil
}

// --- inventory.Ledger ---

// TryReserve は該当バケットの mutex 下で検査と加算を行う
func (s *Store) TryReserve(ctx context.Context, key inventory.BucketKey, count int) error {
	if count < 0 {
		return inventory.ErrInvalidSeatCount
	}
	if count == 0 {
		return nil
	}
	st, err := s.bucketState(key)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.bucket.BookedSeats+count > st.bucket.TotalSeats {
		return inventory.ErrInsufficientSeats
	}
	st.bucket.BookedSeats += count
	return nil
}

// Release は該当バケットの mutex 下で減算する（0で下限クランプ）
func (s *Store) Release(ctx context.Context, key inventory.BucketKey, count int) (int, error) {
	if count < 0 {
		return 0, inventory.ErrInvalidSeatCount
	}
	if count == 0 {
		return 0, nil
	}
	st, err := s.bucketState(key)
	if err != nil {
		return 0, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	released := count
	if released > st.bucket.BookedSeats {
		released = st.bucket.BookedSeats
	}
	st.bucket.BookedSeats -= released
	return released, nil
}

func (s *Store) Availability(ctx context.Context, key inventory.BucketKey) (int, error) {
	st, err := s.bucketState(key)
	if err != nil {
		return 0, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.bucket.Available(), nil
}

// --- inventory.Reconciler ---

// ReconcileBuckets は CONFIRMED 予約の乗客数から各バケットを再計算する
func (s *Store) ReconcileBuckets(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[inventory.BucketKey]int)
	for _, b := range s.bookings {
		if b.Status == booking.StatusConfirmed {
			counts[b.BucketKey()] += len(b.Passengers)
		}
	}

	corrected := 0
	for key, st := range s.buckets {
		st.mu.Lock()
		if st.bucket.BookedSeats != counts[key] {
			st.bucket.BookedSeats = counts[key]
			corrected++
		}
		st.mu.Unlock()
	}
	return corrected, nil
}

// --- booking.Repository ---

func (s *Store) CreateBooking(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = uuid.NewString()
	for i := range b.Passengers {
		b.Passengers[i].ID = uuid.NewString()
		b.Passengers[i].BookingID = b.ID
	}
	s.bookings[b.ID] = copyBooking(b)
	return nil
}

func (s *Store) GetBookingByID(ctx context.Context, id string) (*booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return copyBooking(b), nil
}

func (s *Store) GetBookingsByUserID(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*booking.Booking
	for _, b := range s.bookings {
		if b.UserID == userID {
			result = append(result, copyBooking(b))
		}
	}
	// 作成日時の降順（同時刻はIDで安定化）
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// UpdateBookingStatus は CONFIRMED の予約だけを更新する（compare-and-set）
// 判定と書き込みを同一ロック下で行うため、並行キャンセルは勝者の1回だけ成功する
func (s *Store) UpdateBookingStatus(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.bookings[b.ID]
	if !ok {
		return booking.ErrBookingNotFound
	}
	if stored.Status != booking.StatusConfirmed {
		return booking.ErrBookingAlreadyCancelled
	}
	stored.Status = b.Status
	stored.PaymentStatus = b.PaymentStatus
	stored.UpdatedAt = b.UpdatedAt
	return nil
}

func (s *Store) DeleteBooking(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[id]; !ok {
		return booking.ErrBookingNotFound
	}
	delete(s.bookings, id)
	return nil
}

// --- user.Repository ---

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.emails[u.Email]; ok {
		return user.ErrEmailAlreadyExists
	}
	u.ID = uuid.NewString()
	cp := *u
	s.users[u.ID] = &cp
	s.emails[u.Email] = u.ID
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[email]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *Store) bucketState(key inventory.BucketKey) (*bucketState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.buckets[key]
	if !ok {
		return nil, inventory.ErrBucketNotFound
	}
	return st, nil
}

func copyBooking(b *booking.Booking) *booking.Booking {
	cp := *b
	cp.Passengers = make([]booking.Passenger, len(b.Passengers))
	copy(cp.Passengers, b.Passengers)
	return &cp
}

