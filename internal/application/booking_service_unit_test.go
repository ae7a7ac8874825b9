package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/train"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/transaction"
	redisinfra "github.com/sanosuguru/go-train-ticket-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-train-ticket-booking/internal/pkg/clock"
)

// === Mock implementations ===

// MockTxManager implements transaction.Manager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(transaction.Tx), args.Error(1)
}

// MockTx implements transaction.Tx
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTx) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// MockBookingRepository implements booking.Repository
type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	args := m.Called(ctx, tx, b)
	return args.Error(0)
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Booking), args.Error(1)
}

func (m *MockBookingRepository) UpdateStatus(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	args := m.Called(ctx, tx, b)
	return args.Error(0)
}

func (m *MockBookingRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockTrainRepository implements train.Repository
type MockTrainRepository struct {
	mock.Mock
}

func (m *MockTrainRepository) Create(ctx context.Context, t *train.Train) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTrainRepository) GetByID(ctx context.Context, id string) (*train.Train, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*train.Train), args.Error(1)
}

func (m *MockTrainRepository) Search(ctx context.Context, filter train.SearchFilter) ([]*train.Train, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*train.Train), args.Error(1)
}

// MockLedger implements inventory.Ledger
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) TryReserve(ctx context.Context, key inventory.BucketKey, count int) error {
	args := m.Called(ctx, key, count)
	return args.Error(0)
}

func (m *MockLedger) Release(ctx context.Context, key inventory.BucketKey, count int) (int, error) {
	args := m.Called(ctx, key, count)
	return args.Int(0), args.Error(1)
}

func (m *MockLedger) Availability(ctx context.Context, key inventory.BucketKey) (int, error) {
	args := m.Called(ctx, key)
	return args.Int(0), args.Error(1)
}

// MockLockManager implements redisinfra.LockManagerInterface
type MockLockManager struct {
	mock.Mock
}

func (m *MockLockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (redisinfra.Lock, error) {
	args := m.Called(ctx, key, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(redisinfra.Lock), args.Error(1)
}

func (m *MockLockManager) AcquireLockWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryInterval time.Duration) (redisinfra.Lock, error) {
	args := m.Called(ctx, key, ttl, maxRetries, retryInterval)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(redisinfra.Lock), args.Error(1)
}

// MockLock implements redisinfra.Lock
type MockLock struct {
	mock.Mock
}

func (m *MockLock) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockLock) Extend(ctx context.Context, ttl time.Duration) error {
	args := m.Called(ctx, ttl)
	return args.Error(0)
}

// === Test helper ===

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type bookingDeps struct {
	txManager   *MockTxManager
	tx          *MockTx
	bookingRepo *MockBookingRepository
	trainRepo   *MockTrainRepository
	ledger      *MockLedger
	service     *BookingService
}

func newBookingDeps() *bookingDeps {
	txm := new(MockTxManager)
	tx := new(MockTx)
	bookingRepo := new(MockBookingRepository)
	trainRepo := new(MockTrainRepository)
	ledger := new(MockLedger)

	service := NewBookingService(txm, bookingRepo, trainRepo, ledger, nil, nil, nil, clock.Fixed{T: testNow})

	return &bookingDeps{
		txManager:   txm,
		tx:          tx,
		bookingRepo: bookingRepo,
		trainRepo:   trainRepo,
		ledger:      ledger,
		service:     service,
	}
}

func validCreateInput() CreateBookingInput {
	return CreateBookingInput{
		UserID:  "user-1",
		TrainID: "train-1",
		Class:   "SL",
		Quota:   "GENERAL",
		Passengers: []PassengerInput{
			{Name: "田中太郎", Age: 35, Gender: "M", BerthPref: "LOWER"},
			{Name: "田中花子", Age: 32, Gender: "F", BerthPref: "UPPER"},
		},
	}
}

func testBucketKey() inventory.BucketKey {
	return inventory.BucketKey{TrainID: "train-1", Class: "SL", Quota: "GENERAL"}
}

// === Tests ===

func TestBookingService_CreateBooking_Success(t *testing.T) {
	deps := newBookingDeps()
	ctx := context.Background()
	input := validCreateInput()

	deps.trainRepo.On("GetByID", ctx, "train-1").
		Return(&train.Train{ID: "train-1", Name: "Rajdhani Express"}, nil)
	deps.ledger.On("TryReserve", ctx, testBucketKey(), 2).Return(nil)

	deps.txManager.On("Begin", ctx).Return(deps.tx, nil)
	deps.tx.On("Rollback").Return(nil)
	deps.tx.On("Commit").Return(nil)
	deps.bookingRepo.On("Create", ctx, deps.tx, mock.AnythingOfType("*booking.Booking")).Return(nil)

	result, err := deps.service.CreateBooking(ctx, input)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "user-1", result.UserID)
	assert.Equal(t, booking.StatusConfirmed, result.Status)
	assert.Equal(t, booking.PaymentPaid, result.PaymentStatus)
	assert.Equal(t, 2, result.SeatCount())
	assert.Equal(t, testNow, result.CreatedAt)

	deps.ledger.AssertExpectations(t)
	deps.bookingRepo.AssertExpectations(t)
	// 成功時に解放が走らないこと
	deps.ledger.AssertNotCalled(t, "Release")
}

func TestBookingService_CreateBooking_ValidationError(t *testing.T) {
	deps := newBookingDeps()
	ctx := context.Background()

	input := validCreateInput()
	input.Passengers = nil

	result, err := deps.service.CreateBooking(ctx, input)

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, booking.ErrPassengersRequired)
	deps.ledger.AssertNotCalled(t, "TryReserve")
}

func TestBookingService_CreateBooking_TrainNotFound(t *testing.T) {
	deps := newBookingDeps()
	ctx := context.Background()

	deps.trainRepo.On("GetByID", ctx, "train-1").Return(nil, train.ErrTrainNotFound)

	result, err := deps.service.CreateBooking(ctx, validCreateInput())

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, train.ErrTrainNotFound)
	deps.ledger.AssertNotCalled(t, "TryReserve")
}

func TestBookingService_CreateBooking_InsufficientSeats(t *testing.T) {
	deps := newBookingDeps()
	ctx := context.Background()

	deps.trainRepo.On("GetByID", ctx, "train-1").
		Return(&train.Train{ID: "train-1"}, nil)
	deps.ledger.On("TryReserve", ctx, testBucketKey(), 2).
		Return(inventory.ErrInsufficientSeats)

	result, err := deps.service.CreateBooking(ctx, validCreateInput())

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, inventory.ErrInsufficientSeats)
	deps.txManager.AssertNotCalled(t, "Begin")
}

func TestBookingService_CreateBooking_PersistFailureCompensates(t *testing.T) {
	deps := newBookingDeps()
	ctx := context.Background()

	deps.trainRepo.On("GetByID", ctx, "train-1").
		Return(&train.Train{ID: "train-1"}, nil)
	deps.ledger.On("TryReserve", ctx, testBucketKey(), 2).Return(nil)

	deps.txManager.On("Begin", ctx).Return(deps.tx, nil)
	deps.tx.On("Rollback").Return(nil)
	deps.bookingRepo.On("Create", ctx, deps.tx, mock.AnythingOfType("*booking.Booking")).
		Return(errors.New("insert error"))

	// 永続化失敗後に確保済み座席が解放されること
	deps.ledger.On("Release", ctx, testBucketKey(), 2).Return(2, nil)

	result, err := deps.service.CreateBooking(ctx, validCreateInput())

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "予約の保存に失敗")
	deps.ledger.AssertCalled(t, "Release", ctx, testBucketKey(), 2)
}

func TestBookingService_CreateBooking_CompensationRetries(t *testing.T) {
	deps := newBookingDeps()
	ctx := context.Background()

	deps.trainRepo.On("GetByID", ctx, "train-1").
		Return(&train.Train{ID: "train-1"}, nil)
	deps.ledger.On("TryReserve", ctx, testBucketKey(), 2).Return(nil)

	deps.txManager.On("Begin", ctx).Return(nil, errors.New("db down"))

	// 1回目の解放は失敗、2回目で成功
	deps.ledger.On("Release", ctx, testBucketKey(), 2).
		Return(0, errors.New("release error")).Once()
	deps.ledger.On("Release", ctx, testBucketKey(), 2).
		Return(2, nil).Once()

	result, err := deps.service.CreateBooking(ctx, validCreateInput())

	require.Error(t, err)
	assert.Nil(t, result)
	deps.ledger.AssertNumberOfCalls(t, "Release", 2)
}

func TestBookingService_CreateBooking_WithDistributedLock(t *testing.T) {
	txm := new(MockTxManager)
	tx := new(MockTx)
	bookingRepo := new(MockBookingRepository)
	trainRepo := new(MockTrainRepository)
	ledger := new(MockLedger)
	lockManager := new(MockLockManager)
	lock := new(MockLock)

	service := NewBookingService(txm, bookingRepo, trainRepo, ledger, lockManager, nil, nil, clock.Fixed{T: testNow})
	ctx := context.Background()

	trainRepo.On("GetByID", ctx, "train-1").Return(&train.Train{ID: "train-1"}, nil)
	lockManager.On("AcquireLockWithRetry", ctx, "bucket:train-1:SL:GENERAL", bucketLockTTL, 3, 100*time.Millisecond).
		Return(lock, nil)
	lock.On("Release", ctx).Return(nil)
	ledger.On("TryReserve", ctx, testBucketKey(), 2).Return(nil)
	txm.On("Begin", ctx).Return(tx, nil)
	tx.On("Rollback").Return(nil)
	tx.On("Commit").Return(nil)
	bookingRepo.On("Create", ctx, tx, mock.AnythingOfType("*booking.Booking")).Return(nil)

	result, err := service.CreateBooking(ctx, validCreateInput())

	require.NoError(t, err)
	require.NotNil(t, result)
	lockManager.AssertExpectations(t)
	lock.AssertExpectations(t)
}

func TestBookingService_CancelBooking_Success(t *testing.T) {
	deps := newBookingDeps()
	ctx := context.Background()

	b := booking.NewBooking("user-1", "train-1", "SL", "GENERAL", []booking.Passenger{
		{Name: "田中太郎", Age: 35, Gender: "M", BerthPref: "LOWER"},
		{Name: "田中花子", Age: 32, Gender: "F", BerthPref: "UPPER"},
	}, testNow)
	b.ID = "booking-1"

	deps.bookingRepo.On("GetByID", ctx, "booking-1").Return(b, nil)
	deps.txManager.On("Begin", ctx).Return(deps.tx, nil)
	deps.tx.On("Rollback").Return(nil)
	deps.tx.On("Commit").Return(nil)
	deps.bookingRepo.On("UpdateStatus", ctx, deps.tx, b).Return(nil)
	deps.ledger.On("Release", ctx, testBucketKey(), 2).Return(2, nil)

	result, err := deps.service.CancelBooking(ctx, "user-1", "booking-1")

	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, result.Status)
	deps.ledger.AssertExpectations(t)
}

func TestBookingService_CancelBooking_NotFound(t *testing.T) {
	deps := newBookingDeps()
	ctx := context.Background()

	deps.bookingRepo.On("GetByID", ctx, "nonexistent").Return(nil, booking.ErrBookingNotFound)

	result, err := deps.service.CancelBooking(ctx, "user-1", "nonexistent")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, booking.ErrBookingNotFound)
}

func TestBookingService_CancelBooking_OtherUsersBooking(t *testing.T) {
	deps := newBookingDeps()
	ctx := context.Background()

	b := booking.NewBooking("user-2", "train-1", "SL", "GENERAL", []booking.Passenger{
		{Name: "佐藤一郎", Age: 40, Gender: "M", BerthPref: "LOWER"},
	}, testNow)
	b.ID = "booking-1"
	deps.bookingRepo.On("GetByID", ctx, "booking-1").Return(b, nil)

	result, err := deps.service.CancelBooking(ctx, "user-1", "booking-1")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, booking.ErrBookingNotFound)
	deps.ledger.AssertNotCalled(t, "Release")
}

func TestBookingService_CancelBooking_AlreadyCancelled(t *testing.T) {
	deps := newBookingDeps()
	ctx := context.Background()

	b := booking.NewBooking("user-1", "train-1", "SL", "GENERAL", []booking.Passenger{
		{Name: "田中太郎", Age: 35, Gender: "M", BerthPref: "LOWER"},
	}, testNow)
	b.ID = "booking-1"
	require.NoError(t, b.Cancel(testNow))

	deps.bookingRepo.On("GetByID", ctx, "booking-1").Return(b, nil)

	result, err := deps.service.CancelBooking(ctx, "user-1", "booking-1")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, booking.ErrBookingAlreadyCancelled)
	// 二重解放されないこと
	deps.ledger.AssertNotCalled(t, "Release")
}

// 取得時点ではCONFIRMEDでも、遷移のcompare-and-setに敗れたキャンセルは
// キャンセル済みエラーになり、解放を行わない
func TestBookingService_CancelBooking_LosesStatusRace(t *testing.T) {
	deps := newBookingDeps()
	ctx := context.Background()

	b := booking.NewBooking("user-1", "train-1", "SL", "GENERAL", []booking.Passenger{
		{Name: "田中太郎", Age: 35, Gender: "M", BerthPref: "LOWER"},
		{Name: "田中花子", Age: 32, Gender: "F", BerthPref: "UPPER"},
	}, testNow)
	b.ID = "booking-1"

	deps.bookingRepo.On("GetByID", ctx, "booking-1").Return(b, nil)
	deps.txManager.On("Begin", ctx).Return(deps.tx, nil)
	deps.tx.On("Rollback").Return(nil)
	deps.bookingRepo.On("UpdateStatus", ctx, deps.tx, b).
		Return(booking.ErrBookingAlreadyCancelled)

	result, err := deps.service.CancelBooking(ctx, "user-1", "booking-1")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, booking.ErrBookingAlreadyCancelled)
	// 敗者は解放してはならない（二重解放の防止）
	deps.ledger.AssertNotCalled(t, "Release")
}

func TestBookingService_CancelBooking_ShortRelease(t *testing.T) {
	deps := newBookingDeps()
	ctx := context.Background()

	b := booking.NewBooking("user-1", "train-1", "SL", "GENERAL", []booking.Passenger{
		{Name: "田中太郎", Age: 35, Gender: "M", BerthPref: "LOWER"},
		{Name: "田中花子", Age: 32, Gender: "F", BerthPref: "UPPER"},
	}, testNow)
	b.ID = "booking-1"

	deps.bookingRepo.On("GetByID", ctx, "booking-1").Return(b, nil)
	deps.txManager.On("Begin", ctx).Return(deps.tx, nil)
	deps.tx.On("Rollback").Return(nil)
	deps.tx.On("Commit").Return(nil)
	deps.bookingRepo.On("UpdateStatus", ctx, deps.tx, b).Return(nil)

	// 帳簿側の予約数が足りず、解放は1席に切り詰められる
	deps.ledger.On("Release", ctx, testBucketKey(), 2).Return(1, nil)

	result, err := deps.service.CancelBooking(ctx, "user-1", "booking-1")

	// キャンセル自体は成功する
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, result.Status)
}

func TestBookingService_GetBookingDetails(t *testing.T) {
	deps := newBookingDeps()
	ctx := context.Background()

	b := booking.NewBooking("user-1", "train-1", "SL", "GENERAL", []booking.Passenger{
		{Name: "田中太郎", Age: 35, Gender: "M", BerthPref: "LOWER"},
	}, testNow)
	b.ID = "booking-1"

	deps.bookingRepo.On("GetByID", ctx, "booking-1").Return(b, nil)
	deps.trainRepo.On("GetByID", ctx, "train-1").
		Return(&train.Train{ID: "train-1", Name: "Rajdhani Express"}, nil)

	details, err := deps.service.GetBookingDetails(ctx, "user-1", "booking-1")

	require.NoError(t, err)
	assert.Equal(t, "booking-1", details.Booking.ID)
	assert.Equal(t, "Rajdhani Express", details.Train.Name)
}

func TestBookingService_GetBookingDetails_OtherUser(t *testing.T) {
	deps := newBookingDeps()
	ctx := context.Background()

	b := booking.NewBooking("user-2", "train-1", "SL", "GENERAL", []booking.Passenger{
		{Name: "佐藤一郎", Age: 40, Gender: "M", BerthPref: "LOWER"},
	}, testNow)
	b.ID = "booking-1"
	deps.bookingRepo.On("GetByID", ctx, "booking-1").Return(b, nil)

	details, err := deps.service.GetBookingDetails(ctx, "user-1", "booking-1")

	require.Error(t, err)
	assert.Nil(t, details)
	assert.ErrorIs(t, err, booking.ErrBookingNotFound)
}

func TestBookingService_GetUserBookings_DefaultLimit(t *testing.T) {
	deps := newBookingDeps()
	ctx := context.Background()

	expected := []*booking.Booking{{ID: "booking-1"}, {ID: "booking-2"}}
	deps.bookingRepo.On("GetByUserID", ctx, "user-1", 20, 0).Return(expected, nil)

	result, err := deps.service.GetUserBookings(ctx, "user-1", 0, -5)

	require.NoError(t, err)
	assert.Len(t, result, 2)
}
