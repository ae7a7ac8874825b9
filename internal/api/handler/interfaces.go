package handler

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-train-ticket-booking/internal/application"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/train"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/user"
)

// CatalogServiceInterface はカタログサービスのインターフェース
type CatalogServiceInterface interface {
	AddTrain(ctx context.Context, input application.AddTrainInput) (*train.Train, error)
	AddSeatClass(ctx context.Context, input application.AddSeatClassInput) (*inventory.Bucket, error)
	SearchTrains(ctx context.Context, filter train.SearchFilter) ([]*train.Train, error)
	GetTrain(ctx context.Context, id string) (*train.Train, []*inventory.Bucket, error)
	Availability(ctx context.Context, key inventory.BucketKey) (int, error)
}

// BookingServiceInterface は予約サービスのインターフェース
type BookingServiceInterface interface {
	CreateBooking(ctx context.Context, input application.CreateBookingInput) (*booking.Booking, error)
	GetBookingDetails(ctx context.Context, userID, bookingID string) (*application.BookingDetails, error)
	GetUserBookings(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error)
	CancelBooking(ctx context.Context, userID, bookingID string) (*booking.Booking, error)
}

// AuthServiceInterface は認証サービスのインターフェース
type AuthServiceInterface interface {
	Signup(ctx context.Context, input application.SignupInput) (*user.User, error)
	Login(ctx context.Context, email, password string) (string, *user.User, error)
	VerifyToken(tokenString string) (string, error)
}

// userIDContextKey は認証ミドルウェアが設定するコンテキストキー
const userIDContextKey = "user_id"

// currentUserID はコンテキストから認証済みユーザーIDを取り出す
func currentUserID(c echo.Context) (string, bool) {
	id, ok := c.Get(userIDContextKey).(string)
	return id, ok && id != ""
}

// SetUserID は認証済みユーザーIDをコンテキストに設定する
func SetUserID(c echo.Context, id string) {
	c.Set(userIDContextKey, id)
}
