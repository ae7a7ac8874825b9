package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-train-ticket-booking/internal/application"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/train"
)

type BookingHandler struct {
	service BookingServiceInterface
}

func NewBookingHandler(s BookingServiceInterface) *BookingHandler {
	return &BookingHandler{service: s}
}

type PassengerRequest struct {
	Name      string `json:"name" validate:"required" example:"田中太郎"`
	Age       int    `json:"age" validate:"required,gt=0" example:"35"`
	Gender    string `json:"gender" validate:"required" example:"M"`
	BerthPref string `json:"berth_preference" validate:"required" example:"LOWER"`
}

type CreateBookingRequest struct {
	TrainID    string             `json:"train_id" validate:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	Class      string             `json:"class" validate:"required" example:"SL"`
	Quota      string             `json:"quota" example:"GENERAL"`
	Passengers []PassengerRequest `json:"passengers" validate:"required,min=1,dive"`
}

type PassengerResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name" example:"田中太郎"`
	Age       int    `json:"age" example:"35"`
	Gender    string `json:"gender" example:"M"`
	BerthPref string `json:"berth_preference" example:"LOWER"`
}

type BookingResponse struct {
	ID            string              `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	TrainID       string              `json:"train_id"`
	TrainName     string              `json:"train_name,omitempty" example:"Rajdhani Express"`
	Class         string              `json:"class" example:"SL"`
	Quota         string              `json:"quota" example:"GENERAL"`
	Status        string              `json:"status" example:"CONFIRMED"`
	PaymentStatus string              `json:"payment_status" example:"PAID"`
	Passengers    []PassengerResponse `json:"passengers"`
	CreatedAt     time.Time           `json:"created_at"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	passengers := make([]PassengerResponse, len(b.Passengers))
	for i, p := range b.Passengers {
		passengers[i] = PassengerResponse{
			ID:        p.ID,
			Name:      p.Name,
			Age:       p.Age,
			Gender:    p.Gender,
			BerthPref: p.BerthPref,
		}
	}
	return BookingResponse{
		ID:            b.ID,
		TrainID:       b.TrainID,
		Class:         b.Class,
		Quota:         b.Quota,
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		Passengers:    passengers,
		CreatedAt:     b.CreatedAt,
	}
}

// Create godoc
// @Summary 予約を作成
// @Description 座席を確保して予約を確定します
// @Tags bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateBookingRequest true "予約情報"
// @Success 201 {object} BookingResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string "残席不足"
// @Router /bookings [post]
func (h *BookingHandler) Create(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
	}
	var req CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	quota := req.Quota
	if quota == "" {
		quota = inventory.DefaultQuota
	}
	passengers := make([]application.PassengerInput, len(req.Passengers))
	for i, p := range req.Passengers {
		passengers[i] = application.PassengerInput{
			Name:      p.Name,
			Age:       p.Age,
			Gender:    p.Gender,
			BerthPref: p.BerthPref,
		}
	}

	b, err := h.service.CreateBooking(c.Request().Context(), application.CreateBookingInput{
		UserID:     userID,
		TrainID:    req.TrainID,
		Class:      req.Class,
		Quota:      quota,
		Passengers: passengers,
	})
	if err != nil {
		switch {
		case errors.Is(err, inventory.ErrInsufficientSeats):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, train.ErrTrainNotFound), errors.Is(err, inventory.ErrBucketNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, toBookingResponse(b))
}

// GetByID godoc
// @Summary 予約を取得
// @Description ログインユーザーの予約詳細を取得します
// @Tags bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "予約ID"
// @Success 200 {object} BookingResponse
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /bookings/{id} [get]
func (h *BookingHandler) GetByID(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
	}
	details, err := h.service.GetBookingDetails(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, booking.ErrBookingNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := toBookingResponse(details.Booking)
	resp.TrainName = details.Train.Name
	return c.JSON(http.StatusOK, resp)
}

// List godoc
// @Summary 予約一覧を取得
// @Description ログインユーザーの予約一覧を取得します
// @Tags bookings
// @Produce json
// @Security BearerAuth
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} BookingResponse
// @Failure 401 {object} map[string]string
// @Router /bookings [get]
func (h *BookingHandler) List(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	bookings, err := h.service.GetUserBookings(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		resp[i] = toBookingResponse(b)
	}
	return c.JSON(http.StatusOK, resp)
}

// Cancel godoc
// @Summary 予約をキャンセル
// @Description 予約をキャンセルし、確保していた座席を解放します
// @Tags bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "予約ID"
// @Success 200 {object} BookingResponse
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string "既にキャンセル済み"
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
	}
	b, err := h.service.CancelBooking(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrBookingNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, booking.ErrBookingAlreadyCancelled):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}
