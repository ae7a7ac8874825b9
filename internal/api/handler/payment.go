package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-train-ticket-booking/internal/pkg/clock"
)

// PaymentHandler は決済スタブ
// 運賃計算は行わず、予約に対する取引参照を返すのみ
type PaymentHandler struct {
	bookingService BookingServiceInterface
	clk            clock.Clock
}

func NewPaymentHandler(bookingService BookingServiceInterface, clk clock.Clock) *PaymentHandler {
	if clk == nil {
		clk = clock.System{}
	}
	return &PaymentHandler{bookingService: bookingService, clk: clk}
}

type PaymentRequest struct {
	BookingID string `json:"booking_id" validate:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
}

type PaymentResponse struct {
	BookingID      string    `json:"booking_id"`
	TransactionRef string    `json:"transaction_ref"`
	Status         string    `json:"status" example:"PAID"`
	ProcessedAt    time.Time `json:"processed_at"`
}

// Create godoc
// @Summary 支払いを記録
// @Description ログインユーザーの予約に対する支払いを記録します（スタブ）
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PaymentRequest true "支払い情報"
// @Success 200 {object} PaymentResponse
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /payments [post]
func (h *PaymentHandler) Create(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
	}
	var req PaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	details, err := h.bookingService.GetBookingDetails(c.Request().Context(), userID, req.BookingID)
	if err != nil {
		if errors.Is(err, booking.ErrBookingNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, PaymentResponse{
		BookingID:      details.Booking.ID,
		TransactionRef: uuid.New().String(),
		Status:         string(details.Booking.PaymentStatus),
		ProcessedAt:    h.clk.Now(),
	})
}
