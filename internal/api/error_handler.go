package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/booking"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/inventory"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/train"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/user"
	"github.com/sanosuguru/go-train-ticket-booking/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// statusFromDomainError はハンドラーでマッピングされなかった
// ドメインエラーをHTTPステータスに変換する
func statusFromDomainError(err error) (int, bool) {
	switch {
	case errors.Is(err, train.ErrTrainNotFound),
		errors.Is(err, inventory.ErrBucketNotFound),
		errors.Is(err, booking.ErrBookingNotFound),
		errors.Is(err, user.ErrUserNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, inventory.ErrInsufficientSeats),
		errors.Is(err, booking.ErrBookingAlreadyCancelled),
		errors.Is(err, inventory.ErrBucketAlreadyExists),
		errors.Is(err, user.ErrEmailAlreadyExists):
		return http.StatusConflict, true
	case errors.Is(err, user.ErrInvalidCredentials):
		return http.StatusUnauthorized, true
	}
	return 0, false
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		code    = http.StatusInternalServerError
		message = "内部サーバーエラー"
	)

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	} else if status, ok := statusFromDomainError(err); ok {
		code = status
		message = err.Error()
	}

	// エラーログを出力（5xx エラーの場合）
	if code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	if err := c.JSON(code, ErrorResponse{
		Error: message,
		Code:  code,
	}); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
