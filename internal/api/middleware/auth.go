package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-train-ticket-booking/internal/api/handler"
)

// TokenVerifier はアクセストークンを検証しユーザーIDを返す
type TokenVerifier interface {
	VerifyToken(tokenString string) (string, error)
}

// JWTAuth はBearerトークンを検証し、ユーザーIDをコンテキストに設定する
// 以降のハンドラーはコンテキストの認証済みユーザーIDだけを信頼する
func JWTAuth(verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if auth == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
			}

			token := strings.TrimPrefix(auth, "Bearer ")
			if token == auth || token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorizationヘッダーの形式が不正です")
			}

			userID, err := verifier.VerifyToken(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "トークンが無効です")
			}

			handler.SetUserID(c, userID)
			return next(c)
		}
	}
}
