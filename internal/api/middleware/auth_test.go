package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct {
	userID string
	err    error
}

func (s stubVerifier) VerifyToken(tokenString string) (string, error) {
	return s.userID, s.err
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()

	newContext := func(authHeader string) (echo.Context, *httptest.ResponseRecorder) {
		req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
		if authHeader != "" {
			req.Header.Set(echo.HeaderAuthorization, authHeader)
		}
		rec := httptest.NewRecorder()
		return e.NewContext(req, rec), rec
	}

	next := func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}

	t.Run("有効なトークンでユーザーIDが設定される", func(t *testing.T) {
		mw := JWTAuth(stubVerifier{userID: "user-123"})
		c, rec := newContext("Bearer valid-token")

		var captured string
		err := mw(func(c echo.Context) error {
			captured, _ = c.Get("user_id").(string)
			return next(c)
		})(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-123", captured)
	})

	t.Run("ヘッダーなしは401", func(t *testing.T) {
		mw := JWTAuth(stubVerifier{userID: "user-123"})
		c, _ := newContext("")

		err := mw(next)(c)

		var he *echo.HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusUnauthorized, he.Code)
	})

	t.Run("Bearer形式でなければ401", func(t *testing.T) {
		mw := JWTAuth(stubVerifier{userID: "user-123"})
		c, _ := newContext("Basic dXNlcjpwYXNz")

		err := mw(next)(c)

		var he *echo.HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusUnauthorized, he.Code)
	})

	t.Run("検証に失敗すれば401", func(t *testing.T) {
		mw := JWTAuth(stubVerifier{err: errors.New("invalid")})
		c, _ := newContext("Bearer bad-token")

		err := mw(next)(c)

		var he *echo.HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusUnauthorized, he.Code)
	})
}
