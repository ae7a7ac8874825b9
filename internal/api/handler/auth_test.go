package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-train-ticket-booking/internal/application"
	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/user"
)

// MockAuthService はAuthServiceInterfaceのモック
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Signup(ctx context.Context, input application.SignupInput) (*user.User, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (string, *user.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*user.User), args.Error(2)
}

func (m *MockAuthService) VerifyToken(tokenString string) (string, error) {
	args := m.Called(tokenString)
	return args.String(0), args.Error(1)
}

func testUser() *user.User {
	return &user.User{
		ID:        "user-123",
		Name:      "田中太郎",
		Email:     "tanaka@example.com",
		CreatedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestAuthHandler_Signup(t *testing.T) {
	e := NewTestEcho()

	t.Run("正常に登録できる", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockService.On("Signup", mock.Anything, mock.AnythingOfType("application.SignupInput")).
			Return(testUser(), nil)
		handler := NewAuthHandler(mockService)

		reqBody := `{"name": "田中太郎", "email": "tanaka@example.com", "password": "password123"}`
		req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Signup(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, rec.Code)

		var resp UserResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "user-123", resp.ID)
	})

	t.Run("メールアドレス重複なら409", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockService.On("Signup", mock.Anything, mock.AnythingOfType("application.SignupInput")).
			Return(nil, user.ErrEmailAlreadyExists)
		handler := NewAuthHandler(mockService)

		reqBody := `{"name": "田中太郎", "email": "tanaka@example.com", "password": "password123"}`
		req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Signup(c)

		var he *echo.HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusConflict, he.Code)
	})

	t.Run("短いパスワードはバリデーションエラー", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := NewAuthHandler(mockService)

		reqBody := `{"name": "田中太郎", "email": "tanaka@example.com", "password": "short"}`
		req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Signup(c)

		var he *echo.HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusBadRequest, he.Code)
		mockService.AssertNotCalled(t, "Signup")
	})
}

func TestAuthHandler_Login(t *testing.T) {
	e := NewTestEcho()

	t.Run("正常にログインできる", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockService.On("Login", mock.Anything, "tanaka@example.com", "password123").
			Return("access-token", testUser(), nil)
		handler := NewAuthHandler(mockService)

		reqBody := `{"email": "tanaka@example.com", "password": "password123"}`
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Login(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "access-token", resp.AccessToken)
		assert.Equal(t, "user-123", resp.User.ID)
	})

	t.Run("認証失敗なら401", func(t *testing.T) {
		mockService := new(MockAuthService)
		mockService.On("Login", mock.Anything, "tanaka@example.com", "wrong").
			Return("", nil, user.ErrInvalidCredentials)
		handler := NewAuthHandler(mockService)

		reqBody := `{"email": "tanaka@example.com", "password": "wrong"}`
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Login(c)

		var he *echo.HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusUnauthorized, he.Code)
	})
}
