package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/sanosuguru/go-train-ticket-booking/internal/domain/user"
	"github.com/sanosuguru/go-train-ticket-booking/internal/pkg/clock"
)

var (
	ErrInvalidToken = errors.New("トークンが無効です")
)

// AuthService はユーザー登録と認証を担う
type AuthService struct {
	userRepo  user.Repository
	jwtSecret []byte
	tokenTTL  time.Duration
	clk       clock.Clock
}

func NewAuthService(ur user.Repository, jwtSecret string, tokenTTL time.Duration, clk clock.Clock) *AuthService {
	if clk == nil {
		clk = clock.System{}
	}
	return &AuthService{
		userRepo:  ur,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		clk:       clk,
	}
}

type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// Signup は新しいユーザーを登録する
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*user.User, error) {
	if input.Password == "" {
		return nil, user.ErrPasswordRequired
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}

	u := user.NewUser(input.Name, input.Email, string(hash), s.clk.Now())
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login は認証に成功した場合アクセストークンを発行する
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *user.User, error) {
	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return "", nil, user.ErrInvalidCredentials
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, user.ErrInvalidCredentials
	}

	token, err := s.generateToken(u)
	if err != nil {
		return "", nil, fmt.Errorf("トークン発行に失敗: %w", err)
	}
	return token, u, nil
}

// Claims はアクセストークンのクレーム
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

func (s *AuthService) generateToken(u *user.User) (string, error) {
	now := s.clk.Now()
	claims := Claims{
		UserID: u.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// VerifyToken はアクセストークンを検証し、ユーザーIDを返す
func (s *AuthService) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("予期しない署名方式: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}

// GetUser はユーザーを取得する
func (s *AuthService) GetUser(ctx context.Context, id string) (*user.User, error) {
	return s.userRepo.GetByID(ctx, id)
}
