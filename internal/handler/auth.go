package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"coartistry-backend/internal/auth"
	"coartistry-backend/internal/model"
	"coartistry-backend/internal/repository"
)

const maxUsernameLen = 100

// UserStore 사용자 저장소 인터페이스
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*model.User, error)
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)
}

// AuthHandler 인증 핸들러
type AuthHandler struct {
	users      UserStore
	gate       *auth.Gate
	jwtManager *auth.JWTManager
	bcryptCost int
	logger     *zap.Logger
}

// NewAuthHandler AuthHandler 생성
func NewAuthHandler(users UserStore, gate *auth.Gate, jwtManager *auth.JWTManager, bcryptCost int, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		users:      users,
		gate:       gate,
		jwtManager: jwtManager,
		bcryptCost: bcryptCost,
		logger:     logger.Named("auth"),
	}
}

// CredentialsRequest 회원가입/로그인 요청
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse 로그인 응답
type LoginResponse struct {
	Message  string `json:"message"`
	Token    string `json:"token"`
	Username string `json:"username"`
}

func parseCredentials(c *fiber.Ctx) (CredentialsRequest, error) {
	var req CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return req, errors.New("invalid request body")
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return req, errors.New("username and password are required")
	}
	if len(req.Username) > maxUsernameLen {
		return req, errors.New("username is too long")
	}
	return req, nil
}

// Register 회원가입
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	req, err := parseCredentials(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": err.Error(),
		})
	}

	hash, err := auth.HashPassword(req.Password, h.bcryptCost)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "password is too long",
		})
	}
	if err != nil {
		h.logger.Error("hash password", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error registering user. Please try again.",
		})
	}

	if _, err := h.users.CreateUser(c.UserContext(), req.Username, hash); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"message": "Username already exists. Please choose a different one.",
			})
		}
		h.logger.Error("register", zap.String("username", req.Username), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Error registering user. Please try again.",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
	})
}

// Login 로그인 (액세스 토큰 발급)
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	req, err := parseCredentials(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": err.Error(),
		})
	}

	user, err := h.users.FindUserByUsername(c.UserContext(), req.Username)
	if errors.Is(err, repository.ErrUserNotFound) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Invalid credentials. User not found.",
		})
	}
	if err != nil {
		h.logger.Error("login lookup", zap.String("username", req.Username), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Login error. Please try again.",
		})
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Invalid credentials. Incorrect password.",
		})
	}

	token, err := h.jwtManager.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		h.logger.Error("generate token", zap.Int64("user_id", user.ID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Login error. Please try again.",
		})
	}

	h.logger.Info("user logged in", zap.Int64("user_id", user.ID))
	return c.JSON(LoginResponse{
		Message:  "Login successful",
		Token:    token,
		Username: user.Username,
	})
}

// Logout 현재 토큰 폐기 (만료 시각까지)
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "missing authorization token",
		})
	}

	if err := h.gate.Revoke(c.UserContext(), id); err != nil {
		h.logger.Error("revoke token", zap.Int64("user_id", id.UserID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Logout error. Please try again.",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Logged out successfully",
	})
}
