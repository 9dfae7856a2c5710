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

const maxRoomIDLen = 100

// RoomStore 방 저장소 인터페이스
type RoomStore interface {
	CreateRoom(ctx context.Context, roomID string, creatorID int64) (*model.Room, error)
	RoomExists(ctx context.Context, roomID string) (bool, error)
}

// RoomHandler 방 생성/확인 핸들러. 실시간 입장은 /ws 에서 처리.
type RoomHandler struct {
	rooms  RoomStore
	logger *zap.Logger
}

func NewRoomHandler(rooms RoomStore, logger *zap.Logger) *RoomHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomHandler{rooms: rooms, logger: logger.Named("room")}
}

// RoomRequest 방 요청
type RoomRequest struct {
	RoomID string `json:"roomId"`
}

func parseRoomID(c *fiber.Ctx) (string, error) {
	var req RoomRequest
	if err := c.BodyParser(&req); err != nil {
		return "", errors.New("invalid request body")
	}
	roomID := strings.TrimSpace(req.RoomID)
	if roomID == "" {
		return "", errors.New("roomId is required")
	}
	if len(roomID) > maxRoomIDLen {
		return "", errors.New("roomId is too long")
	}
	return roomID, nil
}

// CreateRoom 방 생성
func (h *RoomHandler) CreateRoom(c *fiber.Ctx) error {
	roomID, err := parseRoomID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": err.Error(),
		})
	}
	id, ok := auth.IdentityFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "missing authorization token",
		})
	}

	room, err := h.rooms.CreateRoom(c.UserContext(), roomID, id.UserID)
	if errors.Is(err, repository.ErrRoomExists) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": "Room ID already exists! Please choose another.",
		})
	}
	if err != nil {
		h.logger.Error("create room", zap.String("room", roomID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Server error creating room. Please try again.",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Room created successfully",
		"roomId":  room.RoomID,
	})
}

// JoinRoom 방 존재 확인만 수행
func (h *RoomHandler) JoinRoom(c *fiber.Ctx) error {
	roomID, err := parseRoomID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": err.Error(),
		})
	}

	exists, err := h.rooms.RoomExists(c.UserContext(), roomID)
	if err != nil {
		h.logger.Error("check room", zap.String("room", roomID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Server error checking room. Please try again.",
		})
	}
	if !exists {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Room ID does not exist! Please check the ID or create a new room.",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Room found successfully. Proceed to join via WebSocket.",
	})
}
