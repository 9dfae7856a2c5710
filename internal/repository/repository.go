// Package repository persists users and rooms with GORM.
package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"coartistry-backend/internal/model"
)

var (
	ErrUserExists   = errors.New("username already exists")
	ErrUserNotFound = errors.New("user not found")
	ErrRoomExists   = errors.New("room already exists")
)

// UserRepository 사용자 저장소
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts a user. A taken username yields ErrUserExists.
func (r *UserRepository) CreateUser(ctx context.Context, username, passwordHash string) (*model.User, error) {
	user := model.User{Username: username, PasswordHash: passwordHash}
	if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// FindUserByUsername returns ErrUserNotFound when no user has that name.
func (r *UserRepository) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// RoomRepository 방 저장소. room.Store 구현체.
type RoomRepository struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// CreateRoom inserts a room owned by creatorID. A taken id yields ErrRoomExists.
func (r *RoomRepository) CreateRoom(ctx context.Context, roomID string, creatorID int64) (*model.Room, error) {
	room := model.Room{RoomID: roomID, CreatorID: creatorID}
	if err := r.db.WithContext(ctx).Create(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrRoomExists
		}
		return nil, fmt.Errorf("create room: %w", err)
	}
	return &room, nil
}

// RoomExists 방 존재 여부
func (r *RoomRepository) RoomExists(ctx context.Context, roomID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Room{}).Where("room_id = ?", roomID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("lookup room: %w", err)
	}
	return count > 0, nil
}
