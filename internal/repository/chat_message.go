package repository

import (
	"context"
	"errors"

	"github.com/questx-lab/coursechat/internal/entity"
	"github.com/questx-lab/coursechat/pkg/xcontext"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChatMessageRepository interface {
	// Create stores the message. CreatedAt is moved forward when needed so
	// that it is never earlier than the latest message of the same room.
	Create(ctx context.Context, data *entity.ChatMessage) error
	GetByID(ctx context.Context, roomID, id int64) (*entity.ChatMessage, error)

	// GetListBefore returns at most limit messages older than the message
	// before, newest first. A zero before starts from the latest message.
	GetListBefore(ctx context.Context, roomID, before int64, limit int) ([]entity.ChatMessage, error)
}

type chatMessageRepository struct{}

func NewChatMessageRepository() ChatMessageRepository {
	return &chatMessageRepository{}
}

func (r *chatMessageRepository) Create(ctx context.Context, data *entity.ChatMessage) error {
	return xcontext.DB(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the room row so writers of one room go one at a time.
		var room entity.ChatRoom
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id=?", data.RoomID).
			Take(&room).Error
		if err != nil {
			return err
		}

		var last entity.ChatMessage
		err = tx.Select("created_at").
			Where("room_id=?", data.RoomID).
			Order("created_at DESC").
			Take(&last).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err == nil && data.CreatedAt.Before(last.CreatedAt) {
			data.CreatedAt = last.CreatedAt
		}

		return tx.Create(data).Error
	})
}

func (r *chatMessageRepository) GetByID(ctx context.Context, roomID, id int64) (*entity.ChatMessage, error) {
	var record entity.ChatMessage
	if err := xcontext.DB(ctx).Where("id=? AND room_id=?", id, roomID).Take(&record).Error; err != nil {
		return nil, err
	}

	return &record, nil
}

func (r *chatMessageRepository) GetListBefore(
	ctx context.Context, roomID, before int64, limit int,
) ([]entity.ChatMessage, error) {
	tx := xcontext.DB(ctx).Where("room_id=?", roomID)
	if before != 0 {
		pivot, err := r.GetByID(ctx, roomID, before)
		if err != nil {
			return nil, err
		}

		tx = tx.Where("created_at<? OR (created_at=? AND id<?)", pivot.CreatedAt, pivot.CreatedAt, pivot.ID)
	}

	var result []entity.ChatMessage
	err := tx.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}
