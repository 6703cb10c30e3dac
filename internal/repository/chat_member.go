package repository

import (
	"context"
	"time"

	"github.com/questx-lab/coursechat/internal/entity"
	"github.com/questx-lab/coursechat/pkg/xcontext"
	"gorm.io/gorm/clause"
)

type ChatMemberRepository interface {
	GetOrCreate(ctx context.Context, userID string, roomID int64) (*entity.ChatMember, error)
	UpsertLastViewed(ctx context.Context, data *entity.ChatMember) error
	UpsertLastActive(ctx context.Context, userID string, roomID int64, at time.Time) error
	GetListByRoomID(ctx context.Context, roomID int64) ([]entity.ChatMember, error)
}

type chatMemberRepository struct{}

func NewChatMemberRepository() ChatMemberRepository {
	return &chatMemberRepository{}
}

var chatMemberKeys = []clause.Column{{Name: "user_id"}, {Name: "room_id"}}

func (r *chatMemberRepository) GetOrCreate(
	ctx context.Context, userID string, roomID int64,
) (*entity.ChatMember, error) {
	err := xcontext.DB(ctx).
		Clauses(clause.OnConflict{Columns: chatMemberKeys, DoNothing: true}).
		Create(&entity.ChatMember{UserID: userID, RoomID: roomID, LastActiveAt: time.Now()}).Error
	if err != nil {
		return nil, err
	}

	var record entity.ChatMember
	if err := xcontext.DB(ctx).Where("user_id=? AND room_id=?", userID, roomID).Take(&record).Error; err != nil {
		return nil, err
	}

	return &record, nil
}

func (r *chatMemberRepository) UpsertLastViewed(ctx context.Context, data *entity.ChatMember) error {
	return xcontext.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   chatMemberKeys,
			DoUpdates: clause.AssignmentColumns([]string{"last_viewed_message_id", "last_active_at"}),
		}).Create(data).Error
}

func (r *chatMemberRepository) UpsertLastActive(
	ctx context.Context, userID string, roomID int64, at time.Time,
) error {
	return xcontext.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   chatMemberKeys,
			DoUpdates: clause.AssignmentColumns([]string{"last_active_at"}),
		}).Create(&entity.ChatMember{UserID: userID, RoomID: roomID, LastActiveAt: at}).Error
}

func (r *chatMemberRepository) GetListByRoomID(ctx context.Context, roomID int64) ([]entity.ChatMember, error) {
	var result []entity.ChatMember
	if err := xcontext.DB(ctx).Find(&result, "room_id=?", roomID).Error; err != nil {
		return nil, err
	}

	return result, nil
}
