package repository

import (
	"context"

	"github.com/questx-lab/coursechat/internal/entity"
	"github.com/questx-lab/coursechat/pkg/xcontext"
)

type ChatRoomRepository interface {
	Create(ctx context.Context, data *entity.ChatRoom) error
	GetByID(ctx context.Context, id int64) (*entity.ChatRoom, error)
	GetByName(ctx context.Context, name string) (*entity.ChatRoom, error)
	GetByCourseID(ctx context.Context, courseID string) (*entity.ChatRoom, error)
	GetByCourseIDs(ctx context.Context, courseIDs []string) ([]entity.ChatRoom, error)
	ExistsName(ctx context.Context, name string) (bool, error)
}

type chatRoomRepository struct{}

func NewChatRoomRepository() ChatRoomRepository {
	return &chatRoomRepository{}
}

func (r *chatRoomRepository) Create(ctx context.Context, data *entity.ChatRoom) error {
	return xcontext.DB(ctx).Create(data).Error
}

func (r *chatRoomRepository) GetByID(ctx context.Context, id int64) (*entity.ChatRoom, error) {
	var record entity.ChatRoom
	if err := xcontext.DB(ctx).Where("id=?", id).Take(&record).Error; err != nil {
		return nil, err
	}

	return &record, nil
}

func (r *chatRoomRepository) GetByName(ctx context.Context, name string) (*entity.ChatRoom, error) {
	var record entity.ChatRoom
	if err := xcontext.DB(ctx).Where("name=?", name).Take(&record).Error; err != nil {
		return nil, err
	}

	return &record, nil
}

func (r *chatRoomRepository) GetByCourseID(ctx context.Context, courseID string) (*entity.ChatRoom, error) {
	var record entity.ChatRoom
	if err := xcontext.DB(ctx).Where("course_id=?", courseID).Take(&record).Error; err != nil {
		return nil, err
	}

	return &record, nil
}

func (r *chatRoomRepository) GetByCourseIDs(ctx context.Context, courseIDs []string) ([]entity.ChatRoom, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}

	var records []entity.ChatRoom
	err := xcontext.DB(ctx).
		Where("course_id IN (?)", courseIDs).
		Order("name ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (r *chatRoomRepository) ExistsName(ctx context.Context, name string) (bool, error) {
	var count int64
	if err := xcontext.DB(ctx).Model(&entity.ChatRoom{}).Where("name=?", name).Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}
