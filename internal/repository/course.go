package repository

import (
	"context"

	"github.com/questx-lab/coursechat/internal/entity"
	"github.com/questx-lab/coursechat/pkg/xcontext"
)

type CourseRepository interface {
	Create(ctx context.Context, data *entity.Course) error
	GetByID(ctx context.Context, id string) (*entity.Course, error)
	GetByIDs(ctx context.Context, ids []string) ([]entity.Course, error)
	GetListByInstructorID(ctx context.Context, userID string) ([]entity.Course, error)
	IsInstructor(ctx context.Context, userID, courseID string) (bool, error)
}

type courseRepository struct{}

func NewCourseRepository() CourseRepository {
	return &courseRepository{}
}

func (r *courseRepository) Create(ctx context.Context, data *entity.Course) error {
	return xcontext.DB(ctx).Create(data).Error
}

func (r *courseRepository) GetByID(ctx context.Context, id string) (*entity.Course, error) {
	var record entity.Course
	if err := xcontext.DB(ctx).Where("id=?", id).Take(&record).Error; err != nil {
		return nil, err
	}

	return &record, nil
}

func (r *courseRepository) GetByIDs(ctx context.Context, ids []string) ([]entity.Course, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var records []entity.Course
	if err := xcontext.DB(ctx).Where("id IN (?)", ids).Find(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

func (r *courseRepository) GetListByInstructorID(ctx context.Context, userID string) ([]entity.Course, error) {
	var records []entity.Course
	if err := xcontext.DB(ctx).Where("instructor_id=?", userID).Find(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

func (r *courseRepository) IsInstructor(ctx context.Context, userID, courseID string) (bool, error) {
	var count int64
	err := xcontext.DB(ctx).Model(&entity.Course{}).
		Where("id=? AND instructor_id=?", courseID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}
