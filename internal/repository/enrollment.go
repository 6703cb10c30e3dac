package repository

import (
	"context"

	"github.com/questx-lab/coursechat/internal/entity"
	"github.com/questx-lab/coursechat/pkg/xcontext"
)

type EnrollmentRepository interface {
	Create(ctx context.Context, data *entity.Enrollment) error
	IsEnrolled(ctx context.Context, userID, courseID string) (bool, error)
	GetCourseIDsByUserID(ctx context.Context, userID string) ([]string, error)
	GetUserIDsByCourseID(ctx context.Context, courseID string) ([]string, error)
}

type enrollmentRepository struct{}

func NewEnrollmentRepository() EnrollmentRepository {
	return &enrollmentRepository{}
}

func (r *enrollmentRepository) Create(ctx context.Context, data *entity.Enrollment) error {
	return xcontext.DB(ctx).Create(data).Error
}

func (r *enrollmentRepository) IsEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	var count int64
	err := xcontext.DB(ctx).Model(&entity.Enrollment{}).
		Where("user_id=? AND course_id=?", userID, courseID).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *enrollmentRepository) GetCourseIDsByUserID(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := xcontext.DB(ctx).Model(&entity.Enrollment{}).
		Where("user_id=?", userID).
		Pluck("course_id", &ids).Error
	if err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *enrollmentRepository) GetUserIDsByCourseID(ctx context.Context, courseID string) ([]string, error) {
	var ids []string
	err := xcontext.DB(ctx).Model(&entity.Enrollment{}).
		Where("course_id=?", courseID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}

	return ids, nil
}
