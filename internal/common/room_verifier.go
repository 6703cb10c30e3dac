package common

import (
	"context"
	"errors"

	"github.com/questx-lab/coursechat/internal/entity"
	"github.com/questx-lab/coursechat/internal/repository"
	"github.com/questx-lab/coursechat/pkg/errorx"
	"github.com/questx-lab/coursechat/pkg/xcontext"
	"gorm.io/gorm"
)

// RoomVerifier decides whether the request user may enter a chat room. A user
// may enter the room of a course they are enrolled in or teach.
type RoomVerifier struct {
	chatRoomRepo   repository.ChatRoomRepository
	courseRepo     repository.CourseRepository
	enrollmentRepo repository.EnrollmentRepository
}

func NewRoomVerifier(
	chatRoomRepo repository.ChatRoomRepository,
	courseRepo repository.CourseRepository,
	enrollmentRepo repository.EnrollmentRepository,
) *RoomVerifier {
	return &RoomVerifier{
		chatRoomRepo:   chatRoomRepo,
		courseRepo:     courseRepo,
		enrollmentRepo: enrollmentRepo,
	}
}

func (v *RoomVerifier) Authorize(ctx context.Context, roomName string) (*entity.ChatRoom, *entity.Course, error) {
	userID := xcontext.RequestUserID(ctx)
	if userID == "" {
		return nil, nil, errorx.New(errorx.Unauthenticated, "You need to authenticate before")
	}

	room, err := v.chatRoomRepo.GetByName(ctx, roomName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, errorx.New(errorx.RoomNotFound, "Not found room")
		}

		xcontext.Logger(ctx).Errorf("Cannot get room: %v", err)
		return nil, nil, errorx.Unknown
	}

	course, err := v.courseRepo.GetByID(ctx, room.CourseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, errorx.New(errorx.RoomNotFound, "Not found room")
		}

		xcontext.Logger(ctx).Errorf("Cannot get course of room: %v", err)
		return nil, nil, errorx.Unknown
	}

	isInstructor, err := v.courseRepo.IsInstructor(ctx, userID, course.ID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot check instructor: %v", err)
		return nil, nil, errorx.Unknown
	}

	if isInstructor {
		return room, course, nil
	}

	enrolled, err := v.enrollmentRepo.IsEnrolled(ctx, userID, course.ID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot check enrollment: %v", err)
		return nil, nil, errorx.Unknown
	}

	if !enrolled {
		return nil, nil, errorx.New(errorx.Forbidden, "You are not a participant of this course")
	}

	return room, course, nil
}
