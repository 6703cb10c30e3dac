package domain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/questx-lab/coursechat/internal/common"
	"github.com/questx-lab/coursechat/internal/domain/chat/presence"
	"github.com/questx-lab/coursechat/internal/entity"
	"github.com/questx-lab/coursechat/internal/model"
	"github.com/questx-lab/coursechat/internal/repository"
	"github.com/questx-lab/coursechat/pkg/errorx"
	"github.com/questx-lab/coursechat/pkg/xcontext"
	"golang.org/x/exp/slices"
	"gorm.io/gorm"
)

type ChatDomain interface {
	CreateRoom(context.Context, *model.CreateChatRoomRequest) (*model.CreateChatRoomResponse, error)
	CreateRoomForCourse(ctx context.Context, courseID string) (*entity.ChatRoom, error)
	GetMyChatRooms(context.Context, *model.GetMyChatRoomsRequest) (*model.GetMyChatRoomsResponse, error)
	GetChatRoom(context.Context, *model.GetChatRoomRequest) (*model.GetChatRoomResponse, error)
}

type chatDomain struct {
	chatRoomRepo   repository.ChatRoomRepository
	chatMemberRepo repository.ChatMemberRepository
	courseRepo     repository.CourseRepository
	enrollmentRepo repository.EnrollmentRepository
	userRepo       repository.UserRepository

	roomVerifier *common.RoomVerifier
	presence     presence.Registry
}

func NewChatDomain(
	chatRoomRepo repository.ChatRoomRepository,
	chatMemberRepo repository.ChatMemberRepository,
	courseRepo repository.CourseRepository,
	enrollmentRepo repository.EnrollmentRepository,
	userRepo repository.UserRepository,
	roomVerifier *common.RoomVerifier,
	presence presence.Registry,
) *chatDomain {
	return &chatDomain{
		chatRoomRepo:   chatRoomRepo,
		chatMemberRepo: chatMemberRepo,
		courseRepo:     courseRepo,
		enrollmentRepo: enrollmentRepo,
		userRepo:       userRepo,
		roomVerifier:   roomVerifier,
		presence:       presence,
	}
}

func (d *chatDomain) CreateRoom(
	ctx context.Context, req *model.CreateChatRoomRequest,
) (*model.CreateChatRoomResponse, error) {
	if req.CourseID == "" {
		return nil, errorx.New(errorx.BadRequest, "Require course id")
	}

	course, err := d.courseRepo.GetByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "Not found course")
		}

		xcontext.Logger(ctx).Errorf("Cannot get course: %v", err)
		return nil, errorx.Unknown
	}

	if course.InstructorID != xcontext.RequestUserID(ctx) {
		return nil, errorx.New(errorx.PermissionDenied, "Only the instructor can create the chat room")
	}

	room, err := d.CreateRoomForCourse(ctx, course.ID)
	if err != nil {
		return nil, err
	}

	return &model.CreateChatRoomResponse{ChatRoom: model.ConvertChatRoom(room, course)}, nil
}

// CreateRoomForCourse opens the room of a published course. Calling it again
// returns the same room.
func (d *chatDomain) CreateRoomForCourse(ctx context.Context, courseID string) (*entity.ChatRoom, error) {
	course, err := d.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "Not found course")
		}

		xcontext.Logger(ctx).Errorf("Cannot get course: %v", err)
		return nil, errorx.Unknown
	}

	if !course.Published {
		return nil, errorx.New(errorx.Unavailable, "Course is not published yet")
	}

	room, err := d.chatRoomRepo.GetByCourseID(ctx, course.ID)
	if err == nil {
		return room, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		xcontext.Logger(ctx).Errorf("Cannot get room of course: %v", err)
		return nil, errorx.Unknown
	}

	name := Slugify(course.Name)
	if name == "" {
		name = Slugify(course.ID)
	}

	taken, err := d.chatRoomRepo.ExistsName(ctx, name)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot check room name: %v", err)
		return nil, errorx.Unknown
	}

	if taken {
		name = fmt.Sprintf("%s-%s", name, Slugify(course.ID))
	}

	room = &entity.ChatRoom{
		SnowFlakeBase: entity.SnowFlakeBase{ID: xcontext.SnowFlake(ctx).Generate().Int64()},
		CourseID:      course.ID,
		Name:          name,
	}

	if err := d.chatRoomRepo.Create(ctx, room); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot create room: %v", err)
		return nil, errorx.Unknown
	}

	return room, nil
}

func (d *chatDomain) GetMyChatRooms(
	ctx context.Context, req *model.GetMyChatRoomsRequest,
) (*model.GetMyChatRoomsResponse, error) {
	userID := xcontext.RequestUserID(ctx)

	courseIDs, err := d.enrollmentRepo.GetCourseIDsByUserID(ctx, userID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get enrolled courses: %v", err)
		return nil, errorx.Unknown
	}

	teaching, err := d.courseRepo.GetListByInstructorID(ctx, userID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get teaching courses: %v", err)
		return nil, errorx.Unknown
	}

	for _, c := range teaching {
		if !slices.Contains(courseIDs, c.ID) {
			courseIDs = append(courseIDs, c.ID)
		}
	}

	rooms, err := d.chatRoomRepo.GetByCourseIDs(ctx, courseIDs)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get rooms: %v", err)
		return nil, errorx.Unknown
	}

	courses, err := d.courseRepo.GetByIDs(ctx, courseIDs)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get courses: %v", err)
		return nil, errorx.Unknown
	}

	courseSet := map[string]*entity.Course{}
	for i := range courses {
		courseSet[courses[i].ID] = &courses[i]
	}

	result := []model.ChatRoom{}
	for i := range rooms {
		result = append(result, model.ConvertChatRoom(&rooms[i], courseSet[rooms[i].CourseID]))
	}

	return &model.GetMyChatRoomsResponse{ChatRooms: result}, nil
}

func (d *chatDomain) GetChatRoom(
	ctx context.Context, req *model.GetChatRoomRequest,
) (*model.GetChatRoomResponse, error) {
	room, course, err := d.roomVerifier.Authorize(ctx, req.RoomName)
	if err != nil {
		return nil, err
	}

	userIDs, err := d.enrollmentRepo.GetUserIDsByCourseID(ctx, course.ID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get participants: %v", err)
		return nil, errorx.Unknown
	}
	userIDs = append(userIDs, course.InstructorID)

	users, err := d.userRepo.GetByIDs(ctx, userIDs)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get users: %v", err)
		return nil, errorx.Unknown
	}

	members, err := d.chatMemberRepo.GetListByRoomID(ctx, room.ID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get room members: %v", err)
		return nil, errorx.Unknown
	}

	online, err := d.presence.ListOnline(ctx, RoomKey(room.ID))
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get online users: %v", err)
		return nil, errorx.Unknown
	}

	memberSet := map[string]*entity.ChatMember{}
	for i := range members {
		memberSet[members[i].UserID] = &members[i]
	}

	resp := &model.GetChatRoomResponse{
		ChatRoom:     model.ConvertChatRoom(room, course),
		Participants: []model.ChatParticipant{},
	}

	for _, u := range users {
		participant := model.ChatParticipant{
			UserID:       u.ID,
			Username:     u.Username,
			FullName:     u.FullName(),
			IsInstructor: u.ID == course.InstructorID,
			Online:       slices.Contains(online, u.ID),
		}

		if member, ok := memberSet[u.ID]; ok {
			participant.LastActiveAt = model.ConvertTimePtr(member.LastActiveAt)
			if u.ID == xcontext.RequestUserID(ctx) {
				resp.LastViewedMessage = model.ConvertNullInt64(member.LastViewedMessageID)
			}
		}

		resp.Participants = append(resp.Participants, participant)
	}

	slices.SortFunc(resp.Participants, func(a, b model.ChatParticipant) bool {
		return a.Username < b.Username
	})

	return resp, nil
}

// RoomKey identifies a room in presence and broadcast.
func RoomKey(roomID int64) string {
	return strconv.FormatInt(roomID, 10)
}

// Slugify lowercases s and joins its words with dashes.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
		case r == '_' || r == '-' || unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			dash = true
		}
	}

	return b.String()
}
