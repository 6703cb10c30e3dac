package domain

import (
	"context"
	"testing"

	"github.com/questx-lab/coursechat/internal/common"
	"github.com/questx-lab/coursechat/internal/domain/chat/presence"
	"github.com/questx-lab/coursechat/internal/entity"
	"github.com/questx-lab/coursechat/internal/model"
	"github.com/questx-lab/coursechat/internal/repository"
	"github.com/questx-lab/coursechat/pkg/errorx"
	"github.com/questx-lab/coursechat/pkg/testutil"
	"github.com/stretchr/testify/require"
)

func newChatDomain(registry presence.Registry) *chatDomain {
	chatRoomRepo := repository.NewChatRoomRepository()
	courseRepo := repository.NewCourseRepository()
	enrollmentRepo := repository.NewEnrollmentRepository()

	return NewChatDomain(
		chatRoomRepo,
		repository.NewChatMemberRepository(),
		courseRepo,
		enrollmentRepo,
		repository.NewUserRepository(),
		common.NewRoomVerifier(chatRoomRepo, courseRepo, enrollmentRepo),
		registry,
	)
}

func createCourse3(t *testing.T, ctx context.Context) {
	err := repository.NewCourseRepository().Create(ctx, &entity.Course{
		Base:         entity.Base{ID: "course3"},
		Name:         "Distributed Systems",
		InstructorID: testutil.Instructor1.ID,
		Published:    true,
	})
	require.NoError(t, err)
}

func Test_chatDomain_CreateRoom(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	d := newChatDomain(presence.NewMemoryRegistry())

	// Only the instructor may create the room.
	_, err := d.CreateRoom(
		testutil.MockContextWithUserID(ctx, testutil.Student1.ID),
		&model.CreateChatRoomRequest{CourseID: testutil.Course1.ID},
	)
	require.Equal(t, errorx.PermissionDenied, errorx.CodeOf(err))

	// The room of course1 already exists.
	instructorCtx := testutil.MockContextWithUserID(ctx, testutil.Instructor1.ID)
	resp, err := d.CreateRoom(instructorCtx, &model.CreateChatRoomRequest{CourseID: testutil.Course1.ID})
	require.NoError(t, err)
	require.Equal(t, testutil.Room1.ID, resp.ChatRoom.ID)
	require.Equal(t, testutil.Course1.Name, resp.ChatRoom.CourseName)

	// course2 is not published.
	_, err = d.CreateRoom(instructorCtx, &model.CreateChatRoomRequest{CourseID: testutil.Course2.ID})
	require.Equal(t, errorx.Unavailable, errorx.CodeOf(err))

	_, err = d.CreateRoom(instructorCtx, &model.CreateChatRoomRequest{CourseID: "unknown"})
	require.Equal(t, errorx.NotFound, errorx.CodeOf(err))
}

func Test_chatDomain_CreateRoomForCourse(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	createCourse3(t, ctx)
	d := newChatDomain(presence.NewMemoryRegistry())

	// The name of course3 is already used by the room of course1.
	room, err := d.CreateRoomForCourse(ctx, "course3")
	require.NoError(t, err)
	require.Equal(t, "distributed-systems-course3", room.Name)

	again, err := d.CreateRoomForCourse(ctx, "course3")
	require.NoError(t, err)
	require.Equal(t, room.ID, again.ID)
}

func Test_chatDomain_GetMyChatRooms(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	d := newChatDomain(presence.NewMemoryRegistry())

	for _, userID := range []string{testutil.Student1.ID, testutil.Instructor1.ID} {
		resp, err := d.GetMyChatRooms(testutil.MockContextWithUserID(ctx, userID), &model.GetMyChatRoomsRequest{})
		require.NoError(t, err)
		require.Equal(t, []model.ChatRoom{model.ConvertChatRoom(&testutil.Room1, &testutil.Course1)}, resp.ChatRooms)
	}

	resp, err := d.GetMyChatRooms(testutil.MockContextWithUserID(ctx, testutil.Outsider.ID), &model.GetMyChatRoomsRequest{})
	require.NoError(t, err)
	require.Empty(t, resp.ChatRooms)
}

func Test_chatDomain_GetChatRoom(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)

	registry := presence.NewMemoryRegistry()
	require.NoError(t, registry.Join(ctx, testutil.Student2.ID, RoomKey(testutil.Room1.ID)))
	d := newChatDomain(registry)

	ctx = testutil.MockContextWithUserID(ctx, testutil.Student1.ID)
	require.NoError(t, newReadCursorDomain().MarkViewed(ctx, testutil.Room1.ID, testutil.Message2.ID))

	resp, err := d.GetChatRoom(ctx, &model.GetChatRoomRequest{RoomName: testutil.Room1.Name})
	require.NoError(t, err)
	require.Equal(t, testutil.Room1.Name, resp.ChatRoom.Name)
	require.Equal(t, testutil.Message2.ID, *resp.LastViewedMessage)

	require.Len(t, resp.Participants, 3)
	require.Equal(t, testutil.Student1.Username, resp.Participants[0].Username)
	require.NotNil(t, resp.Participants[0].LastActiveAt)
	require.False(t, resp.Participants[0].Online)

	require.Equal(t, testutil.Student2.Username, resp.Participants[1].Username)
	require.True(t, resp.Participants[1].Online)
	require.Nil(t, resp.Participants[1].LastActiveAt)

	require.Equal(t, testutil.Instructor1.Username, resp.Participants[2].Username)
	require.True(t, resp.Participants[2].IsInstructor)

	_, err = d.GetChatRoom(testutil.MockContextWithUserID(ctx, testutil.Outsider.ID),
		&model.GetChatRoomRequest{RoomName: testutil.Room1.Name})
	require.Equal(t, errorx.Forbidden, errorx.CodeOf(err))
}

func TestSlugify(t *testing.T) {
	require.Equal(t, "distributed-systems", Slugify("Distributed Systems"))
	require.Equal(t, "c-programming-101", Slugify("  C++ Programming: 101! "))
	require.Equal(t, "", Slugify("!!!"))
}
