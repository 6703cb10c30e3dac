package common

import (
	"testing"

	"github.com/questx-lab/coursechat/internal/repository"
	"github.com/questx-lab/coursechat/pkg/errorx"
	"github.com/questx-lab/coursechat/pkg/testutil"
	"github.com/stretchr/testify/require"
)

func Test_RoomVerifier_Authorize(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)

	verifier := NewRoomVerifier(
		repository.NewChatRoomRepository(),
		repository.NewCourseRepository(),
		repository.NewEnrollmentRepository(),
	)

	tests := []struct {
		name     string
		userID   string
		roomName string
		wantErr  errorx.Code
	}{
		{name: "enrolled student", userID: testutil.Student1.ID, roomName: testutil.Room1.Name},
		{name: "instructor", userID: testutil.Instructor1.ID, roomName: testutil.Room1.Name},
		{name: "anonymous", userID: "", roomName: testutil.Room1.Name, wantErr: errorx.Unauthenticated},
		{name: "unknown room", userID: testutil.Student1.ID, roomName: "no-such-room", wantErr: errorx.RoomNotFound},
		{name: "outsider", userID: testutil.Outsider.ID, roomName: testutil.Room1.Name, wantErr: errorx.Forbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room, course, err := verifier.Authorize(testutil.MockContextWithUserID(ctx, tt.userID), tt.roomName)
			if tt.wantErr != 0 {
				require.Error(t, err)
				require.Equal(t, tt.wantErr, errorx.CodeOf(err))
				require.Nil(t, room)
				return
			}

			require.NoError(t, err)
			require.Equal(t, testutil.Room1.ID, room.ID)
			require.Equal(t, testutil.Course1.ID, course.ID)
		})
	}
}

func Test_RoomVerifier_AuthorizeIsIdempotent(t *testing.T) {
	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	ctx = testutil.MockContextWithUserID(ctx, testutil.Student2.ID)

	verifier := NewRoomVerifier(
		repository.NewChatRoomRepository(),
		repository.NewCourseRepository(),
		repository.NewEnrollmentRepository(),
	)

	for i := 0; i < 3; i++ {
		room, _, err := verifier.Authorize(ctx, testutil.Room1.Name)
		require.NoError(t, err)
		require.Equal(t, testutil.Room1.Name, room.Name)
	}
}
