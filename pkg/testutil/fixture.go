package testutil

import (
	"context"
	"time"

	"github.com/questx-lab/coursechat/internal/entity"
	"github.com/questx-lab/coursechat/internal/repository"
)

var (
	// Student1 and Student2 are enrolled in Course1.
	Student1 = entity.User{
		Base:      entity.Base{ID: "student1"},
		Username:  "alice",
		FirstName: "Alice",
		LastName:  "Nguyen",
	}

	Student2 = entity.User{
		Base:      entity.Base{ID: "student2"},
		Username:  "bob",
		FirstName: "Bob",
		LastName:  "Tran",
	}

	// Instructor1 teaches Course1 and Course2.
	Instructor1 = entity.User{
		Base:      entity.Base{ID: "instructor1"},
		Username:  "carol",
		FirstName: "Carol",
		LastName:  "Le",
	}

	// Outsider has no relation to any course.
	Outsider = entity.User{
		Base:     entity.Base{ID: "outsider"},
		Username: "mallory",
	}

	Users = []entity.User{Student1, Student2, Instructor1, Outsider}

	Course1 = entity.Course{
		Base:         entity.Base{ID: "course1"},
		Name:         "Distributed Systems",
		InstructorID: Instructor1.ID,
		Published:    true,
	}

	// Course2 is not published yet and has no room.
	Course2 = entity.Course{
		Base:         entity.Base{ID: "course2"},
		Name:         "Operating Systems",
		InstructorID: Instructor1.ID,
	}

	Courses = []entity.Course{Course1, Course2}

	Enrollments = []entity.Enrollment{
		{UserID: Student1.ID, CourseID: Course1.ID},
		{UserID: Student2.ID, CourseID: Course1.ID},
	}

	Room1 = entity.ChatRoom{
		SnowFlakeBase: entity.SnowFlakeBase{ID: 1000},
		CourseID:      Course1.ID,
		Name:          "distributed-systems",
	}

	Rooms = []entity.ChatRoom{Room1}

	Message1 = entity.ChatMessage{
		ID:        2001,
		RoomID:    Room1.ID,
		UserID:    Student1.ID,
		Content:   "first",
		CreatedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	Message2 = entity.ChatMessage{
		ID:        2002,
		RoomID:    Room1.ID,
		UserID:    Instructor1.ID,
		Content:   "second",
		CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	Message3 = entity.ChatMessage{
		ID:        2003,
		RoomID:    Room1.ID,
		UserID:    Student2.ID,
		Content:   "third",
		CreatedAt: time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC),
	}

	Messages = []entity.ChatMessage{Message1, Message2, Message3}
)

// CreateFixtureDb inserts copies of the fixtures, so tests can compare against
// the package variables safely.
func CreateFixtureDb(ctx context.Context) {
	InsertUsers(ctx)
	InsertCourses(ctx)
	InsertEnrollments(ctx)
	InsertChatRooms(ctx)
	InsertChatMessages(ctx)
}

func InsertUsers(ctx context.Context) {
	userRepo := repository.NewUserRepository()
	for _, u := range Users {
		u := u
		if err := userRepo.Create(ctx, &u); err != nil {
			panic(err)
		}
	}
}

func InsertCourses(ctx context.Context) {
	courseRepo := repository.NewCourseRepository()
	for _, c := range Courses {
		c := c
		if err := courseRepo.Create(ctx, &c); err != nil {
			panic(err)
		}
	}
}

func InsertEnrollments(ctx context.Context) {
	enrollmentRepo := repository.NewEnrollmentRepository()
	for _, e := range Enrollments {
		e := e
		if err := enrollmentRepo.Create(ctx, &e); err != nil {
			panic(err)
		}
	}
}

func InsertChatRooms(ctx context.Context) {
	chatRoomRepo := repository.NewChatRoomRepository()
	for _, r := range Rooms {
		r := r
		if err := chatRoomRepo.Create(ctx, &r); err != nil {
			panic(err)
		}
	}
}

func InsertChatMessages(ctx context.Context) {
	chatMessageRepo := repository.NewChatMessageRepository()
	for _, m := range Messages {
		m := m
		if err := chatMessageRepo.Create(ctx, &m); err != nil {
			panic(err)
		}
	}
}
