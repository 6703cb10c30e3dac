package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/questx-lab/coursechat/internal/common"
	"github.com/questx-lab/coursechat/internal/entity"
	"github.com/questx-lab/coursechat/internal/model"
	"github.com/questx-lab/coursechat/internal/repository"
	"github.com/questx-lab/coursechat/pkg/errorx"
	"github.com/questx-lab/coursechat/pkg/storage"
	"github.com/questx-lab/coursechat/pkg/xcontext"
	"gorm.io/gorm"
)

type ChatMessageDomain interface {
	Submit(ctx context.Context, roomID int64, req *model.SubmitMessageRequest) (*model.ChatMessage, error)
	GetChatMessages(context.Context, *model.GetChatMessagesRequest) (*model.GetChatMessagesResponse, error)
}

type chatMessageDomain struct {
	chatRoomRepo    repository.ChatRoomRepository
	chatMessageRepo repository.ChatMessageRepository
	userRepo        repository.UserRepository
	roomVerifier    *common.RoomVerifier

	// storage is nil when no file store is configured. File references are
	// then only checked by their shape.
	storage storage.Storage
}

func NewChatMessageDomain(
	chatRoomRepo repository.ChatRoomRepository,
	chatMessageRepo repository.ChatMessageRepository,
	userRepo repository.UserRepository,
	roomVerifier *common.RoomVerifier,
	storage storage.Storage,
) *chatMessageDomain {
	return &chatMessageDomain{
		chatRoomRepo:    chatRoomRepo,
		chatMessageRepo: chatMessageRepo,
		userRepo:        userRepo,
		roomVerifier:    roomVerifier,
		storage:         storage,
	}
}

func (d *chatMessageDomain) Submit(
	ctx context.Context, roomID int64, req *model.SubmitMessageRequest,
) (*model.ChatMessage, error) {
	userID := xcontext.RequestUserID(ctx)
	if userID == "" {
		return nil, errorx.New(errorx.Unauthenticated, "You need to authenticate before")
	}

	if strings.TrimSpace(req.Content) == "" && req.File == "" {
		return nil, errorx.New(errorx.BadRequest, "Require content or file")
	}

	maxLength := xcontext.Configs(ctx).Chat.MaxContentLength
	if utf8.RuneCountInString(req.Content) > maxLength {
		return nil, errorx.New(errorx.BadRequest, "Content must not exceed %d characters", maxLength)
	}

	room, err := d.chatRoomRepo.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.BadRequest, "Not found room")
		}

		xcontext.Logger(ctx).Errorf("Cannot get room: %v", err)
		return nil, errorx.Unknown
	}

	if req.File != "" {
		if err := d.verifyFile(ctx, room, userID, req.File); err != nil {
			return nil, err
		}
	}

	author, err := d.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.Unauthenticated, "Not found user")
		}

		xcontext.Logger(ctx).Errorf("Cannot get author: %v", err)
		return nil, errorx.Unknown
	}

	msg := &entity.ChatMessage{
		ID:        xcontext.SnowFlake(ctx).Generate().Int64(),
		RoomID:    room.ID,
		UserID:    userID,
		Content:   req.Content,
		File:      req.File,
		CreatedAt: time.Now().UTC(),
	}

	if err := d.chatMessageRepo.Create(ctx, msg); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot create message: %v", err)
		return nil, errorx.New(errorx.Internal, "Cannot save message")
	}

	result := model.ConvertChatMessage(msg, author)
	return &result, nil
}

// MessageFilePrefix is the only place a user may reference files from in a
// room.
func MessageFilePrefix(courseID, userID string) string {
	return fmt.Sprintf("message_files/%s/%s/", courseID, userID)
}

func (d *chatMessageDomain) verifyFile(ctx context.Context, room *entity.ChatRoom, userID, file string) error {
	prefix := MessageFilePrefix(room.CourseID, userID)
	if !strings.HasPrefix(file, prefix) || len(file) == len(prefix) || strings.Contains(file, "..") {
		return errorx.New(errorx.BadRequest, "Invalid file reference")
	}

	if d.storage == nil {
		return nil
	}

	exists, err := d.storage.Exists(ctx, file)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot check file %s: %v", file, err)
		return errorx.Unknown
	}

	if !exists {
		return errorx.New(errorx.BadRequest, "Not found file")
	}

	return nil
}

func (d *chatMessageDomain) GetChatMessages(
	ctx context.Context, req *model.GetChatMessagesRequest,
) (*model.GetChatMessagesResponse, error) {
	room, _, err := d.roomVerifier.Authorize(ctx, req.RoomName)
	if err != nil {
		return nil, err
	}

	cfg := xcontext.Configs(ctx).Chat
	if req.Limit == 0 {
		req.Limit = cfg.DefaultHistoryLimit
	}

	if req.Limit < 0 {
		return nil, errorx.New(errorx.BadRequest, "Limit must be positive")
	}

	if req.Limit > cfg.MaxHistoryLimit {
		return nil, errorx.New(errorx.BadRequest, "Exceed the maximum of limit (%d)", cfg.MaxHistoryLimit)
	}

	messages, err := d.chatMessageRepo.GetListBefore(ctx, room.ID, req.Before, req.Limit)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.BadRequest, "Not found message %d in room", req.Before)
		}

		xcontext.Logger(ctx).Errorf("Cannot get messages: %v", err)
		return nil, errorx.Unknown
	}

	authorIDs := []string{}
	for _, m := range messages {
		authorIDs = append(authorIDs, m.UserID)
	}

	authors, err := d.userRepo.GetByIDs(ctx, authorIDs)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get authors: %v", err)
		return nil, errorx.Unknown
	}

	authorSet := map[string]*entity.User{}
	for i := range authors {
		authorSet[authors[i].ID] = &authors[i]
	}

	// The page is read newest first but shown oldest first.
	groups := []model.ChatMessageGroup{}
	for i := len(messages) - 1; i >= 0; i-- {
		msg := model.ConvertChatMessage(&messages[i], authorSet[messages[i].UserID])
		date := msg.Timestamp.Format(time.DateOnly)

		if len(groups) == 0 || groups[len(groups)-1].Date != date {
			groups = append(groups, model.ChatMessageGroup{Date: date})
		}

		last := &groups[len(groups)-1]
		last.Messages = append(last.Messages, msg)
	}

	return &model.GetChatMessagesResponse{Groups: groups}, nil
}
