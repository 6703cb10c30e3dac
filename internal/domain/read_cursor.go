package domain

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/questx-lab/coursechat/internal/entity"
	"github.com/questx-lab/coursechat/internal/model"
	"github.com/questx-lab/coursechat/internal/repository"
	"github.com/questx-lab/coursechat/pkg/errorx"
	"github.com/questx-lab/coursechat/pkg/xcontext"
	"gorm.io/gorm"
)

// ReadCursorDomain keeps the last message each user has seen in a room. The
// last write wins, the cursor may move backward.
type ReadCursorDomain interface {
	GetLastViewed(ctx context.Context, roomID int64) (*int64, error)
	MarkViewed(ctx context.Context, roomID, messageID int64) error
	Touch(ctx context.Context, roomID int64) error
}

type readCursorDomain struct {
	chatMemberRepo  repository.ChatMemberRepository
	chatMessageRepo repository.ChatMessageRepository
}

func NewReadCursorDomain(
	chatMemberRepo repository.ChatMemberRepository,
	chatMessageRepo repository.ChatMessageRepository,
) *readCursorDomain {
	return &readCursorDomain{
		chatMemberRepo:  chatMemberRepo,
		chatMessageRepo: chatMessageRepo,
	}
}

func (d *readCursorDomain) GetLastViewed(ctx context.Context, roomID int64) (*int64, error) {
	userID := xcontext.RequestUserID(ctx)
	if userID == "" {
		return nil, errorx.New(errorx.Unauthenticated, "You need to authenticate before")
	}

	member, err := d.chatMemberRepo.GetOrCreate(ctx, userID, roomID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get membership: %v", err)
		return nil, errorx.Unknown
	}

	return model.ConvertNullInt64(member.LastViewedMessageID), nil
}

// MarkViewed moves the cursor to messageID, which must be a message of the
// room. A zero messageID only refreshes the last activity.
func (d *readCursorDomain) MarkViewed(ctx context.Context, roomID, messageID int64) error {
	if messageID == 0 {
		return d.Touch(ctx, roomID)
	}

	userID := xcontext.RequestUserID(ctx)
	if userID == "" {
		return errorx.New(errorx.Unauthenticated, "You need to authenticate before")
	}

	if _, err := d.chatMessageRepo.GetByID(ctx, roomID, messageID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errorx.New(errorx.BadRequest, "Message does not belong to this room")
		}

		xcontext.Logger(ctx).Errorf("Cannot get message: %v", err)
		return errorx.Unknown
	}

	err := d.chatMemberRepo.UpsertLastViewed(ctx, &entity.ChatMember{
		UserID:              userID,
		RoomID:              roomID,
		LastViewedMessageID: sql.NullInt64{Int64: messageID, Valid: true},
		LastActiveAt:        time.Now().UTC(),
	})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot update last viewed message: %v", err)
		return errorx.New(errorx.Internal, "Cannot save read cursor")
	}

	return nil
}

func (d *readCursorDomain) Touch(ctx context.Context, roomID int64) error {
	userID := xcontext.RequestUserID(ctx)
	if userID == "" {
		return errorx.New(errorx.Unauthenticated, "You need to authenticate before")
	}

	if err := d.chatMemberRepo.UpsertLastActive(ctx, userID, roomID, time.Now().UTC()); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot update last activity: %v", err)
		return errorx.New(errorx.Internal, "Cannot save read cursor")
	}

	return nil
}
