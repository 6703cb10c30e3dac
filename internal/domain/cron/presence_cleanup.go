package cron

import (
	"context"
	"time"

	"github.com/questx-lab/coursechat/internal/domain/chat/event"
	"github.com/questx-lab/coursechat/internal/domain/chat/hub"
	"github.com/questx-lab/coursechat/internal/domain/chat/presence"
	"github.com/questx-lab/coursechat/internal/repository"
	"github.com/questx-lab/coursechat/pkg/xcontext"
)

// PresenceCleanupJob keeps this node alive in the shared presence and
// announces the users who went offline because another node died.
type PresenceCleanupJob struct {
	keeper      presence.Keeper
	userRepo    repository.UserRepository
	broadcaster hub.Broadcaster
	interval    time.Duration
}

func NewPresenceCleanupJob(
	keeper presence.Keeper,
	userRepo repository.UserRepository,
	broadcaster hub.Broadcaster,
	interval time.Duration,
) *PresenceCleanupJob {
	return &PresenceCleanupJob{
		keeper:      keeper,
		userRepo:    userRepo,
		broadcaster: broadcaster,
		interval:    interval,
	}
}

func (job *PresenceCleanupJob) Do(ctx context.Context) {
	if err := job.keeper.Heartbeat(ctx); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot send presence heartbeat: %v", err)
	}

	departures, err := job.keeper.CleanupDeadNodes(ctx)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot cleanup dead nodes: %v", err)
		return
	}

	userIDsByRoom := map[string][]string{}
	for _, d := range departures {
		userIDsByRoom[d.RoomKey] = append(userIDsByRoom[d.RoomKey], d.UserID)
	}

	for roomKey, userIDs := range userIDsByRoom {
		users, err := job.userRepo.GetByIDs(ctx, userIDs)
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot get users: %v", err)
			continue
		}

		usernames := []string{}
		for _, u := range users {
			usernames = append(usernames, u.Username)
		}

		err = job.broadcaster.Publish(ctx, roomKey, &event.UserDisconnected{Users: usernames})
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot publish user disconnected to room %s: %v", roomKey, err)
		}
	}
}

func (job *PresenceCleanupJob) RunNow() bool {
	return true
}

func (job *PresenceCleanupJob) Next() time.Time {
	return time.Now().Add(job.interval)
}
