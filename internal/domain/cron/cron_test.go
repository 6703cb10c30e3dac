package cron

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/questx-lab/coursechat/internal/common"
	"github.com/questx-lab/coursechat/internal/domain/chat/event"
	"github.com/questx-lab/coursechat/internal/domain/chat/hub"
	"github.com/questx-lab/coursechat/internal/domain/chat/presence"
	"github.com/questx-lab/coursechat/internal/repository"
	"github.com/questx-lab/coursechat/pkg/testutil"
	"github.com/questx-lab/coursechat/pkg/xcontext"
	"github.com/questx-lab/coursechat/pkg/xredis"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runNow bool
	count  atomic.Int32
}

func (job *countingJob) Do(context.Context) { job.count.Add(1) }
func (job *countingJob) RunNow() bool       { return job.runNow }
func (job *countingJob) Next() time.Time    { return time.Now().Add(10 * time.Millisecond) }

func TestCronJobManager(t *testing.T) {
	ctx := testutil.MockContext()

	now := &countingJob{runNow: true}
	later := &countingJob{}

	m := NewCronJobManager()
	m.Register(now)
	m.Register(later)

	stopped := make(chan struct{})
	go func() {
		m.Start(ctx)
		close(stopped)
	}()

	require.Eventually(t, func() bool {
		return now.count.Load() >= 3 && later.count.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	m.Cancel(ctx)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("manager did not stop")
	}

	// Nothing is scheduled after Cancel, at most one run was in flight.
	count := now.count.Load()
	time.Sleep(50 * time.Millisecond)
	require.LessOrEqual(t, now.count.Load(), count+1)
}

func TestPresenceCleanupJob(t *testing.T) {
	mr := miniredis.RunT(t)

	ctx := testutil.MockContext()
	testutil.CreateFixtureDb(ctx)
	cfg := xcontext.Configs(ctx)
	cfg.Redis.Addr = mr.Addr()
	ctx = xcontext.WithConfigs(ctx, cfg)

	client, err := xredis.NewClient(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	alive := presence.NewRedisRegistry(client, "alive", 30*time.Second)
	dead := presence.NewRedisRegistry(client, "dead", 30*time.Second)

	require.NoError(t, dead.Join(ctx, testutil.Student1.ID, "1000"))
	require.NoError(t, dead.Join(ctx, testutil.Student2.ID, "1000"))
	require.NoError(t, alive.Join(ctx, testutil.Student2.ID, "1000"))

	broadcaster := hub.NewLocalBroadcaster(hub.NewRouter(cfg.Chat.HubBufferSize))
	session := hub.NewSession(testutil.Instructor1.ID, cfg.Chat.SessionBufferSize)
	require.NoError(t, broadcaster.Subscribe(ctx, "1000", session))

	mr.FastForward(time.Minute)

	job := NewPresenceCleanupJob(alive, repository.NewUserRepository(), broadcaster, time.Second)
	job.Do(ctx)

	select {
	case msg := <-session.C:
		var got struct {
			Action string   `json:"action"`
			Users  []string `json:"users"`
		}
		require.NoError(t, json.Unmarshal(msg, &got))
		require.Equal(t, event.ActionUserDisconnected, got.Action)
		require.Equal(t, []string{testutil.Student1.Username}, got.Users)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for user disconnected")
	}

	online, err := alive.ListOnline(ctx, "1000")
	require.NoError(t, err)
	require.Equal(t, []string{testutil.Student2.ID}, online)

	// The heartbeat keeps this node alive for the others.
	ok, err := client.Exist(ctx, common.RedisKeyNodeAlive("alive"))
	require.NoError(t, err)
	require.True(t, ok)

	require.True(t, job.RunNow())
	require.WithinDuration(t, time.Now().Add(time.Second), job.Next(), 100*time.Millisecond)
}
