package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/questx-lab/coursechat/internal/common"
	"github.com/questx-lab/coursechat/pkg/xcontext"
	"github.com/questx-lab/coursechat/pkg/xredis"
	"github.com/redis/go-redis/v9"
	"golang.org/x/exp/slices"
)

// KEYS: room hash, user set, node hash, node set, node alive key.
// ARGV: user, room, room|user, node, alive ttl in milliseconds.
var joinScript = redis.NewScript(`
redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
redis.call('SADD', KEYS[2], ARGV[2])
redis.call('HINCRBY', KEYS[3], ARGV[3], 1)
redis.call('SADD', KEYS[4], ARGV[4])
redis.call('SET', KEYS[5], '1', 'PX', ARGV[5])
return 1
`)

// KEYS: room hash, user set, node hash.
// ARGV: user, room, room|user, number of connections to remove.
// Returns -1 if the node holds no connection of the pair, otherwise the
// number of connections left for the user in the room across all nodes.
var leaveScript = redis.NewScript(`
local own = tonumber(redis.call('HGET', KEYS[3], ARGV[3]) or '0')
if own <= 0 then
	return -1
end
local n = math.min(own, tonumber(ARGV[4]))
own = redis.call('HINCRBY', KEYS[3], ARGV[3], -n)
if own <= 0 then
	redis.call('HDEL', KEYS[3], ARGV[3])
end
local left = redis.call('HINCRBY', KEYS[1], ARGV[1], -n)
if left <= 0 then
	redis.call('HDEL', KEYS[1], ARGV[1])
	redis.call('SREM', KEYS[2], ARGV[2])
	left = 0
end
return left
`)

type redisRegistry struct {
	client xredis.Client
	nodeID string
	ttl    time.Duration
}

// NewRedisRegistry shares presence between every node using the same redis.
// Each node keeps its own share of the counters, so the share of a node whose
// heartbeat stops for ttl can be removed by the others.
func NewRedisRegistry(client xredis.Client, nodeID string, ttl time.Duration) *redisRegistry {
	return &redisRegistry{client: client, nodeID: nodeID, ttl: ttl}
}

func (r *redisRegistry) Join(ctx context.Context, userID, roomKey string) error {
	_, err := r.client.Run(ctx, joinScript,
		[]string{
			common.RedisKeyRoomPresence(roomKey),
			common.RedisKeyUserPresence(userID),
			common.RedisKeyNodePresence(r.nodeID),
			common.RedisKeyPresenceNodes(),
			common.RedisKeyNodeAlive(r.nodeID),
		},
		userID, roomKey, common.RedisValueNodePresence(roomKey, userID), r.nodeID, r.ttl.Milliseconds(),
	)
	return err
}

func (r *redisRegistry) Leave(ctx context.Context, userID, roomKey string) (bool, error) {
	left, err := r.leave(ctx, r.nodeID, userID, roomKey, 1)
	if err != nil {
		return false, err
	}

	// -1 means this node held no connection of the user.
	return left == 0, nil
}

func (r *redisRegistry) leave(ctx context.Context, nodeID, userID, roomKey string, n int) (int64, error) {
	result, err := r.client.Run(ctx, leaveScript,
		[]string{
			common.RedisKeyRoomPresence(roomKey),
			common.RedisKeyUserPresence(userID),
			common.RedisKeyNodePresence(nodeID),
		},
		userID, roomKey, common.RedisValueNodePresence(roomKey, userID), n,
	)
	if err != nil {
		return 0, err
	}

	left, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected result of leave script: %T", result)
	}

	return left, nil
}

func (r *redisRegistry) ListOnline(ctx context.Context, roomKey string) ([]string, error) {
	users, err := r.client.HKeys(ctx, common.RedisKeyRoomPresence(roomKey))
	if err != nil {
		return nil, err
	}

	slices.Sort(users)
	return users, nil
}

func (r *redisRegistry) RoomsOf(ctx context.Context, userID string) ([]string, error) {
	rooms, err := r.client.SMembers(ctx, common.RedisKeyUserPresence(userID))
	if err != nil {
		return nil, err
	}

	slices.Sort(rooms)
	return rooms, nil
}

// Heartbeat marks this node alive for ttl.
func (r *redisRegistry) Heartbeat(ctx context.Context) error {
	if err := r.client.SAdd(ctx, common.RedisKeyPresenceNodes(), r.nodeID); err != nil {
		return err
	}

	return r.client.Set(ctx, common.RedisKeyNodeAlive(r.nodeID), "1", r.ttl)
}

// CleanupDeadNodes removes the connections held by nodes whose heartbeat
// expired. It returns the users who are no longer online in a room because of
// it.
func (r *redisRegistry) CleanupDeadNodes(ctx context.Context) ([]Departure, error) {
	nodes, err := r.client.SMembers(ctx, common.RedisKeyPresenceNodes())
	if err != nil {
		return nil, err
	}

	departures := []Departure{}
	for _, nodeID := range nodes {
		if nodeID == r.nodeID {
			continue
		}

		alive, err := r.client.Exist(ctx, common.RedisKeyNodeAlive(nodeID))
		if err != nil {
			return nil, err
		}

		if alive {
			continue
		}

		pairs, err := r.client.HGetAll(ctx, common.RedisKeyNodePresence(nodeID))
		if err != nil {
			return nil, err
		}

		for pair, value := range pairs {
			count, err := strconv.Atoi(value)
			if err != nil {
				xcontext.Logger(ctx).Warnf("Invalid presence count of %s at node %s: %s", pair, nodeID, value)
				continue
			}

			roomKey, userID := common.FromRedisValueNodePresence(pair)
			left, err := r.leave(ctx, nodeID, userID, roomKey, count)
			if err != nil {
				return nil, err
			}

			if left == 0 {
				departures = append(departures, Departure{RoomKey: roomKey, UserID: userID})
			}
		}

		if err := r.client.Del(ctx, common.RedisKeyNodePresence(nodeID)); err != nil {
			return nil, err
		}

		if err := r.client.SRem(ctx, common.RedisKeyPresenceNodes(), nodeID); err != nil {
			return nil, err
		}

		xcontext.Logger(ctx).Infof("Removed presence of dead node %s", nodeID)
	}

	return departures, nil
}
