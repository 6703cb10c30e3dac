package common

import (
	"fmt"
	"strings"
)

func RedisKeyRoomPresence(roomKey string) string {
	return fmt.Sprintf("chat:presence:room:%s", roomKey)
}

func RedisKeyUserPresence(userID string) string {
	return fmt.Sprintf("chat:presence:user:%s", userID)
}

func RedisKeyNodePresence(nodeID string) string {
	return fmt.Sprintf("chat:presence:node:%s", nodeID)
}

func RedisKeyPresenceNodes() string {
	return "chat:presence:nodes"
}

func RedisKeyNodeAlive(nodeID string) string {
	return fmt.Sprintf("chat:presence:alive:%s", nodeID)
}

func RedisValueNodePresence(roomKey, userID string) string {
	return fmt.Sprintf("%s|%s", roomKey, userID)
}

func FromRedisValueNodePresence(value string) (string, string) {
	roomKey, userID, _ := strings.Cut(value, "|")
	return roomKey, userID
}
