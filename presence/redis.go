package presence

import (
	"context"
	"fmt"

	"github.com/akinalp/reson8/models"
	"github.com/redis/go-redis/v9"
)

// redisStore backs the Presence Store with an external Redis instance,
// for deployments that run more than one signaling process in front of a
// shared cache. Every multi-key update goes through a single TxPipelined
// call — Redis's transaction primitive — so the update is all-or-nothing.
type redisStore struct {
	client *redis.Client
}

// NewRedisStore connects to url (a redis:// URL) and returns a Store
// backed by it. The connection is verified with a PING before returning.
func NewRedisStore(ctx context.Context, url string) (Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid PRESENCE_STORE_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to presence store: %w", err)
	}
	return &redisStore{client: client}, nil
}

func serverSetKey(serverID string) string   { return "reson8:presence:server:" + serverID }
func channelSetKey(channelID string) string { return "reson8:presence:channel:" + channelID }
func metaKey(userID string) string          { return "reson8:presence:meta:" + userID }

func (s *redisStore) JoinServer(ctx context.Context, serverID, userID, nickname string) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, serverSetKey(serverID), userID)
		p.HSet(ctx, metaKey(userID), "serverId", serverID, "channelId", "", "nickname", nickname)
		p.Expire(ctx, metaKey(userID), DefaultTTL)
		return nil
	})
	return err
}

func (s *redisStore) LeaveServer(ctx context.Context, serverID, userID string) error {
	meta, err := s.client.HGetAll(ctx, metaKey(userID)).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to read presence metadata: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if channelID := meta["channelId"]; channelID != "" {
			p.SRem(ctx, channelSetKey(channelID), userID)
		}
		p.SRem(ctx, serverSetKey(serverID), userID)
		p.Del(ctx, metaKey(userID))
		return nil
	})
	return err
}

func (s *redisStore) JoinChannel(ctx context.Context, serverID, channelID, userID, nickname string) error {
	meta, err := s.client.HGetAll(ctx, metaKey(userID)).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to read presence metadata: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if prevChannel := meta["channelId"]; prevChannel != "" && prevChannel != channelID {
			p.SRem(ctx, channelSetKey(prevChannel), userID)
		}
		p.SAdd(ctx, channelSetKey(channelID), userID)
		p.HSet(ctx, metaKey(userID), "serverId", serverID, "channelId", channelID, "nickname", nickname)
		p.Expire(ctx, metaKey(userID), DefaultTTL)
		return nil
	})
	return err
}

func (s *redisStore) LeaveChannel(ctx context.Context, serverID, userID string) error {
	meta, err := s.client.HGetAll(ctx, metaKey(userID)).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to read presence metadata: %w", err)
	}
	channelID := meta["channelId"]
	if channelID == "" {
		return nil
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SRem(ctx, channelSetKey(channelID), userID)
		p.HSet(ctx, metaKey(userID), "channelId", "")
		p.Expire(ctx, metaKey(userID), DefaultTTL)
		return nil
	})
	return err
}

func (s *redisStore) ServerMembers(ctx context.Context, serverID string) ([]string, error) {
	members, err := s.client.SMembers(ctx, serverSetKey(serverID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list server presence: %w", err)
	}
	return members, nil
}

func (s *redisStore) ChannelMembers(ctx context.Context, channelID string) ([]string, error) {
	members, err := s.client.SMembers(ctx, channelSetKey(channelID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list channel presence: %w", err)
	}
	return members, nil
}

func (s *redisStore) Get(ctx context.Context, userID string) (*models.PresenceRecord, error) {
	meta, err := s.client.HGetAll(ctx, metaKey(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read presence metadata: %w", err)
	}
	if len(meta) == 0 {
		return nil, nil
	}
	return &models.PresenceRecord{
		UserID:    userID,
		ServerID:  meta["serverId"],
		ChannelID: meta["channelId"],
		Nickname:  meta["nickname"],
	}, nil
}
