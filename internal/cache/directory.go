package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"school-service/internal/models"
	"school-service/internal/observability"
)

const userKeyPrefix = "school:directory:user:"

// Directory is the upstream lookup being cached.
type Directory interface {
	BulkUsers(ctx context.Context, ids []string) ([]models.UserProfile, error)
}

// CachedDirectory keeps user profiles in Redis for ttl. Redis failures fall
// through to the upstream directory.
type CachedDirectory struct {
	next  Directory
	redis *redis.Client
	ttl   time.Duration
}

func NewCachedDirectory(next Directory, client *redis.Client, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{next: next, redis: client, ttl: ttl}
}

func (d *CachedDirectory) BulkUsers(ctx context.Context, ids []string) ([]models.UserProfile, error) {
	if len(ids) == 0 {
		return []models.UserProfile{}, nil
	}

	found := make(map[string]models.UserProfile, len(ids))
	misses := ids

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = userKeyPrefix + id
	}
	values, err := d.redis.MGet(ctx, keys...).Result()
	if err != nil {
		log.Printf("directory cache read failed: %v", err)
	} else {
		misses = misses[:0:0]
		for i, v := range values {
			raw, ok := v.(string)
			if !ok {
				misses = append(misses, ids[i])
				continue
			}
			var profile models.UserProfile
			if err := json.Unmarshal([]byte(raw), &profile); err != nil {
				misses = append(misses, ids[i])
				continue
			}
			found[ids[i]] = profile
		}
	}

	observability.AddDirectoryCache("hit", len(found))
	observability.AddDirectoryCache("miss", len(misses))

	if len(misses) > 0 {
		fetched, err := d.next.BulkUsers(ctx, misses)
		if err != nil {
			return nil, err
		}
		d.store(ctx, fetched)
		for _, p := range fetched {
			found[p.ID] = p
		}
	}

	out := make([]models.UserProfile, 0, len(found))
	for _, id := range ids {
		if p, ok := found[id]; ok {
			out = append(out, p)
			delete(found, id)
		}
	}
	return out, nil
}

func (d *CachedDirectory) store(ctx context.Context, profiles []models.UserProfile) {
	if len(profiles) == 0 {
		return
	}
	pipe := d.redis.Pipeline()
	for _, p := range profiles {
		data, err := json.Marshal(p)
		if err != nil {
			continue
		}
		pipe.Set(ctx, userKeyPrefix+p.ID, data, d.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("directory cache write failed: %v", err)
	}
}
