package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lunia-systems/lunia-console/internal/model"
	"github.com/redis/go-redis/v9"
)

// Repo persists the serialized Identity across restarts. Load returns
// ok=false when no record exists yet; a corrupt record is an error the
// store downgrades to the default identity.
type Repo interface {
	Load(ctx context.Context) (model.Identity, bool, error)
	Save(ctx context.Context, id model.Identity) error
}

// FileRepo keeps the identity in a local JSON state file, written
// atomically (tmp file + fsync + rename) so a crash mid-save never leaves
// a torn record behind.
type FileRepo struct {
	path string
}

func NewFileRepo(path string) *FileRepo {
	return &FileRepo{path: path}
}

func (r *FileRepo) Load(_ context.Context) (model.Identity, bool, error) {
	b, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.Identity{}, false, nil
		}
		return model.Identity{}, false, err
	}
	var id model.Identity
	if err := json.Unmarshal(b, &id); err != nil {
		return model.Identity{}, false, fmt.Errorf("corrupt session state: %w", err)
	}
	return id, true, nil
}

func (r *FileRepo) Save(_ context.Context, id model.Identity) error {
	b, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return err
	}
	return writeFileAtomic(r.path, b, 0o600)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// RedisRepo keeps the identity in a single redis key, for deployments
// where the console itself is replicated.
type RedisRepo struct {
	client *redis.Client
	key    string
}

func NewRedisRepo(addr, password string, db int, key string) (*RedisRepo, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}
	if key == "" {
		key = "lunia:console:session"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisRepo{client: rdb, key: key}, nil
}

func (r *RedisRepo) Load(ctx context.Context) (model.Identity, bool, error) {
	raw, err := r.client.Get(ctx, r.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Identity{}, false, nil
		}
		return model.Identity{}, false, err
	}
	var id model.Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return model.Identity{}, false, fmt.Errorf("corrupt session state: %w", err)
	}
	return id, true, nil
}

func (r *RedisRepo) Save(ctx context.Context, id model.Identity) error {
	b, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key, b, 0).Err()
}
