package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldBody        = "body"
	fieldContentType = "content_type"
	fieldVersion     = "version"
	fieldUpdatedAt   = "updated_at"
)

// Redis implements VersionedStore with one hash per object.
type Redis struct {
	client *redis.Client
	prefix string
}

var _ VersionedStore = (*Redis)(nil)

// NewRedis wraps an existing client. Keys are stored under prefix.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) hashKey(key string) string {
	return r.prefix + key
}

// Get returns the object stored under key, or ErrNotFound.
func (r *Redis) Get(ctx context.Context, key string) (*Object, error) {
	fields, err := r.client.HGetAll(ctx, r.hashKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	version, err := strconv.ParseInt(fields[fieldVersion], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse version of %s: %w", key, err)
	}
	obj := &Object{
		Key:         key,
		Body:        []byte(fields[fieldBody]),
		ContentType: fields[fieldContentType],
		Version:     version,
	}
	obj.UpdatedAt, _ = time.Parse(timeLayout, fields[fieldUpdatedAt])
	return obj, nil
}

// Put writes body under key, replacing any previous value.
func (r *Redis) Put(ctx context.Context, key string, body []byte, contentType string) error {
	hk := r.hashKey(key)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, hk,
			fieldBody, body,
			fieldContentType, contentType,
			fieldUpdatedAt, time.Now().UTC().Format(timeLayout),
		)
		pipe.HIncrBy(ctx, hk, fieldVersion, 1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// PutIfVersion writes body under key only if the stored version matches.
// The check and the write run in a WATCH/MULTI transaction.
func (r *Redis) PutIfVersion(ctx context.Context, key string, body []byte, contentType string, version int64) error {
	hk := r.hashKey(key)

	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, hk, fieldVersion).Int64()
		if errors.Is(err, redis.Nil) {
			current = 0
		} else if err != nil {
			return fmt.Errorf("read version: %w", err)
		}
		if current != version {
			return fmt.Errorf("%w: %s expected version %d, found %d", ErrVersionConflict, key, version, current)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, hk,
				fieldBody, body,
				fieldContentType, contentType,
				fieldUpdatedAt, time.Now().UTC().Format(timeLayout),
				fieldVersion, version+1,
			)
			return nil
		})
		return err
	}

	err := r.client.Watch(ctx, txf, hk)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: %s changed during write", ErrVersionConflict, key)
	}
	if err != nil && !errors.Is(err, ErrVersionConflict) {
		return fmt.Errorf("put object: %w", err)
	}
	return err
}
