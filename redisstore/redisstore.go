// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package redisstore provides a store.Store backed by a Redis hash.
// Every handle is one field of a single hash, holding the handle's
// JSON encoding.
package redisstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/diffeo/go-visionclient/platform"
	"github.com/diffeo/go-visionclient/restdata"
	"github.com/diffeo/go-visionclient/store"
)

// DefaultHash is the name of the hash holding saved handles.
const DefaultHash = "visionclient:upload_handles"

type redisStore struct {
	client *redis.Client
	hash   string
}

// New connects to a Redis server.  address is either "host:port" or a
// "redis://" URL, which may carry a password and database number.
func New(address string) (store.Store, error) {
	var options *redis.Options
	if strings.Contains(address, "://") {
		var err error
		options, err = redis.ParseURL(address)
		if err != nil {
			return nil, err
		}
	} else {
		if address == "" {
			address = "localhost:6379"
		}
		options = &redis.Options{Addr: address}
	}
	return NewWithClient(redis.NewClient(options), DefaultHash), nil
}

// NewWithClient creates a store using an existing client, keeping
// handles in the named hash.  Closing the store closes the client.
func NewWithClient(client *redis.Client, hash string) store.Store {
	return &redisStore{client: client, hash: hash}
}

func (s *redisStore) Save(ctx context.Context, key string, handle *platform.UploadHandle) error {
	encoded, err := restdata.EncodeBytes(handle)
	if err != nil {
		return err
	}
	if err = s.client.HSet(ctx, s.hash, key, encoded).Err(); err != nil {
		return fmt.Errorf("failed to save handle %s: %w", key, err)
	}
	return nil
}

func (s *redisStore) Load(ctx context.Context, key string) (*platform.UploadHandle, error) {
	encoded, err := s.client.HGet(ctx, s.hash, key).Bytes()
	if err == redis.Nil {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load handle %s: %w", key, err)
	}
	var handle platform.UploadHandle
	if err = restdata.DecodeBytes(encoded, &handle); err != nil {
		return nil, fmt.Errorf("failed to decode handle %s: %w", key, err)
	}
	return &handle, nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.HDel(ctx, s.hash, key).Err(); err != nil {
		return fmt.Errorf("failed to delete handle %s: %w", key, err)
	}
	return nil
}

func (s *redisStore) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.client.HKeys(ctx, s.hash).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list handles: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
