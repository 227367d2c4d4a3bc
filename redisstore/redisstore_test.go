// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package redisstore

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/diffeo/go-visionclient/store/storetest"
)

const testHash = "visionclient:test:upload_handles"

// Suite runs the generic store tests against a live Redis server.
//
// The server address comes from $VISION_TEST_REDIS; if it is unset the
// tests are skipped.  The tests use their own hash, which is deleted
// before every test.
type Suite struct {
	storetest.Suite
	client *redis.Client
}

func (s *Suite) SetupSuite() {
	address := os.Getenv("VISION_TEST_REDIS")
	if address == "" {
		s.T().Skip("VISION_TEST_REDIS not set")
	}
	s.client = redis.NewClient(&redis.Options{Addr: address})
	s.Require().NoError(s.client.Ping(context.Background()).Err())
	s.Store = NewWithClient(s.client, testHash)
}

func (s *Suite) SetupTest() {
	s.Require().NoError(s.client.Del(context.Background(), testHash).Err())
}

func (s *Suite) TearDownSuite() {
	if s.Store != nil {
		s.client.Del(context.Background(), testHash)
		s.NoError(s.Store.Close())
	}
}

func TestRedis(t *testing.T) {
	suite.Run(t, &Suite{})
}
