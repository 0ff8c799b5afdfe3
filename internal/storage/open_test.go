package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"remindme/internal/config"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, &config.Config{SessionStore: config.StoreMemory})
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("Open memory returned %T", s)
	}

	path := filepath.Join(t.TempDir(), "s.json")
	s, err = Open(ctx, &config.Config{SessionStore: config.StoreFile, SessionFile: path})
	if err != nil {
		t.Fatalf("Open file: %v", err)
	}
	if fs, ok := s.(*FileStore); !ok || fs.Path() != path {
		t.Errorf("Open file returned %T", s)
	}

	mr := miniredis.RunT(t)
	s, err = Open(ctx, &config.Config{SessionStore: config.StoreRedis, RedisAddr: mr.Addr(), RedisKeyPrefix: "x:"})
	if err != nil {
		t.Fatalf("Open redis: %v", err)
	}
	if _, ok := s.(*RedisStore); !ok {
		t.Errorf("Open redis returned %T", s)
	}
	s.Close()

	if _, err := Open(ctx, &config.Config{SessionStore: "tape"}); err == nil {
		t.Error("Open with unknown store should fail")
	}
	if _, err := Open(ctx, &config.Config{SessionStore: config.StorePostgres}); err == nil {
		t.Error("Open postgres without DSN should fail")
	}
}
