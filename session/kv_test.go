package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
)

func newMiniRedisKV(t *testing.T, prefix string, ttl time.Duration) (*RedisKV, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewRedisKV(rdb, prefix, ttl), mr
}

func TestRedisKVPrefixAndTTL(t *testing.T) {
	kv, mr := newMiniRedisKV(t, "gs", time.Hour)
	ctx := context.Background()

	if err := kv.SetMulti(ctx, map[string]string{"access_token": "a", "refresh_token": "r"}); err != nil {
		t.Fatalf("set multi: %v", err)
	}

	got, err := mr.Get("{gs}:access_token")
	if err != nil || got != "a" {
		t.Fatalf("expected prefixed key, got %q err=%v", got, err)
	}
	if ttl := mr.TTL("{gs}:refresh_token"); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %v", ttl)
	}

	vals, err := kv.GetMulti(ctx, "access_token", "refresh_token", "missing")
	if err != nil {
		t.Fatalf("get multi: %v", err)
	}
	if vals[0] != "a" || vals[1] != "r" || vals[2] != "" {
		t.Fatalf("unexpected values %v", vals)
	}

	if err := kv.DeleteMulti(ctx, "access_token", "refresh_token"); err != nil {
		t.Fatalf("delete multi: %v", err)
	}
	if mr.Exists("{gs}:access_token") || mr.Exists("{gs}:refresh_token") {
		t.Fatal("expected keys deleted")
	}
}

func TestRedisKVMissingKey(t *testing.T) {
	kv, _ := newMiniRedisKV(t, "", 0)

	v, ok, err := kv.Get(context.Background(), "nope")
	if err != nil || ok || v != "" {
		t.Fatalf("expected clean miss, got v=%q ok=%v err=%v", v, ok, err)
	}
	if err := kv.Delete(context.Background(), "nope"); err != nil {
		t.Fatalf("delete of missing key: %v", err)
	}
}

func TestStoreOverRedisSurvivesRestart(t *testing.T) {
	kv, _ := newMiniRedisKV(t, "gs", 0)
	ctx := context.Background()

	first := NewStore(kv, Options{Clock: NewManualClock(testStart)})
	if err := first.SetTokens(ctx, "a", "r"); err != nil {
		t.Fatalf("set tokens: %v", err)
	}
	first.Close()

	second := NewStore(kv, Options{Clock: NewManualClock(testStart)})
	defer second.Close()
	cred, err := second.Credential(ctx)
	if err != nil {
		t.Fatalf("credential: %v", err)
	}
	if cred.AccessToken != "a" || cred.RefreshToken != "r" {
		t.Fatalf("unexpected credential %+v", cred)
	}
}

func TestRedisKVUnavailable(t *testing.T) {
	db, mock := redismock.NewClientMock()
	kv := NewRedisKV(db, "", 0)
	ctx := context.Background()
	boom := errors.New("connection refused")

	mock.ExpectGet("access_token").SetErr(boom)
	if _, _, err := kv.Get(ctx, "access_token"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable from Get, got %v", err)
	}

	mock.ExpectMGet("access_token", "refresh_token").SetErr(boom)
	store := NewStore(kv, Options{Clock: NewManualClock(testStart)})
	defer store.Close()
	if _, err := store.Credential(ctx); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable from Credential, got %v", err)
	}

	mock.ExpectSet("access_token", "a", 0).SetErr(boom)
	if err := kv.Set(ctx, "access_token", "a"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable from Set, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet redis expectations: %v", err)
	}
}

func TestFileKVPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.yaml")
	ctx := context.Background()

	kv := NewFileKV(path)
	if v, ok, err := kv.Get(ctx, "access_token"); err != nil || ok || v != "" {
		t.Fatalf("expected empty read before first write, got v=%q ok=%v err=%v", v, ok, err)
	}

	store := NewStore(kv, Options{Clock: NewManualClock(testStart)})
	if err := store.SetTokens(ctx, "a", "r"); err != nil {
		t.Fatalf("set tokens: %v", err)
	}
	store.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600, got %o", perm)
	}

	reopened := NewFileKV(path)
	vals, err := reopened.GetMulti(ctx, "access_token", "refresh_token")
	if err != nil {
		t.Fatalf("get multi: %v", err)
	}
	if vals[0] != "a" || vals[1] != "r" {
		t.Fatalf("unexpected values %v", vals)
	}

	if err := reopened.DeleteMulti(ctx, "access_token", "refresh_token"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := kv.Get(ctx, "refresh_token"); ok {
		t.Fatal("expected refresh token removed")
	}
}

func TestFileKVCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	if err := os.WriteFile(path, []byte("- a\n- b\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, _, err := NewFileKV(path).Get(context.Background(), "access_token")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
