package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"tx-dashboard/internal/aggregate"
	"tx-dashboard/internal/model"
)

func TestRedisStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("TXDASH_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TXDASH_TEST_REDIS_ADDR 未设置, 跳过 Redis 测试")
	}

	ctx := context.Background()
	client, err := NewRedisClient(ctx, RedisOptions{Addr: addr})
	if err != nil {
		t.Fatalf("连接 Redis 失败: %v", err)
	}
	defer client.Close()

	store := NewRedisStore(client, "txdash:test:"+uuid.NewString()+":")
	identity := "csv:/tmp/status.csv|csv:/tmp/auth.csv"

	if _, ok, err := store.Load(ctx, identity); err != nil || ok {
		t.Fatalf("空 key 应为 miss: ok=%v err=%v", ok, err)
	}

	entry := Entry{
		Identity:   identity,
		ComputedAt: start,
		TTL:        time.Minute,
		Payload: Payload{Tables: aggregate.Build(
			[]model.StatusRecord{{Timestamp: start, Status: model.StatusApproved, Count: 3}},
			[]model.AuthRecord{{Timestamp: start, AuthCode: "00", Count: 2}},
		)},
	}
	if err := store.Save(ctx, entry); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	defer client.Del(ctx, store.key(identity))

	got, ok, err := store.Load(ctx, identity)
	if err != nil || !ok {
		t.Fatalf("读取失败: ok=%v err=%v", ok, err)
	}
	if !got.ComputedAt.Equal(start) || got.TTL != time.Minute {
		t.Fatalf("元数据不一致: %#v", got)
	}
	if got.Payload.Tables.Organized[0].Auth00() != 2 {
		t.Fatalf("payload 不一致: %#v", got.Payload.Tables.Organized)
	}

	ttl, err := client.TTL(ctx, store.key(identity)).Result()
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Fatalf("key 应随条目过期: ttl=%s err=%v", ttl, err)
	}
}
