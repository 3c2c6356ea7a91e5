package achievements

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"moodlog-insights/internal/models"
)

// fakeRemoteStore 可注入故障的远端解锁存储
type fakeRemoteStore struct {
	rows    []models.UnlockedAchievement
	saved   [][]models.AchievementType
	loadErr error
	saveErr error
}

func (f *fakeRemoteStore) LoadUnlocked(ctx context.Context, userID string) ([]models.UnlockedAchievement, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.rows, nil
}

func (f *fakeRemoteStore) SaveUnlocked(ctx context.Context, userID string, types []models.AchievementType) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, types)
	return nil
}

func setupStateManager(t *testing.T, remote *fakeRemoteStore) (*StateManager, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewStateManager(NewRedisKVStore(client), remote, zap.NewNop()), mr
}

func TestStateManager_Load_MergesLocalAndRemote(t *testing.T) {
	remote := &fakeRemoteStore{rows: []models.UnlockedAchievement{
		{UserID: "user-1", Type: "streak_3", UnlockedAt: time.Now()},
	}}
	mgr, mr := setupStateManager(t, remote)

	// 本地缓存只含 first_log，远端只含 streak_3：合并为并集
	require.NoError(t, mr.Set("moodlog:user:user-1:achievements", `["first_log"]`))

	unlocked, err := mgr.Load(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, unlocked["first_log"])
	assert.True(t, unlocked["streak_3"])
	assert.Len(t, unlocked, 2)
}

func TestStateManager_Load_RemoteFailureFallsBackToLocal(t *testing.T) {
	remote := &fakeRemoteStore{loadErr: errors.New("connection refused")}
	mgr, mr := setupStateManager(t, remote)

	require.NoError(t, mr.Set("moodlog:user:user-1:achievements", `["first_log"]`))

	// 远端不可用降级为仅本地，不向上报错
	unlocked, err := mgr.Load(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, unlocked["first_log"])
	assert.Len(t, unlocked, 1)
}

func TestStateManager_Load_CorruptLocalCacheIgnored(t *testing.T) {
	remote := &fakeRemoteStore{rows: []models.UnlockedAchievement{
		{UserID: "user-1", Type: "streak_7", UnlockedAt: time.Now()},
	}}
	mgr, mr := setupStateManager(t, remote)

	require.NoError(t, mr.Set("moodlog:user:user-1:achievements", `{not json`))

	unlocked, err := mgr.Load(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, unlocked["streak_7"])
	assert.Len(t, unlocked, 1)
}

func TestStateManager_Unlock_WritesBothStores(t *testing.T) {
	remote := &fakeRemoteStore{}
	mgr, mr := setupStateManager(t, remote)

	unlocked := map[models.AchievementType]bool{"first_log": true}
	mgr.Unlock(context.Background(), "user-1", unlocked, []models.AchievementType{"streak_3"})

	assert.True(t, unlocked["streak_3"])

	// 本地缓存写入完整集合（排序后）
	raw, err := mr.Get("moodlog:user:user-1:achievements")
	require.NoError(t, err)
	var types []models.AchievementType
	require.NoError(t, json.Unmarshal([]byte(raw), &types))
	assert.Equal(t, []models.AchievementType{"first_log", "streak_3"}, types)

	// 远端只收到增量
	require.Len(t, remote.saved, 1)
	assert.Equal(t, []models.AchievementType{"streak_3"}, remote.saved[0])
}

func TestStateManager_Unlock_RemoteFailureDoesNotRollBack(t *testing.T) {
	remote := &fakeRemoteStore{saveErr: errors.New("write timeout")}
	mgr, mr := setupStateManager(t, remote)

	unlocked := map[models.AchievementType]bool{}
	mgr.Unlock(context.Background(), "user-1", unlocked, []models.AchievementType{"first_log"})

	// 远端写入失败不回滚：内存集合与本地缓存仍然包含新解锁
	assert.True(t, unlocked["first_log"])
	raw, err := mr.Get("moodlog:user:user-1:achievements")
	require.NoError(t, err)
	assert.Contains(t, raw, "first_log")
}

func TestStateManager_Unlock_NoOpWithoutNewUnlocks(t *testing.T) {
	remote := &fakeRemoteStore{}
	mgr, mr := setupStateManager(t, remote)

	mgr.Unlock(context.Background(), "user-1", map[models.AchievementType]bool{}, nil)

	assert.False(t, mr.Exists("moodlog:user:user-1:achievements"))
	assert.Empty(t, remote.saved)
}

func TestStateManager_UsedFactors(t *testing.T) {
	mgr, _ := setupStateManager(t, &fakeRemoteStore{})
	ctx := context.Background()

	// 初始为空
	assert.Empty(t, mgr.LoadUsedFactors(ctx, "user-1"))

	mgr.RecordUsedFactors(ctx, "user-1", map[string]models.FactorSign{
		"Exercise": models.FactorPositive,
	})
	mgr.RecordUsedFactors(ctx, "user-1", map[string]models.FactorSign{
		"Work": models.FactorNegative,
	})

	// 两次记录取并集
	used := mgr.LoadUsedFactors(ctx, "user-1")
	assert.True(t, used["Exercise"])
	assert.True(t, used["Work"])
	assert.Len(t, used, 2)

	// 重复记录不改变集合
	mgr.RecordUsedFactors(ctx, "user-1", map[string]models.FactorSign{
		"Exercise": models.FactorNegative,
	})
	assert.Len(t, mgr.LoadUsedFactors(ctx, "user-1"), 2)
}

func TestRedisKVStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	kv := NewRedisKVStore(client)
	ctx := context.Background()

	// 不存在的键返回 ErrCacheMiss
	_, err = kv.Get(ctx, "missing")
	assert.Equal(t, ErrCacheMiss, err)

	require.NoError(t, kv.Set(ctx, "k", "v", time.Minute))
	val, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	// TTL 到期后过期
	mr.FastForward(2 * time.Minute)
	_, err = kv.Get(ctx, "k")
	assert.Equal(t, ErrCacheMiss, err)
}
