package lending

import (
	"encoding/json"
	"time"

	"lendhub.GO/config"
	"lendhub.GO/core/cache"
	lendingEntity "lendhub.GO/model/entity/lending"
)

// Availability snapshots live under lending:avail:* so a shared Redis can
// serve them across instances. Without Redis the in-process TTL cache fills
// the same role for a single instance.
const (
	availListKey     = "lending:avail"
	availKeyPrefix   = "lending:avail:"
	availSnapshotTTL = 15 * time.Second
)

// availCache hides which backend holds the snapshots. Redis errors count as
// cache misses; the database stays the source of truth either way.
type availCache struct {
	mem *cache.Cache
}

func newAvailCache() *availCache {
	return &availCache{mem: cache.GetInstance()}
}

func (a *availCache) Pools() ([]lendingEntity.InventoryPool, bool) {
	if rc := config.RedisClient; rc != nil {
		raw, err := rc.Get(config.RedisCtx(), availListKey).Bytes()
		if err != nil {
			return nil, false
		}
		var list []lendingEntity.InventoryPool
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, false
		}
		return list, true
	}
	v, ok := a.mem.Get(availListKey)
	if !ok {
		return nil, false
	}
	list, ok := v.([]lendingEntity.InventoryPool)
	return list, ok
}

func (a *availCache) StorePools(list []lendingEntity.InventoryPool) {
	if rc := config.RedisClient; rc != nil {
		if raw, err := json.Marshal(list); err == nil {
			rc.Set(config.RedisCtx(), availListKey, raw, availSnapshotTTL)
		}
		return
	}
	a.mem.SetWithTTL(availListKey, list, availSnapshotTTL)
}

func (a *availCache) Pool(resourceID string) (*lendingEntity.InventoryPool, bool) {
	key := availKeyPrefix + resourceID
	if rc := config.RedisClient; rc != nil {
		raw, err := rc.Get(config.RedisCtx(), key).Bytes()
		if err != nil {
			return nil, false
		}
		pool := &lendingEntity.InventoryPool{}
		if err := json.Unmarshal(raw, pool); err != nil {
			return nil, false
		}
		return pool, true
	}
	v, ok := a.mem.Get(key)
	if !ok {
		return nil, false
	}
	pool, ok := v.(*lendingEntity.InventoryPool)
	return pool, ok
}

func (a *availCache) StorePool(pool *lendingEntity.InventoryPool) {
	key := availKeyPrefix + pool.ResourceID
	if rc := config.RedisClient; rc != nil {
		if raw, err := json.Marshal(pool); err == nil {
			rc.Set(config.RedisCtx(), key, raw, availSnapshotTTL)
		}
		return
	}
	a.mem.SetWithTTL(key, pool, availSnapshotTTL)
}

// Invalidate drops the list snapshot plus the named per-resource snapshots.
// Every stock mutation calls this so readers never see stale availability
// for longer than the TTL.
func (a *availCache) Invalidate(resourceIDs ...string) {
	keys := []string{availListKey}
	for _, id := range resourceIDs {
		keys = append(keys, availKeyPrefix+id)
	}
	if rc := config.RedisClient; rc != nil {
		rc.Del(config.RedisCtx(), keys...)
		return
	}
	for _, k := range keys {
		a.mem.Delete(k)
	}
}
