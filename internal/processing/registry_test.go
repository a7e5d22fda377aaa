package processing

import (
	"sync"
	"testing"

	"github.com/your-org/headcount/internal/config"
	"github.com/your-org/headcount/internal/models"
)

func registryWorker(key DeviceKey) *Worker {
	return newWorker(key, "test", newFakeStore(), nil, nil, NewRegistry(), config.ProcessingConfig{})
}

func TestRegistry_RegisterIsExclusive(t *testing.T) {
	r := NewRegistry()
	key := DeviceKey{Kind: models.KindCamera, ID: 1}

	w1 := registryWorker(key)
	w2 := registryWorker(key)

	if !r.Register(key, w1) {
		t.Fatal("first register should succeed")
	}
	if r.Register(key, w2) {
		t.Fatal("second register for same key should fail")
	}

	got, ok := r.Lookup(key)
	if !ok || got != w1 {
		t.Error("lookup should return the first registered worker")
	}

	// Same id under a different kind is a different key.
	roomKey := DeviceKey{Kind: models.KindRoom, ID: 1}
	if !r.Register(roomKey, registryWorker(roomKey)) {
		t.Error("register for same id under different kind should succeed")
	}
}

func TestRegistry_ConcurrentRegisterExactlyOneWins(t *testing.T) {
	r := NewRegistry()
	key := DeviceKey{Kind: models.KindCamera, ID: 42}

	const n = 100
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Register(key, registryWorker(key)) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly 1 winning register, got %d", wins)
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 registration, got %d", r.Len())
	}
}

func TestRegistry_ReleaseChecksIdentity(t *testing.T) {
	r := NewRegistry()
	key := DeviceKey{Kind: models.KindCamera, ID: 1}
	w1 := registryWorker(key)
	w2 := registryWorker(key)

	r.Register(key, w1)

	// A stale release from a different worker must not evict the holder.
	if r.Release(key, w2) {
		t.Error("release with wrong worker should be a no-op")
	}
	if _, ok := r.Lookup(key); !ok {
		t.Fatal("registration should survive a stale release")
	}

	if !r.Release(key, w1) {
		t.Error("release by the holder should succeed")
	}
	if r.Release(key, w1) {
		t.Error("double release should report false")
	}
	if r.Len() != 0 {
		t.Errorf("expected empty registry, got %d", r.Len())
	}
}

func TestRegistry_Snapshot(t *testing.T) {
	r := NewRegistry()
	camKey := DeviceKey{Kind: models.KindCamera, ID: 1}
	roomKey := DeviceKey{Kind: models.KindRoom, ID: 2}
	r.Register(camKey, registryWorker(camKey))
	r.Register(roomKey, registryWorker(roomKey))

	infos := r.Snapshot()
	if len(infos) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(infos))
	}
	seen := map[models.DeviceKind]int64{}
	for _, info := range infos {
		seen[info.DeviceKind] = info.DeviceID
		if info.WorkerID.String() == "" {
			t.Error("snapshot entry missing worker id")
		}
	}
	if seen[models.KindCamera] != 1 || seen[models.KindRoom] != 2 {
		t.Errorf("unexpected snapshot contents: %v", seen)
	}
}
