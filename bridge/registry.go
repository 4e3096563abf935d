package bridge

import (
	"sort"
	"sync"
)

// Registry holds the live bridge of every device.
type Registry struct {
	mu      sync.RWMutex
	bridges map[string]*Bridge
}

func NewRegistry() *Registry {
	return &Registry{
		bridges: make(map[string]*Bridge),
	}
}

// Add registers b and returns the bridge it displaced, if any.
func (r *Registry) Add(b *Bridge) *Bridge {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.bridges[b.deviceID]
	r.bridges[b.deviceID] = b

	if previous == b {
		return nil
	}

	return previous
}

// Remove unregisters b unless another bridge has taken its device id since.
func (r *Registry) Remove(b *Bridge) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bridges[b.deviceID] != b {
		return false
	}

	delete(r.bridges, b.deviceID)

	return true
}

func (r *Registry) Get(deviceID string) (*Bridge, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bridges[deviceID]

	return b, ok
}

// List returns the live bridges ordered by device id.
func (r *Registry) List() []*Bridge {
	r.mu.RLock()
	list := make([]*Bridge, 0, len(r.bridges))

	for _, b := range r.bridges {
		list = append(list, b)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].deviceID < list[j].deviceID
	})

	return list
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.bridges)
}

// CloseAll closes every registered bridge and waits for them to shut down.
func (r *Registry) CloseAll() {
	var wg sync.WaitGroup

	for _, b := range r.List() {
		wg.Add(1)

		go func(b *Bridge) {
			defer wg.Done()
			b.Close()
		}(b)
	}

	wg.Wait()
}
