package state

import (
	"sort"
	"sync"
	"time"

	"github.com/superm1/bulb_controller/kasa"
)

// BulbStatus is the last view of one bulb the poller managed to get.
type BulbStatus struct {
	Info      kasa.StateInfo  `json:"info"`
	Name      string          `json:"name"`
	Host      string          `json:"host"`
	Power     kasa.PowerState `json:"power"`
	LastError string          `json:"last_error,omitempty"`
	LastSeen  int64           `json:"last_seen"`
}

func (s BulbStatus) Reachable() bool {
	return s.LastError == ""
}

// Registry tracks the last observed status per bulb for the web surface.
// It is a cache of observations only; reads never reach the device.
type Registry struct {
	bulbs map[string]BulbStatus
	mu    sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{bulbs: make(map[string]BulbStatus)}
}

func (r *Registry) Update(status BulbStatus) {
	status.LastSeen = time.Now().Unix()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bulbs[status.Name] = status
}

// MarkFailed records a poll failure without discarding the previous
// observation's values.
func (r *Registry) MarkFailed(name string, host string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := r.bulbs[name]
	status.Name = name
	status.Host = host
	status.LastError = err.Error()
	r.bulbs[name] = status
}

func (r *Registry) Get(name string) (BulbStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	status, ok := r.bulbs[name]
	return status, ok
}

// All returns the statuses sorted by name for stable presentation.
func (r *Registry) All() []BulbStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]BulbStatus, 0, len(r.bulbs))
	for _, status := range r.bulbs {
		all = append(all, status)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// Forget drops bulbs no longer in the model after a config reload.
func (r *Registry) Forget(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bulbs, name)
}
