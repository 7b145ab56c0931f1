package photo

import (
	"sync"
)

// Map is a hash keyed photo index, safe for concurrent use.
type Map struct {
	sync.RWMutex
	photos map[string]Photo
}

func NewMap() *Map {
	return &Map{photos: make(map[string]Photo)}
}

func (pm *Map) Insert(p Photo) {
	pm.Lock()
	defer pm.Unlock()
	pm.photos[p.Hash] = p
}

func (pm *Map) Get(hash string) (Photo, bool) {
	pm.RLock()
	defer pm.RUnlock()
	if p, ok := pm.photos[hash]; ok {
		return p, true
	}
	return Photo{}, false
}

func (pm *Map) Len() int {
	pm.RLock()
	defer pm.RUnlock()
	return len(pm.photos)
}
