package cache

import (
	"sync"
	"time"
)

type ttlItem struct {
	value     string
	createdAt int64
}

// TTLMap - Minimal in-process expiring map, used when Redis is not
// configured or unreachable
type TTLMap struct {
	m      map[string]*ttlItem
	l      sync.Mutex
	maxTTL int64
}

func NewTTLMap(maxTTL int64, checkFrequency int64) *TTLMap {
	m := &TTLMap{m: make(map[string]*ttlItem), maxTTL: maxTTL}
	go func() {
		for now := range time.Tick(time.Second * time.Duration(checkFrequency)) {
			m.l.Lock()
			for k, v := range m.m {
				if now.Unix()-v.createdAt > maxTTL {
					delete(m.m, k)
				}
			}
			m.l.Unlock()
		}
	}()
	return m
}

func (m *TTLMap) Len() int {
	m.l.Lock()
	defer m.l.Unlock()
	return len(m.m)
}

func (m *TTLMap) Put(k, v string) {
	m.l.Lock()
	defer m.l.Unlock()
	m.m[k] = &ttlItem{value: v, createdAt: time.Now().Unix()}
}

func (m *TTLMap) Get(k string) (string, bool) {
	m.l.Lock()
	defer m.l.Unlock()
	it, ok := m.m[k]
	if !ok {
		return "", false
	}
	if time.Now().Unix()-it.createdAt > m.maxTTL {
		delete(m.m, k)
		return "", false
	}
	return it.value, true
}
