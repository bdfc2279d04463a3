package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestTTLMapPutGet(t *testing.T) {
	m := NewTTLMap(60, 60)

	m.Put("analysis:1", "payload")
	if value, ok := m.Get("analysis:1"); !ok || value != "payload" {
		t.Errorf("Get after Put: got %q, %v", value, ok)
	}
	if _, ok := m.Get("analysis:2"); ok {
		t.Error("Get of missing key should report absence")
	}
	if m.Len() != 1 {
		t.Errorf("Len: got %d, want 1", m.Len())
	}
}

func TestTTLMapExpiry(t *testing.T) {
	// TTL of 0 means anything older than a second is already expired
	m := NewTTLMap(0, 3600)

	m.Put("k", "v")
	m.m["k"].createdAt = time.Now().Unix() - 2

	if _, ok := m.Get("k"); ok {
		t.Error("expired entry should not be returned")
	}
	m.l.Lock()
	_, stillThere := m.m["k"]
	m.l.Unlock()
	if stillThere {
		t.Error("expired entry should be dropped on read")
	}
}

func TestTTLMapConcurrentAccess(t *testing.T) {
	m := NewTTLMap(60, 60)

	done := make(chan bool)
	for i := 0; i < 4; i++ {
		go func(worker int) {
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("w%d:%d", worker, j)
				m.Put(key, "v")
				m.Get(key)
			}
			done <- true
		}(i)
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	if m.Len() != 400 {
		t.Errorf("Len after concurrent writes: got %d, want 400", m.Len())
	}
}
