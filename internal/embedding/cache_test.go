package embedding

import (
	"fmt"
	"sync"
	"testing"
)

func TestCacheGetSet(t *testing.T) {
	c := NewCache(2)
	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss on empty cache")
	}

	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	if v, ok := c.Get("a"); !ok || v[0] != 1 {
		t.Errorf("Get(a) = %v, %v", v, ok)
	}

	// "b" is now the oldest; adding a third entry evicts it.
	c.Set("c", []float32{3})
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewCache(64)
	for i := 0; i < 32; i++ {
		c.Set(fmt.Sprintf("key-%d", i), []float32{float32(i)})
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("key-%d", (g+i)%32)
				if v, ok := c.Get(key); ok && v[0] != float32((g+i)%32) {
					t.Errorf("Get(%s) = %v", key, v)
				}
				if i%7 == 0 {
					c.Set(fmt.Sprintf("key-%d", i%48), []float32{float32(i % 48)})
				}
			}
		}(g)
	}
	wg.Wait()
}
