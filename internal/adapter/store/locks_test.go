package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex(t *testing.T) {
	t.Run("Should serialize holders of the same key and forget idle keys", func(t *testing.T) {
		km := NewKeyedMutex()
		var (
			wg      sync.WaitGroup
			counter int
		)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := km.Lock("k")
				counter++
				unlock()
			}()
		}
		wg.Wait()
		assert.Equal(t, 50, counter)
		assert.Empty(t, km.locks)
	})
}
