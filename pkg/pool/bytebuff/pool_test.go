// pkg/pool/bytebuff/pool_test.go
package bytebuff

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool_GetPut(t *testing.T) {
	p := NewPool()

	buf := p.Get()
	assert.Equal(t, 0, buf.Len())
	_, _ = buf.WriteString("hello")
	assert.Equal(t, "hello", buf.String())
	p.Put(buf)
	p.Put(nil)

	again := p.Get()
	assert.Equal(t, 0, again.Len())
	p.Put(again)

	gets, puts := p.Stats()
	assert.Equal(t, uint64(2), gets)
	assert.Equal(t, uint64(2), puts)
}

func TestPool_Concurrent(t *testing.T) {
	p := NewPool()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				buf := p.Get()
				_, _ = buf.Write([]byte("payload"))
				p.Put(buf)
			}
		}()
	}
	wg.Wait()

	gets, puts := p.Stats()
	assert.Equal(t, uint64(5000), gets)
	assert.Equal(t, gets, puts)
}

func TestGlobalFunctions(t *testing.T) {
	before, _ := Stats()
	buf := Get()
	Put(buf)
	after, _ := Stats()
	assert.Equal(t, before+1, after)
}

func BenchmarkPool_Get(b *testing.B) {
	p := NewPool()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf := p.Get()
		_, _ = buf.WriteString("payload")
		p.Put(buf)
	}
}
