package coordinator

import (
	"sync"
	"testing"

	"github.com/andreweacott/radiotherm-coordinator/pkg/logger"
	"github.com/stretchr/testify/assert"
)

func TestPublisher(t *testing.T) {
	p := newPublisher[int](logger.Discard().WithComponent("test"))

	const clients = 10
	var chs []<-chan int
	for range clients {
		chs = append(chs, p.subscribe())
	}
	assert.Equal(t, clients, p.subscribers())

	p.publish(123)

	var wg sync.WaitGroup
	wg.Add(len(chs))
	for _, ch := range chs {
		go func(ch <-chan int) {
			defer wg.Done()
			assert.Equal(t, 123, <-ch)
			p.unsubscribe(ch)
		}(ch)
	}
	wg.Wait()

	assert.Zero(t, p.subscribers())
}

func TestPublisher_NeverBlocks(t *testing.T) {
	p := newPublisher[int](logger.Discard().WithComponent("test"))
	ch := p.subscribe()

	for i := range 5 {
		p.publish(i)
	}
	assert.Equal(t, 4, <-ch)
}
