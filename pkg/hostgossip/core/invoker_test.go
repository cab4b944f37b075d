package core

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestElasticInvokerRunsEveryTask(t *testing.T) {
	inv := NewElasticInvoker(noopLogger{})
	var count int64
	for i := 0; i < 50; i++ {
		inv.Spawn(func() { atomic.AddInt64(&count, 1) })
	}
	inv.Stop()
	assert.EqualValues(t, 50, atomic.LoadInt64(&count))
}

func TestElasticInvokerSurvivesPanic(t *testing.T) {
	inv := NewElasticInvoker(noopLogger{})
	var ran int32
	inv.Spawn(func() { panic("boom") })
	inv.Spawn(func() { atomic.StoreInt32(&ran, 1) })
	inv.Stop()
	assert.EqualValues(t, 1, atomic.LoadInt32(&ran))
}

func TestSingleWorkerInvokerRunsSerially(t *testing.T) {
	inv := NewSingleWorkerInvoker(noopLogger{}, 16)
	var order []int
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		i := i
		inv.Spawn(func() {
			order = append(order, i)
			if i == 9 {
				close(done)
			}
		})
	}
	<-done
	inv.Stop()
	require := assert.New(t)
	require.Len(order, 10)
	for i, v := range order {
		require.Equal(i, v, "background pool must process work in submission order")
	}
}

func TestSingleWorkerInvokerSurvivesPanic(t *testing.T) {
	inv := NewSingleWorkerInvoker(noopLogger{}, 4)
	var ran int32
	done := make(chan struct{})
	inv.Spawn(func() { panic("boom") })
	inv.Spawn(func() {
		atomic.StoreInt32(&ran, 1)
		close(done)
	})
	<-done
	inv.Stop()
	assert.EqualValues(t, 1, atomic.LoadInt32(&ran))
}
