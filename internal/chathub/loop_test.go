package chathub_test

import (
	"chatroom/backend/internal/chathub"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_RunsTasksInPostingOrder(t *testing.T) {
	loop := chathub.NewLoop()
	var got []int

	for i := range 3 {
		loop.Post(func() {
			got = append(got, i)
			if i == 0 {
				// Posted from inside a task: runs after the ones already queued.
				loop.Post(func() { got = append(got, 99) })
			}
		})
	}
	assert.Equal(t, 3, loop.Pending())

	loop.Drain()

	assert.Equal(t, []int{0, 1, 2, 99}, got)
	assert.Zero(t, loop.Pending())
}

func TestLoop_RunSerializesConcurrentPosts(t *testing.T) {
	loop := chathub.NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	counter := 0
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			loop.Post(func() {
				counter++ // no lock: only the loop goroutine touches it
				wg.Done()
			})
		}()
	}
	wg.Wait()

	done := make(chan int)
	loop.Post(func() { done <- counter })
	select {
	case n := <-done:
		require.Equal(t, 100, n)
	case <-time.After(time.Second):
		t.Fatal("loop did not drain")
	}
}
