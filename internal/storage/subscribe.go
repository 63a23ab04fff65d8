package storage

import (
	"context"
	"log"
	"sync"
)

// redisListener re-reads its target every time a change is announced on its channel.
// Announcements that arrive while a read is in flight collapse into one re-read.
type redisListener struct {
	cancel context.CancelFunc
	pubsub interface{ Close() error }
	done   chan struct{}
	once   sync.Once
}

func (s *Service) SubscribeDocument(ctx context.Context, path string, fn SnapshotFunc) (Listener, error) {
	return s.listen(ctx, docChannel(path), func(ctx context.Context) {
		snap, err := s.GetDocument(ctx, path)
		if ctx.Err() != nil {
			return
		}
		fn(snap, err)
	})
}

func (s *Service) SubscribeQuery(ctx context.Context, q Query, fn QueryFunc) (Listener, error) {
	return s.listen(ctx, collectionChannel(q.Collection), func(ctx context.Context) {
		docs, err := s.Query(ctx, q)
		if ctx.Err() != nil {
			return
		}
		fn(docs, err)
	})
}

func (s *Service) listen(parent context.Context, channel string, deliver func(context.Context)) (Listener, error) {
	if s.Redis == nil {
		return nil, ErrNoChangeFeed
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	pubsub := s.Redis.Subscribe(ctx, channel)
	// Receive blocks until the subscription is confirmed, so no change is missed
	// between the initial read and the first notification.
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		pubsub.Close()
		return nil, err
	}

	l := &redisListener{cancel: cancel, pubsub: pubsub, done: make(chan struct{})}
	dirty := make(chan struct{}, 1)
	dirty <- struct{}{} // initial snapshot

	go func() {
		for range pubsub.Channel() {
			select {
			case dirty <- struct{}{}:
			default:
			}
		}
	}()

	go func() {
		defer close(l.done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-dirty:
				deliver(ctx)
			}
		}
	}()

	log.Printf("INFO: Subscribed to %s", channel)
	return l, nil
}

func (l *redisListener) Stop() error {
	var err error
	l.once.Do(func() {
		l.cancel()
		err = l.pubsub.Close()
		<-l.done
	})
	return err
}

var _ DocumentStore = (*Service)(nil)
var _ DocumentStore = (*MemoryStore)(nil)

