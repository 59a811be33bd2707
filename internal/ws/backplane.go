package ws

import (
	"context"
	"strings"
	"sync"

	"github.com/valkey-io/valkey-go"
)

// Backplane carries hub broadcasts between relay instances.
type Backplane interface {
	Publish(ctx context.Context, topic string, data []byte) error
	// Subscribe delivers every published frame to fn until ctx is done.
	Subscribe(ctx context.Context, fn func(topic string, data []byte)) error
	Close()
}

// ValkeyBackplane publishes on one valkey channel per topic, all under a
// shared prefix, and pattern-subscribes to the prefix.
type ValkeyBackplane struct {
	client valkey.Client
	prefix string
}

func NewValkeyBackplane(addr, prefix string) (*ValkeyBackplane, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, err
	}
	return &ValkeyBackplane{client: client, prefix: prefix}, nil
}

func (b *ValkeyBackplane) Publish(ctx context.Context, topic string, data []byte) error {
	cmd := b.client.B().Publish().Channel(b.prefix + topic).Message(valkey.BinaryString(data)).Build()
	return b.client.Do(ctx, cmd).Error()
}

func (b *ValkeyBackplane) Subscribe(ctx context.Context, fn func(topic string, data []byte)) error {
	cmd := b.client.B().Psubscribe().Pattern(b.prefix + "*").Build()
	return b.client.Receive(ctx, cmd, func(msg valkey.PubSubMessage) {
		fn(strings.TrimPrefix(msg.Channel, b.prefix), []byte(msg.Message))
	})
}

func (b *ValkeyBackplane) Close() { b.client.Close() }

// LocalBackplane is an in-process backplane shared by hubs in one process.
type LocalBackplane struct {
	mu   sync.Mutex
	subs map[int]chan BroadcastMessage
	next int
}

func NewLocalBackplane() *LocalBackplane {
	return &LocalBackplane{subs: make(map[int]chan BroadcastMessage)}
}

func (b *LocalBackplane) Publish(ctx context.Context, topic string, data []byte) error {
	b.mu.Lock()
	subs := make([]chan BroadcastMessage, 0, len(b.subs))
	for _, ch := range b.subs {
		subs = append(subs, ch)
	}
	b.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- BroadcastMessage{Topic: topic, Data: data}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *LocalBackplane) Subscribe(ctx context.Context, fn func(topic string, data []byte)) error {
	ch := make(chan BroadcastMessage, 64)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}()
	for {
		select {
		case msg := <-ch:
			fn(msg.Topic, msg.Data)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *LocalBackplane) Close() {}
