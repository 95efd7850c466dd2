package main

import (
	"context"
	"errors"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type topicSource interface {
	Publisher(name string) *gcppubsub.Publisher
}

// topicPublishers hands out one long-lived publisher per topic.
type topicPublishers struct {
	mu      sync.Mutex
	source  topicSource
	byTopic map[string]*gcppubsub.Publisher
}

func newTopicPublishers(source topicSource) *topicPublishers {
	return &topicPublishers{source: source, byTopic: map[string]*gcppubsub.Publisher{}}
}

func (t *topicPublishers) For(topic string) publisher {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.byTopic[topic]; ok {
		return &gcpPublisher{inner: p}
	}
	p := t.source.Publisher(topic)
	if p == nil {
		return nil
	}
	t.byTopic[topic] = p
	return &gcpPublisher{inner: p}
}

// Stop flushes and stops every publisher handed out so far.
func (t *topicPublishers) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for topic, p := range t.byTopic {
		p.Stop()
		delete(t.byTopic, topic)
	}
}

type gcpPublisher struct {
	inner *gcppubsub.Publisher
}

// Publish sends msg and waits for the server id. A failed ordered publish
// pauses its key, so the key is resumed for the next attempt.
func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) (string, error) {
	if p == nil || p.inner == nil {
		return "", errors.New("publisher not initialized")
	}
	id, err := p.inner.Publish(ctx, msg).Get(ctx)
	if err != nil && msg.OrderingKey != "" {
		p.inner.ResumePublish(msg.OrderingKey)
	}
	return id, err
}
