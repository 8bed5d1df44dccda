// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/innkeeper/internal/metrics"
)

// ErrBusClosed is returned when publishing after Close.
var ErrBusClosed = errors.New("event bus closed")

// Publisher publishes job lifecycle events.
type Publisher interface {
	PublishJobEvent(ctx context.Context, e *JobEvent) error
}

// Config tunes the in-process Pub/Sub.
type Config struct {
	// OutputBuffer is the per-subscriber channel buffer.
	OutputBuffer int64
	// BlockUntilAck makes Publish wait for every subscriber to ack.
	BlockUntilAck bool
}

// DefaultConfig returns the bus defaults.
func DefaultConfig() Config {
	return Config{OutputBuffer: 256}
}

// Bus is an in-process Watermill Pub/Sub for job events.
type Bus struct {
	pubsub *gochannel.GoChannel

	mu     sync.RWMutex
	closed bool
}

// NewBus creates a Bus.
func NewBus(cfg Config) *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            cfg.OutputBuffer,
			BlockPublishUntilSubscriberAck: cfg.BlockUntilAck,
		}, NewLoggerAdapter()),
	}
}

// PublishJobEvent serializes and publishes e on TopicJobs.
func (b *Bus) PublishJobEvent(ctx context.Context, e *JobEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	data, err := SerializeEvent(e)
	if err != nil {
		metrics.RecordEventPublished(e.Type, err)
		return fmt.Errorf("serialize event: %w", err)
	}

	msg := message.NewMessage(e.EventID, data)
	msg.Metadata.Set("job_id", e.JobID)
	msg.Metadata.Set("status", e.Status)
	msg.SetContext(ctx)

	err = b.pubsub.Publish(TopicJobs, msg)
	metrics.RecordEventPublished(e.Type, err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Subscribe returns the message stream of TopicJobs. The stream closes when
// ctx is done or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, TopicJobs)
}

// Close shuts down the bus and every subscription.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.pubsub.Close()
}
