// Innkeeper - Hospitality Back-Office Reporting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/innkeeper

package events

import (
	"context"
	"fmt"

	"github.com/tomtom215/innkeeper/internal/logging"
)

// HandlerFunc reacts to one decoded job event.
type HandlerFunc func(ctx context.Context, e *JobEvent)

// Consumer drains TopicJobs, logs every transition and fans events out to
// its handlers. It implements suture.Service.
type Consumer struct {
	bus      *Bus
	handlers []HandlerFunc
}

// NewConsumer creates a Consumer on bus.
func NewConsumer(bus *Bus, handlers ...HandlerFunc) *Consumer {
	return &Consumer{bus: bus, handlers: handlers}
}

// Serve consumes until ctx is canceled.
func (c *Consumer) Serve(ctx context.Context) error {
	msgs, err := c.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicJobs, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return ctx.Err()
			}
			e, err := DeserializeEvent(msg.Payload)
			if err != nil {
				logging.Warn().Err(err).Str("message_id", msg.UUID).Msg("Dropping malformed job event")
				msg.Ack()
				continue
			}

			log := logging.Debug()
			if e.Status == "failed" {
				log = logging.Warn().Str("error", e.Error)
			}
			log.Str("job_id", e.JobID).
				Str("hash", e.Hash).
				Str("from", e.From).
				Str("status", e.Status).
				Int64("duration_ms", e.DurationMS).
				Msg("Job transition")

			for _, h := range c.handlers {
				h(ctx, e)
			}
			msg.Ack()
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (c *Consumer) String() string {
	return "job-event-consumer"
}
