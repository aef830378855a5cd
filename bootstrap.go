// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

package gosling

import "context"

// BootstrapTor drives the Tor backend through its bootstrap sequence,
// relaying every intermediate progress report as an EventTorBootstrapStatus
// and the terminal outcome as EventTorBootstrapCompleted or
// EventTorBootstrapError (spec §4.1/§6). It returns once bootstrap finishes,
// but the caller still drives PollEvents to observe the individual steps.
func (c *Context) BootstrapTor(ctx context.Context) error {
	events, err := c.backend.Bootstrap(ctx)
	if err != nil {
		c.enqueue(Event{Kind: EventTorBootstrapError, Err: err})
		return err
	}
	var last error
	for ev := range events {
		if ev.Err != nil {
			last = ev.Err
			c.enqueue(Event{Kind: EventTorBootstrapError, Err: ev.Err})
			continue
		}
		if ev.Done {
			c.enqueue(Event{Kind: EventTorBootstrapCompleted, Progress: ev.Progress})
			continue
		}
		c.enqueue(Event{Kind: EventTorBootstrapStatus, Progress: ev.Progress})
	}
	return last
}
