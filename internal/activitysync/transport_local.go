// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package activitysync

import "sync"

// LocalBus connects in-process endpoints. Send delivers synchronously to
// every other endpoint in the sender's goroutine, which makes multi-tab
// scenarios deterministic under a fake clock.
type LocalBus struct {
	mu        sync.Mutex
	endpoints []*LocalEndpoint
	held      []heldSend
	holding   bool
}

type heldSend struct {
	from    *LocalEndpoint
	payload []byte
}

// NewLocalBus returns an empty bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

// Endpoint attaches a new endpoint.
func (b *LocalBus) Endpoint() *LocalEndpoint {
	e := &LocalEndpoint{bus: b}
	b.mu.Lock()
	b.endpoints = append(b.endpoints, e)
	b.mu.Unlock()
	return e
}

// Hold queues sends instead of delivering them until Flush is called.
// It models a transport that delivers asynchronously.
func (b *LocalBus) Hold() {
	b.mu.Lock()
	b.holding = true
	b.mu.Unlock()
}

// Flush delivers every queued payload in send order and stops holding.
func (b *LocalBus) Flush() {
	b.mu.Lock()
	held := b.held
	b.held = nil
	b.holding = false
	b.mu.Unlock()

	for _, h := range held {
		b.deliver(h.from, h.payload)
	}
}

func (b *LocalBus) send(from *LocalEndpoint, payload []byte) {
	b.mu.Lock()
	if b.holding {
		b.held = append(b.held, heldSend{from: from, payload: payload})
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	b.deliver(from, payload)
}

func (b *LocalBus) deliver(from *LocalEndpoint, payload []byte) {
	b.mu.Lock()
	targets := make([]*LocalEndpoint, 0, len(b.endpoints))
	for _, e := range b.endpoints {
		if e != from {
			targets = append(targets, e)
		}
	}
	b.mu.Unlock()

	for _, e := range targets {
		e.receive(payload)
	}
}

func (b *LocalBus) detach(target *LocalEndpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.endpoints {
		if e == target {
			b.endpoints = append(b.endpoints[:i], b.endpoints[i+1:]...)
			return
		}
	}
}

// LocalEndpoint is one tab's attachment to a LocalBus.
type LocalEndpoint struct {
	bus *LocalBus

	mu      sync.Mutex
	handler func([]byte)
	closed  bool
}

// Name returns "local".
func (e *LocalEndpoint) Name() string { return TransportLocal }

// Send delivers payload to every other endpoint.
func (e *LocalEndpoint) Send(payload []byte) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrTransportUnavailable
	}
	e.bus.send(e, append([]byte(nil), payload...))
	return nil
}

// Receive sets the inbound handler.
func (e *LocalEndpoint) Receive(fn func(payload []byte)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = fn
	return nil
}

// Inject delivers payload to this endpoint as if another tab had sent it.
func (e *LocalEndpoint) Inject(payload []byte) {
	e.receive(payload)
}

// Close detaches the endpoint.
func (e *LocalEndpoint) Close() error {
	e.mu.Lock()
	e.closed = true
	e.handler = nil
	e.mu.Unlock()
	e.bus.detach(e)
	return nil
}

func (e *LocalEndpoint) receive(payload []byte) {
	e.mu.Lock()
	fn := e.handler
	e.mu.Unlock()
	if fn != nil {
		fn(payload)
	}
}
