// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !unix

package activitysync

import "log/slog"

// UnixTransport is unavailable on this platform.
type UnixTransport struct{}

// NewUnixTransport always fails on platforms without unix domain datagrams.
func NewUnixTransport(dir, id string, log *slog.Logger) (*UnixTransport, error) {
	return nil, ErrTransportUnavailable
}

func (t *UnixTransport) Name() string                          { return TransportUnix }
func (t *UnixTransport) Path() string                          { return "" }
func (t *UnixTransport) Send(payload []byte) error             { return ErrTransportUnavailable }
func (t *UnixTransport) Receive(fn func(payload []byte)) error { return ErrTransportUnavailable }
func (t *UnixTransport) Close() error                          { return nil }

// ListPeers reports no peers on this platform.
func ListPeers(dir string) ([]string, error) { return nil, nil }
