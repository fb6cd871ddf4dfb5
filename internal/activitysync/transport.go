// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package activitysync

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrTransportUnavailable reports that a transport cannot run in this
// environment.
var ErrTransportUnavailable = errors.New("activitysync: transport unavailable")

// Transport moves opaque payloads between tabs. Implementations must not
// deliver a payload back to the endpoint that sent it, and must deliver
// payloads from one sender in order.
type Transport interface {
	// Name identifies the transport in logs and status output.
	Name() string
	// Send broadcasts payload to every other endpoint.
	Send(payload []byte) error
	// Receive starts delivering inbound payloads to fn. It is called once.
	Receive(fn func(payload []byte)) error
	// Close stops delivery and releases resources.
	Close() error
}

// Transport preferences accepted in configuration.
const (
	TransportAuto    = "auto"
	TransportUnix    = "unix"
	TransportStorage = "storage"
	TransportLocal   = "local"
)

// ParseTransport validates a transport preference.
func ParseTransport(name string) (string, error) {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "":
		return TransportAuto, nil
	case TransportAuto, TransportUnix, TransportStorage:
		return n, nil
	default:
		return "", fmt.Errorf("unknown transport %q (expected auto, unix or storage)", name)
	}
}

// BusDir is the directory under stateDir where unix endpoints bind.
func BusDir(stateDir string) string {
	return filepath.Join(stateDir, "bus")
}
