// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build unix

package activitysync

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// =============================================================================
// UNIX DATAGRAM TRANSPORT
// =============================================================================

const (
	socketSuffix = ".sock"
	// maxSocketPath is the portable sun_path limit (104 on BSDs, 108 on Linux).
	maxSocketPath = 103
	maxDatagram   = 64 * 1024
	sendDeadline  = 100 * time.Millisecond
	// socketBuffer is requested for both directions. The BSD defaults for
	// unix datagrams are a few KiB, which caps the datagram size.
	socketBuffer = 256 * 1024

	readBackoffMin = 10 * time.Millisecond
	readBackoffMax = time.Second
)

// UnixTransport broadcasts datagrams to every socket in a shared bus
// directory. Each tab binds its own socket named after its id; sending
// walks the directory and skips the sender's socket.
type UnixTransport struct {
	dir  string
	path string
	conn *net.UnixConn
	log  *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewUnixTransport binds <dir>/<id>.sock.
func NewUnixTransport(dir, id string, log *slog.Logger) (*UnixTransport, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create bus dir: %v", ErrTransportUnavailable, err)
	}

	path := filepath.Join(dir, id+socketSuffix)
	if len(path) > maxSocketPath {
		return nil, fmt.Errorf("%w: socket path too long (%d bytes)", ErrTransportUnavailable, len(path))
	}
	_ = os.Remove(path)

	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		conn.Close()
		os.Remove(path)
		return nil, fmt.Errorf("%w: chmod socket: %v", ErrTransportUnavailable, err)
	}

	if err := setBuffers(conn, socketBuffer); err != nil {
		log.Debug("SYNC_SOCKET_BUFFER", "path", path, "error", err)
	}

	return &UnixTransport{dir: dir, path: path, conn: conn, log: log, done: make(chan struct{})}, nil
}

// setBuffers raises the kernel send and receive buffers of conn.
func setBuffers(conn *net.UnixConn, size int) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var serr error
	err = raw.Control(func(fd uintptr) {
		if serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, size); serr != nil {
			return
		}
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, size)
	})
	if err != nil {
		return err
	}
	return serr
}

// ReceiveBuffer reports the kernel receive buffer size of the socket.
func (t *UnixTransport) ReceiveBuffer() (int, error) {
	raw, err := t.conn.SyscallConn()
	if err != nil {
		return 0, err
	}
	var size int
	var serr error
	err = raw.Control(func(fd uintptr) {
		size, serr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF)
	})
	if err != nil {
		return 0, err
	}
	return size, serr
}

// Name returns "unix".
func (t *UnixTransport) Name() string { return TransportUnix }

// Path returns this endpoint's socket path.
func (t *UnixTransport) Path() string { return t.path }

// Send writes payload to every peer socket. Sockets nobody listens on
// any more are removed.
func (t *UnixTransport) Send(payload []byte) error {
	if len(payload) > maxDatagram {
		return fmt.Errorf("payload too large: %d bytes", len(payload))
	}
	peers, err := ListPeers(t.dir)
	if err != nil {
		return err
	}

	var errs []error
	for _, peer := range peers {
		if peer == t.path {
			continue
		}
		_ = t.conn.SetWriteDeadline(time.Now().Add(sendDeadline))
		_, err := t.conn.WriteToUnix(payload, &net.UnixAddr{Name: peer, Net: "unixgram"})
		if err == nil {
			continue
		}
		if isStaleSocket(err) {
			t.log.Debug("SYNC_PRUNE_SOCKET", "path", peer)
			_ = os.Remove(peer)
			continue
		}
		errs = append(errs, fmt.Errorf("send to %s: %w", filepath.Base(peer), err))
	}
	return errors.Join(errs...)
}

// Receive starts the read loop. Read errors back off exponentially so a
// broken socket cannot spin.
func (t *UnixTransport) Receive(fn func(payload []byte)) error {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		buf := make([]byte, maxDatagram)
		failures := 0
		for {
			n, _, err := t.conn.ReadFromUnix(buf)
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				failures++
				wait := readBackoff(failures)
				if failures == 1 || wait == readBackoffMax {
					t.log.Warn("SYNC_READ_ERROR", "error", err, "failures", failures, "retry_in", wait)
				}
				select {
				case <-t.done:
					return
				case <-time.After(wait):
				}
				continue
			}
			failures = 0
			payload := make([]byte, n)
			copy(payload, buf[:n])
			fn(payload)
		}
	}()
	return nil
}

// Close unbinds the socket and waits for the read loop to exit.
func (t *UnixTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		err = t.conn.Close()
		_ = os.Remove(t.path)
		t.wg.Wait()
	})
	return err
}

// readBackoff returns the pause after the given number of consecutive
// read failures.
func readBackoff(failures int) time.Duration {
	wait := readBackoffMin
	for i := 1; i < failures && wait < readBackoffMax; i++ {
		wait *= 2
	}
	if wait > readBackoffMax {
		wait = readBackoffMax
	}
	return wait
}

// ListPeers returns the socket paths currently present in a bus directory.
func ListPeers(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read bus dir: %w", err)
	}
	var peers []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), socketSuffix) {
			continue
		}
		peers = append(peers, filepath.Join(dir, e.Name()))
	}
	return peers, nil
}

// isStaleSocket reports errors meaning no process is bound to the path.
func isStaleSocket(err error) bool {
	return errors.Is(err, unix.ECONNREFUSED) || errors.Is(err, unix.ENOENT) || errors.Is(err, unix.ENOTSOCK)
}
