// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tab

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/idlesync/internal/guard"
)

// WarningShowMsg asks the model to open the idle warning.
type WarningShowMsg struct {
	Remaining time.Duration
	Actions   guard.DialogActions
}

// WarningHideMsg asks the model to close the idle warning.
type WarningHideMsg struct{}

// NavigateMsg moves the tab to Path.
type NavigateMsg struct {
	Path string
}

// Bridge turns guard callbacks into program messages. Calls never block:
// messages are queued and delivered in order by a single goroutine, so
// the guard may call it from inside Update.
type Bridge struct {
	mu    sync.Mutex
	queue []tea.Msg
	send  func(tea.Msg)

	wake chan struct{}
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewBridge starts a bridge. Messages queue until Attach.
func NewBridge() *Bridge {
	b := &Bridge{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	b.wg.Add(1)
	go b.pump()
	return b
}

// Attach sets the delivery function, usually (*tea.Program).Send.
func (b *Bridge) Attach(send func(tea.Msg)) {
	b.mu.Lock()
	b.send = send
	b.mu.Unlock()
	b.signal()
}

// Show implements guard.WarningDialog.
func (b *Bridge) Show(remaining time.Duration, actions guard.DialogActions) {
	b.post(WarningShowMsg{Remaining: remaining, Actions: actions})
}

// Hide implements guard.WarningDialog.
func (b *Bridge) Hide() {
	b.post(WarningHideMsg{})
}

// Navigate implements guard.Navigator.
func (b *Bridge) Navigate(path string) {
	b.post(NavigateMsg{Path: path})
}

// Close stops delivery. Queued messages are dropped.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
	b.wg.Wait()
}

func (b *Bridge) post(msg tea.Msg) {
	b.mu.Lock()
	b.queue = append(b.queue, msg)
	b.mu.Unlock()
	b.signal()
}

func (b *Bridge) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bridge) pump() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case <-b.wake:
		}
		for {
			b.mu.Lock()
			if b.send == nil || len(b.queue) == 0 {
				b.mu.Unlock()
				break
			}
			msg := b.queue[0]
			b.queue = b.queue[1:]
			send := b.send
			b.mu.Unlock()

			select {
			case <-b.done:
				return
			default:
			}
			send(msg)
		}
	}
}
