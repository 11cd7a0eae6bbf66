// SPDX-FileCopyrightText: 2025 The WingetPro Authors
// SPDX-License-Identifier: EUPL-1.2

package application

import (
	"sort"
	"sync"

	"github.com/wingetpro/wingetpro/internal/domain"
)

type bus[T any] struct {
	mu       sync.RWMutex
	handlers map[int]func(T)
	nextID   int
}

func newBus[T any]() *bus[T] {
	return &bus[T]{handlers: make(map[int]func(T))}
}

func (b *bus[T]) subscribe(handler func(T)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// publish calls handlers in subscription order without holding the lock,
// so a handler may unsubscribe itself.
func (b *bus[T]) publish(event T) {
	b.mu.RLock()
	ids := make([]int, 0, len(b.handlers))

	for id := range b.handlers {
		ids = append(ids, id)
	}

	sort.Ints(ids)

	snapshot := make([]func(T), 0, len(ids))
	for _, id := range ids {
		snapshot = append(snapshot, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range snapshot {
		h(event)
	}
}

// Events is the contract between the core and presentation layers. Handlers
// run on the control loop and receive copies they may keep.
type Events struct {
	tabs       *bus[domain.TabSnapshot]
	operations *bus[domain.OperationEvent]
}

// NewEvents creates an empty event hub.
func NewEvents() *Events {
	return &Events{
		tabs:       newBus[domain.TabSnapshot](),
		operations: newBus[domain.OperationEvent](),
	}
}

// SubscribeTabs registers fn for every published tab snapshot and returns
// the unsubscribe function.
func (e *Events) SubscribeTabs(fn func(domain.TabSnapshot)) func() {
	return e.tabs.subscribe(fn)
}

// SubscribeOperations registers fn for operation status changes.
func (e *Events) SubscribeOperations(fn func(domain.OperationEvent)) func() {
	return e.operations.subscribe(fn)
}

func (e *Events) publishTab(snapshot domain.TabSnapshot) {
	e.tabs.publish(snapshot)
}

func (e *Events) publishOperation(event domain.OperationEvent) {
	e.operations.publish(event)
}
