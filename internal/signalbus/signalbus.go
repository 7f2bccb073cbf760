// Package signalbus lets controllers announce that named state has changed.
// Signals carry no payload and coalesce: a subscriber that has not drained its
// channel sees many notifications as one.
package signalbus

import (
	"sync"
)

type SignalBus interface {
	// Notify notifies every subscription to any of the named signals.
	Notify(names ...string)
	// NotifyAll notifies every subscription.
	NotifyAll()
	// Subscribe creates a subscription to the named signal.
	Subscribe(name string) *Subscription
}

var _ SignalBus = &signalBus{} // type check the interface is implemented.

type signalBus struct {
	sync.RWMutex
	signals map[string][]*Subscription
}

func NewSignalBus() SignalBus {
	return &signalBus{
		signals: make(map[string][]*Subscription),
	}
}

func (sb *signalBus) Notify(names ...string) {
	var result []*Subscription
	sb.RLock()
	for _, name := range names {
		result = append(result, sb.signals[name]...)
	}
	sb.RUnlock()
	signal(result)
}

func (sb *signalBus) NotifyAll() {
	var result []*Subscription
	sb.RLock()
	for _, s := range sb.signals {
		result = append(result, s...)
	}
	sb.RUnlock()
	signal(result)
}

func signal(subs []*Subscription) {
	for _, sub := range subs {
		select {
		case sub.c <- struct{}{}:
		default:
		}
	}
}

func (sb *signalBus) Subscribe(name string) *Subscription {
	sub := &Subscription{
		sb:   sb,
		name: name,
		c:    make(chan struct{}, 1),
	}

	sb.Lock()
	sb.signals[name] = append(sb.signals[name], sub)
	sb.Unlock()
	return sub
}

func (sb *signalBus) close(sub *Subscription) {
	sb.Lock()
	defer sb.Unlock()
	subs := sb.signals[sub.name]
	for i, s := range subs {
		if s != sub {
			continue
		}
		lastIdx := len(subs) - 1
		if lastIdx == 0 {
			delete(sb.signals, sub.name)
			return
		}
		subs[i] = subs[lastIdx]
		sb.signals[sub.name] = subs[:lastIdx]
		return
	}
}

type Subscription struct {
	sb        *signalBus
	name      string
	closeOnce sync.Once
	c         chan struct{}
}

func (sub *Subscription) Name() string {
	return sub.name
}

// Signal returns a channel that receives a message when the subscription is notified.
//
//	sub := bus.Subscribe(invitations.SignalList)
//	defer sub.Close()
//	for {
//		select {
//		case <-ctx.Done():
//			return
//		case <-sub.Signal():
//			render(list.State())
//		}
//	}
func (sub *Subscription) Signal() <-chan struct{} {
	return sub.c
}

// IsSignaled consumes a pending notification, if there is one.
func (sub *Subscription) IsSignaled() bool {
	select {
	case <-sub.c:
		return true
	default:
		return false
	}
}

func (sub *Subscription) Close() {
	sub.closeOnce.Do(func() {
		sub.sb.close(sub)
	})
}
