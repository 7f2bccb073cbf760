package signalbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func notifyAfter(bus *signalBus, name string, d time.Duration) {
	go func() {
		time.Sleep(d)
		bus.Notify(name)
	}()
}

func TestNewSignalBus(t *testing.T) {
	require := require.New(t)

	bus := NewSignalBus().(*signalBus)

	// it's ok to send notifications before subscriptions...
	bus.Notify("unknown")

	aSub1 := bus.Subscribe("a")
	require.Equal("a", aSub1.Name())

	notifyAfter(bus, "a", 50*time.Millisecond)
	require.False(aSub1.IsSignaled())
	require.Eventually(aSub1.IsSignaled, 2*time.Second, time.Millisecond)

	require.Equal(1, len(bus.signals))
	aSub2 := bus.Subscribe("a")
	require.Equal(1, len(bus.signals))

	notifyAfter(bus, "a", 50*time.Millisecond)
	require.False(aSub1.IsSignaled())
	require.False(aSub2.IsSignaled())
	require.Eventually(aSub1.IsSignaled, 2*time.Second, time.Millisecond)
	require.Eventually(aSub2.IsSignaled, 2*time.Second, time.Millisecond)

	// Closing all the subs to the same named signal will release memory..
	aSub1.Close()
	require.Equal(1, len(bus.signals))
	aSub2.Close()
	aSub2.Close()
	require.Equal(0, len(bus.signals))
}

func TestNotifyCoalescesAndFansOut(t *testing.T) {
	require := require.New(t)
	bus := NewSignalBus()

	list := bus.Subscribe("list")
	defer list.Close()
	stats := bus.Subscribe("stats")
	defer stats.Close()

	bus.Notify("list")
	bus.Notify("list")
	require.True(list.IsSignaled())
	require.False(list.IsSignaled(), "repeated notifications coalesce")
	require.False(stats.IsSignaled())

	bus.Notify("list", "stats")
	require.True(list.IsSignaled())
	require.True(stats.IsSignaled())

	bus.NotifyAll()
	select {
	case <-stats.Signal():
	case <-time.After(time.Second):
		t.Fatal("expected a signal")
	}
}
