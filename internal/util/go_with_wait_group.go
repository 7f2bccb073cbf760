package util

import "sync"

// GoWithWaitGroup runs fn in a goroutine. A non-nil wg is incremented before
// the goroutine starts and released when fn returns, so wg.Wait() covers it.
func GoWithWaitGroup(wg *sync.WaitGroup, fn func()) {
	if wg == nil {
		go fn()
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		fn()
	}()
}
