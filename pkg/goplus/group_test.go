package goplus

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestWaitGroupGo(t *testing.T) {
	g := NewWaitGroup()

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		g.Go(func() { ran.Add(1) })
	}
	g.Wait()

	if got := ran.Load(); got != 10 {
		t.Errorf("ran = %d, want 10", got)
	}
	if got := g.CurrentGoCount.Load(); got != 0 {
		t.Errorf("CurrentGoCount = %d, want 0 after Wait", got)
	}
}

func TestWaitGroupRecoversPanic(t *testing.T) {
	g := NewWaitGroup()

	var after atomic.Bool
	g.Go(func() { panic("boom") })
	g.Go(func() { after.Store(true) })
	g.Wait()

	if !after.Load() {
		t.Error("panic in one goroutine must not stop others")
	}
	if got := g.CurrentGoCount.Load(); got != 0 {
		t.Errorf("CurrentGoCount = %d, want 0 after panic recovery", got)
	}
}

func TestDefaultGroupGo(t *testing.T) {
	done := make(chan struct{})
	Go(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Go() did not run the function")
	}
}
