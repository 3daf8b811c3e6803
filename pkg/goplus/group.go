// Package goplus provides panic-safe goroutine helpers.
package goplus

import (
	"sync"
	"sync/atomic"
)

var (
	defaultGroup     *WaitGroup
	defaultGroupOnce sync.Once
)

func DefaultGroup() *WaitGroup {
	defaultGroupOnce.Do(func() {
		defaultGroup = NewWaitGroup()
	})
	return defaultGroup
}

// Go runs fn on the default group with panic recovery.
func Go(fn func()) {
	DefaultGroup().Go(fn)
}

func Wait() {
	DefaultGroup().Wait()
}

type WaitGroup struct {
	wg             sync.WaitGroup
	CurrentGoCount atomic.Int64
}

func NewWaitGroup() *WaitGroup {
	return &WaitGroup{}
}

func (g *WaitGroup) Go(fn func()) {
	g.CurrentGoCount.Add(1)
	g.wg.Add(1)

	go func() {
		defer Recover()
		defer func() {
			g.CurrentGoCount.Add(-1)
			g.wg.Done()
		}()

		fn()
	}()
}

func (g *WaitGroup) Wait() {
	g.wg.Wait()
}
