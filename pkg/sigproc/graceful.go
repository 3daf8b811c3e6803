// Package sigproc handles process termination signals.
package sigproc

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hlview/hl-dashboard/pkg/goplus"
	"github.com/rs/zerolog/log"
)

type HandlerFunc func(os.Signal)

// GracefulShutdown invokes shutdown on SIGINT/SIGTERM/SIGQUIT and exits
// after at most 30 seconds regardless of whether shutdown returned.
func GracefulShutdown(shutdown HandlerFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	goplus.Go(func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("received signal")

		done := make(chan struct{})
		goplus.Go(func() {
			shutdown(sig)
			close(done)
		})

		select {
		case <-done:
		case <-time.After(30 * time.Second):
		}

		os.Exit(0)
	})
}
