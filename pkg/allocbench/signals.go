package allocbench

import (
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// SetupSignalHandler wires SIGINT/SIGTERM into a stop channel the harness
// listens on. The first signal stops submission of new files; a second one
// force-quits without waiting for in-flight engine invocations.
func SetupSignalHandler(log *zap.SugaredLogger) (stopCh chan struct{}, stopFunc func()) {
	shutdownSignals := []os.Signal{os.Interrupt, syscall.SIGTERM}

	stopCh = make(chan struct{})
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, shutdownSignals...)

	stopped := false
	stopFunc = func() {
		if stopped {
			return
		}
		stopped = true
		close(stopCh)
	}

	go func() {
		select {
		case <-sigCh:
			log.Info("shutdown signal received, letting in-flight invocations finish...")
			stopFunc()
			<-sigCh
			log.Warn("second shutdown signal received, force quitting")
			os.Exit(1)
		case <-stopCh:
			// Terminate goroutine
		}
	}()

	return stopCh, stopFunc
}
