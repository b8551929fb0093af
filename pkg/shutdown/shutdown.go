package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcodd23/go-micro-dbcmd/pkg/logx"
)

// WaitForShutdown waits for OS signals (SIGINT, SIGTERM) to gracefully shut down the application.
// It runs the cleanup code provided by the cleanupCallback function within a context with the given timeout.
//
// Usage:
//
//	shutdown.WaitForShutdown(context.Background(), 5*time.Second, func(timeoutCtx context.Context) {
//	    server.Shutdown(timeoutCtx)
//	    provider.Close()
//	})
func WaitForShutdown(rootCtx context.Context, timeout time.Duration, cleanupCallback func(timeoutCtx context.Context)) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	waitForSignal(rootCtx, signals, timeout, cleanupCallback)
}

// waitForSignal blocks until a signal arrives or rootCtx is done, then runs the cleanup.
// It reports whether the cleanup completed before the timeout.
func waitForSignal(rootCtx context.Context, signals <-chan os.Signal, timeout time.Duration, cleanupCallback func(timeoutCtx context.Context)) bool {
	select {
	case sig := <-signals:
		logx.GetLogger().LogDebug(rootCtx, fmt.Sprintf("Interrupt signal captured: %s", sig.String()))
	case <-rootCtx.Done():
		logx.GetLogger().LogDebug(rootCtx, "Root context done, shutting down")
	}

	// The root context may already be cancelled: cleanup only honours its own timeout
	timeoutCtx, cancel := context.WithTimeout(context.WithoutCancel(rootCtx), timeout)
	defer cancel()

	return cleanUp(timeoutCtx, cleanupCallback)
}

// cleanUp executes the cleanup callback and waits for either its completion or the timeout.
func cleanUp(timeoutCtx context.Context, cleanupCallback func(timeoutCtx context.Context)) bool {
	logx.GetLogger().LogInfo(timeoutCtx, "Cleaning up all resources ....")

	done := make(chan struct{})

	go func() {
		defer close(done)
		if cleanupCallback != nil {
			cleanupCallback(timeoutCtx)
		}
	}()

	select {
	case <-timeoutCtx.Done():
		logx.GetLogger().LogError(timeoutCtx, "Deadline exceeded during context cancellation", timeoutCtx.Err())
		return false
	case <-done:
		logx.GetLogger().LogInfo(timeoutCtx, "All resources cleaned up")
		return true
	}
}
