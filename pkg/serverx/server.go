package serverx

import (
	"context"
)

// Server - HTTP server of a service built on the command executor.
type Server[T any] interface {
	RunSync() error
	RunAsync()
	GetServer() T
	Setup(ctx context.Context, setupFunc func(server T))
	Shutdown(ctx context.Context)
}
