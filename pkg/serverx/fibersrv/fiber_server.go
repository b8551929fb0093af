package fibersrv

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/marcodd23/go-micro-dbcmd/pkg/configx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/errorx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/logx"
	"github.com/marcodd23/go-micro-dbcmd/pkg/serverx"
)

// FiberServer - Fiber server.
type FiberServer struct {
	Server *fiber.App
	config configx.Config
}

// NewFiberServer - Fiber server constructor.
func NewFiberServer(config configx.Config) serverx.Server[*fiber.App] {
	return &FiberServer{Server: fiber.New(buildFiberConfig(config)), config: config}
}

func buildFiberConfig(config configx.Config) fiber.Config {
	srvConf := config.GetServerConfig()

	return fiber.Config{
		AppName:               config.GetServiceName(),
		Concurrency:           srvConf.Concurrency,
		DisableStartupMessage: srvConf.DisableStartupMessage,
		Prefork:               false,
		CaseSensitive:         true,
		StrictRouting:         true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          ErrorHandler,
	}
}

// ErrorResponse - body returned for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ErrorHandler - maps executor errors to HTTP status codes.
// Usage errors are the caller's fault (400), cancellations are 503, everything else is 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		status = fiberErr.Code
	case errorx.IsUsageError(err):
		status = fiber.StatusBadRequest
	case errorx.IsCancellationError(err):
		status = fiber.StatusServiceUnavailable
	}

	if status >= fiber.StatusInternalServerError {
		logx.GetLogger().LogError(c.UserContext(), fmt.Sprintf("%s %s failed", c.Method(), c.Path()), err)
	}

	return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
}

// GetServer - return the fiber server.
func (srv *FiberServer) GetServer() *fiber.App {
	return srv.Server
}

// RunSync - Run the server and block until it stops.
func (srv *FiberServer) RunSync() error {
	return srv.Server.Listen(srv.address())
}

// RunAsync - Run the server async.
func (srv *FiberServer) RunAsync() {
	go func() {
		if err := srv.RunSync(); err != nil {
			logx.GetLogger().LogPanic(context.TODO(), "Oops... server is not running! error:", err)
		}
	}()
}

// Setup - Receive a callback function setupFunc that let to configure the server.
func (srv *FiberServer) Setup(_ context.Context, setupFunc func(app *fiber.App)) {
	setupFunc(srv.Server)
}

// Shutdown - shutdown the server.
func (srv *FiberServer) Shutdown(ctx context.Context) {
	if err := srv.Server.ShutdownWithContext(ctx); err != nil {
		logx.GetLogger().LogError(ctx, "Error shutting down the Server", err)
	} else {
		logx.GetLogger().LogInfo(ctx, "Server shut down.. ")
	}
}

func (srv *FiberServer) address() string {
	return fmt.Sprintf(":%s", srv.config.GetServerConfig().Port)
}
