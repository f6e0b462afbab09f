package runtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

// shutdownOrder drains the listeners before the stores behind them close.
// Resources not listed are released afterwards in any order.
var shutdownOrder = []string{
	"public_http_server",
	"admin_http_server",
}

type ServiceCtx struct {
	deps            *dependencies
	dependencyOpts  []DependencyOption
	shutdownChannel chan os.Signal
	serverCtx       context.Context
	serverStopFunc  context.CancelFunc
	serverReady     chan struct{}
}

func New(opts ...ServiceOption) *ServiceCtx {
	ctx := &ServiceCtx{
		shutdownChannel: make(chan os.Signal, 1),
	}

	for _, opt := range opts {
		opt(ctx)
	}

	return ctx
}

func (c *ServiceCtx) Run() {
	if err := c.build(); err != nil {
		log.Fatalf("failed to build service: %v", err)
	}

	if c.deps.configLoader != nil && c.deps.config.Logging.Level == "debug" {
		c.deps.configLoader.DumpConfig()
	}

	c.startService()
	c.shutdownHook()
	c.monitorConfigChanges()

	select {
	case <-c.serverCtx.Done():
	case sig := <-c.shutdownChannel:
		c.deps.infra.logger.Info().Str("signal", fmt.Sprint(sig)).Msg("termination signal received")
	}

	c.shutdown()
}

func (c *ServiceCtx) build() error {
	c.serverCtx, c.serverStopFunc = context.WithCancel(context.Background())

	var err error

	c.deps, err = initializeDependencies(c.serverCtx, c.dependencyOpts...)
	if err != nil {
		return fmt.Errorf("initializing dependencies: %w", err)
	}

	return nil
}

func (c *ServiceCtx) startService() {
	server := c.deps.infra.publicHttpServer

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		log.Fatalf("failed to listen on %s: %v", server.Addr, err)
	}

	c.deps.infra.logger.Info().
		Str("address", listener.Addr().String()).
		Str("version", c.deps.config.App.APIVersion).
		Msg("starting the public http server")

	if c.serverReady != nil {
		close(c.serverReady)
	}

	go c.serve("public", server, listener)

	c.startAdminServer()
}

func (c *ServiceCtx) startAdminServer() {
	server := c.deps.infra.adminHttpServer
	if server == nil {
		return
	}

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		log.Fatalf("failed to listen on admin server %s: %v", server.Addr, err)
	}

	c.deps.infra.logger.Info().
		Str("address", listener.Addr().String()).
		Msg("starting the admin http server")

	go c.serve("admin", server, listener)
}

// serve stops the service when a server exits on its own.
func (c *ServiceCtx) serve(name string, server *http.Server, listener net.Listener) {
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		c.deps.infra.logger.Error().Err(err).Str("server", name).Msg("http server stopped unexpectedly")
		c.serverStopFunc()
	}
}

func (c *ServiceCtx) monitorConfigChanges() {
	if c.deps.configLoader == nil {
		return
	}

	reloadErrors := c.deps.configLoader.WatchConfigSignals(c.serverCtx)
	go func() {
		for err := range reloadErrors {
			if err != nil {
				c.deps.infra.logger.Error().Err(err).Msg("config reload failed")
			} else {
				c.deps.infra.logger.Info().Msg("config reloaded successfully")
			}
		}
	}()
}

func (c *ServiceCtx) shutdownHook() {
	signal.Notify(c.shutdownChannel, syscall.SIGINT, syscall.SIGTERM)
}

func (c *ServiceCtx) shutdown() {
	c.deps.infra.logger.Info().Msg("shutting down service...")

	signal.Stop(c.shutdownChannel)
	c.serverStopFunc()

	// The server context is already cancelled; the grace period needs a
	// fresh parent.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.deps.config.PublicHTTPServer.ShutdownTimeout)
	defer cancel()

	done := make(chan struct{})

	go func() {
		c.cleanup(shutdownCtx)
		close(done)
	}()

	select {
	case <-done:
		c.deps.infra.logger.Info().Msg("service shutdown complete")
	case <-shutdownCtx.Done():
		c.deps.infra.logger.Error().Msg("graceful shutdown timed out.. forcing exit.")
		os.Exit(1)
	}
}

// WaitForServer blocks until the public listener is bound. It only blocks
// when the service was created with WithWaitingForServer.
//
// Example:
//
//	srv := runtime.New(runtime.WithWaitingForServer())
//	go srv.Run()
//
//	srv.WaitForServer()
func (c *ServiceCtx) WaitForServer() {
	if c.serverReady != nil {
		<-c.serverReady
	}
}

func (c *ServiceCtx) cleanup(shutdownCtx context.Context) {
	c.deps.infra.logger.Info().Msg("cleaning up resources...")

	for _, resource := range cleanupSequence(c.deps.cleanupFuncs) {
		if err := c.deps.cleanupFuncs[resource](shutdownCtx); err != nil {
			c.deps.infra.logger.Error().
				Err(err).
				Str("resource", resource).
				Msg("failed to shutdown the resource gracefully")
		}
	}

	c.deps.infra.logger.Info().Msg("cleanup completed")
}

func cleanupSequence(funcs map[string]func(ctx context.Context) error) []string {
	sequence := make([]string, 0, len(funcs))

	for _, resource := range shutdownOrder {
		if _, ok := funcs[resource]; ok {
			sequence = append(sequence, resource)
		}
	}

	for resource := range funcs {
		if !isOrdered(resource) {
			sequence = append(sequence, resource)
		}
	}

	return sequence
}

func isOrdered(resource string) bool {
	for _, ordered := range shutdownOrder {
		if ordered == resource {
			return true
		}
	}

	return false
}
