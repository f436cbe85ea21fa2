package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harun/toolgate/pkg/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dispatcher over HTTP and WebSocket",
	Long: `Serve the dispatcher over HTTP and WebSocket.
Endpoints: /health, /metrics, /api/tools, /api/tools/execute, /ws and /files/.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (overrides server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := newServer(a)
	if err != nil {
		return err
	}

	if err := srv.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func newServer(a *app) (*server.Server, error) {
	srvCfg := server.Config{
		Host:         a.cfg.Server.Host,
		Port:         a.cfg.Server.Port,
		SharedSecret: a.cfg.Server.SharedSecret,
		Signer:       a.signer,
		Dispatcher:   a.executor,
		Tools:        a.registry,
		Policy: &server.ToolPolicy{
			Allow: a.cfg.Server.Tools.Allow,
			Deny:  a.cfg.Server.Tools.Deny,
		},
		Logger: a.logger.GetZerolog(),
	}
	if a.metrics != nil {
		srvCfg.Metrics = a.metrics
	}
	if a.files != nil {
		srvCfg.Files = a.files.FileSystem()
	}

	srv, err := server.NewServer(srvCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}
	return srv, nil
}
