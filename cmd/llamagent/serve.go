package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/germanamz/llamagent/pkg/engine"
	"github.com/germanamz/llamagent/pkg/tools/mcpserver"
	"github.com/spf13/cobra"
)

// DefaultToolPort is where the tool server listens when no port is given.
const DefaultToolPort = 8889

func newServeCmd(rf *rootFlags) *cobra.Command {
	var (
		port  int
		host  string
		stdio bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host the local tools over MCP",
		Long: "serve exposes the shell_command and calculator tools to MCP clients,\n" +
			"over streamable HTTP at http://host:port/mcp or on stdin/stdout.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := rf.loadConfig()
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("port") || cfg.ToolServer.Port == 0 {
				cfg.ToolServer.Port = port
			}
			if cmd.Flags().Changed("host") {
				cfg.ToolServer.Host = host
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return runServe(ctx, cfg, stdio)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", DefaultToolPort, "port to listen on")
	cmd.Flags().StringVar(&host, "host", engine.DefaultToolHost, "host to listen on")
	cmd.Flags().BoolVar(&stdio, "stdio", false, "serve on stdin/stdout instead of HTTP")

	return cmd
}

func runServe(ctx context.Context, cfg engine.Config, stdio bool) error {
	log, err := newLogger(os.Stderr, cfg.Log)
	if err != nil {
		return err
	}

	eng, err := engine.New(ctx, cfg, engine.ToolsOnly(), engine.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	if stdio {
		return eng.ToolServer().Serve(ctx, os.Stdin, os.Stdout)
	}

	ln, err := mcpserver.Listen(eng.ToolServerAddr())
	if err != nil {
		return err
	}

	return eng.ServeTools(ctx, ln)
}
