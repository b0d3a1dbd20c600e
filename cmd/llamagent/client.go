package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/germanamz/llamagent/pkg/tools/mcpclient"
	"github.com/germanamz/llamagent/pkg/tools/mcpserver"
	"github.com/germanamz/llamagent/pkg/tools/toolbox"
	"github.com/spf13/cobra"
)

// defaultServer is the agent's own tool server.
var defaultServer = serverEntry{Name: "agent", URL: fmt.Sprintf("http://localhost:%d%s", DefaultToolPort, mcpserver.Path)}

// serverEntry names a tool server to connect to.
type serverEntry struct {
	Name string
	URL  string
}

// parseServerFlag parses "name=url".
func parseServerFlag(s string) (serverEntry, error) {
	name, url, ok := strings.Cut(s, "=")
	name, url = strings.TrimSpace(name), strings.TrimSpace(url)
	if !ok || name == "" || url == "" {
		return serverEntry{}, fmt.Errorf("invalid server %q, want name=url", s)
	}
	return serverEntry{Name: name, URL: url}, nil
}

func newClientCmd(rf *rootFlags) *cobra.Command {
	var (
		extra     []string
		noDefault bool
	)

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Call tools on MCP servers interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := rf.loadConfig()
			if err != nil {
				return err
			}
			log, err := newLogger(os.Stderr, cfg.Log)
			if err != nil {
				return err
			}

			var entries []serverEntry
			if !noDefault {
				entries = append(entries, defaultServer)
			}
			for _, s := range extra {
				e, err := parseServerFlag(s)
				if err != nil {
					return err
				}
				entries = append(entries, e)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			tc, err := connectServers(ctx, entries, log)
			if err != nil {
				return err
			}
			defer tc.Close()

			return tc.repl(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringArrayVar(&extra, "add-server", nil, "additional server as name=url (repeatable)")
	cmd.Flags().BoolVar(&noDefault, "no-default-server", false, "do not connect to the agent's own tool server")

	return cmd
}

// toolClient holds connections to several tool servers and a merged view of
// their tools.
type toolClient struct {
	clients []*mcpclient.MCPClient
	tools   map[string][]toolbox.Tool // per server, in connection order
	toolbox *toolbox.ToolBox
	log     *slog.Logger
}

// connectServers connects to every reachable server. Unreachable servers are
// skipped with a warning; it fails only if none could be reached.
func connectServers(ctx context.Context, entries []serverEntry, log *slog.Logger) (*toolClient, error) {
	tc := &toolClient{
		tools:   make(map[string][]toolbox.Tool),
		toolbox: toolbox.New(),
		log:     log,
	}

	for _, s := range entries {
		c, err := mcpclient.NewHTTP(ctx, s.Name, s.URL)
		if err != nil {
			log.Warn("cannot connect to server", "server", s.Name, "url", s.URL, "error", err)
			continue
		}

		tools, err := c.ListTools(ctx)
		if err != nil {
			log.Warn("cannot list tools", "server", s.Name, "error", err)
			_ = c.Close()
			continue
		}

		tc.clients = append(tc.clients, c)
		tc.tools[s.Name] = tools
		for _, t := range tools {
			if !tc.toolbox.Add(t) {
				log.Warn("duplicate tool ignored", "tool", t.Name, "server", s.Name)
			}
		}
	}

	if len(tc.clients) == 0 {
		return nil, errors.New("no tool server reachable")
	}

	return tc, nil
}

// Close disconnects from every server.
func (tc *toolClient) Close() {
	for _, c := range tc.clients {
		_ = c.Close()
	}
}

const clientHelp = `Commands:
  tools                    list the tools of every server
  tool <name> <json_args>  call a tool, e.g. tool calculator {"expression":"2 + 2"}
  servers                  list connected servers
  help                     show this help
  exit, quit               leave
`

// repl reads commands from in until EOF or exit.
func (tc *toolClient) repl(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	_, _ = fmt.Fprint(out, clientHelp)

	for {
		_, _ = fmt.Fprint(out, userPrefixStyle.Render("mcp> "))
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(out)
			return scanner.Err()
		}

		if quit := tc.exec(ctx, strings.TrimSpace(scanner.Text()), out); quit {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// exec runs one command line. It reports whether the user asked to quit.
func (tc *toolClient) exec(ctx context.Context, line string, out io.Writer) bool {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "":
	case "exit", "quit":
		return true
	case "help":
		_, _ = fmt.Fprint(out, clientHelp)
	case "servers":
		tc.printServers(out)
	case "tools":
		tc.printTools(out)
	case "tool":
		name, args, _ := strings.Cut(rest, " ")
		if name == "" {
			_, _ = fmt.Fprintln(out, toolErrorStyle.Render("usage: tool <name> <json_args>"))
			break
		}
		tc.call(ctx, name, strings.TrimSpace(args), out)
	default:
		_, _ = fmt.Fprintln(out, toolErrorStyle.Render(fmt.Sprintf("unknown command %q, type help", cmd)))
	}

	return false
}

func (tc *toolClient) printServers(out io.Writer) {
	for _, c := range tc.clients {
		_, _ = fmt.Fprintf(out, "%s %s (%d tools)\n",
			serverStyle.Render(c.Name()), c.Endpoint(), len(tc.tools[c.Name()]))
	}
}

func (tc *toolClient) printTools(out io.Writer) {
	for _, c := range tc.clients {
		_, _ = fmt.Fprintln(out, serverStyle.Render(c.Name()))
		tools := tc.tools[c.Name()]
		for i, t := range tools {
			branch := treePipe
			if i == len(tools)-1 {
				branch = treeCorner
			}
			_, _ = fmt.Fprintf(out, "%s%s %s\n", branch, toolNameStyle.Render(t.Name), statusStyle.Render(t.Description))
		}
	}
}

func (tc *toolClient) call(ctx context.Context, name, args string, out io.Writer) {
	res := tc.toolbox.Invoke(ctx, name, args)
	if res.IsError {
		_, _ = fmt.Fprintln(out, toolErrorStyle.Render(fmt.Sprintf("%s error: %s", res.ErrorKind, res.Content)))
		return
	}
	_, _ = fmt.Fprintln(out, res.Content)
}
