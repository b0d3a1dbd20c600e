package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/germanamz/llamagent/pkg/agent"
	"github.com/germanamz/llamagent/pkg/audit"
	"github.com/germanamz/llamagent/pkg/builtin/calculator"
	"github.com/germanamz/llamagent/pkg/builtin/shell"
	"github.com/germanamz/llamagent/pkg/executor"
	"github.com/germanamz/llamagent/pkg/modeladapter"
	"github.com/germanamz/llamagent/pkg/modeladapter/usage"
	"github.com/germanamz/llamagent/pkg/permissions"
	"github.com/germanamz/llamagent/pkg/safety"
	"github.com/germanamz/llamagent/pkg/tools/mcpclient"
	"github.com/germanamz/llamagent/pkg/tools/mcpserver"
	"github.com/germanamz/llamagent/pkg/tools/toolbox"
)

// Name is announced by the tool server.
const Name = "llamagent"

// ErrNoModel is returned by NewSession on an engine built with ToolsOnly.
var ErrNoModel = errors.New("engine: no model loaded")

// Option customises an Engine.
type Option func(*options)

type options struct {
	toolsOnly  bool
	log        *slog.Logger
	completer  modeladapter.Completer
	runner     executor.Runner
	confirmer  agent.Confirmer
	httpClient *http.Client
}

// ToolsOnly builds the tools and stores but no model. Such an engine can
// host its tools but cannot create sessions.
func ToolsOnly() Option {
	return func(o *options) { o.toolsOnly = true }
}

// WithLogger sets the logger used by the engine and everything it builds.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithCompleter replaces the local model completer. The inference server is
// not contacted.
func WithCompleter(c modeladapter.Completer) Option {
	return func(o *options) { o.completer = c }
}

// WithRunner replaces the process executor behind the shell tool.
func WithRunner(r executor.Runner) Option {
	return func(o *options) { o.runner = r }
}

// WithConfirmer sets who is asked before tool calls when confirmation is on.
func WithConfirmer(c agent.Confirmer) Option {
	return func(o *options) { o.confirmer = c }
}

// WithHTTPClient sets the client used to reach the inference server.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// ServerInfo describes a connected remote tool provider.
type ServerInfo struct {
	Name     string
	Endpoint string
	Tools    []string
}

// Engine is the composition root. It assembles the model, the tools and the
// stores from configuration and hands out sessions.
type Engine struct {
	cfg        Config
	opts       options
	log        *slog.Logger
	events     *EventBus
	completer  modeladapter.Completer
	toolbox    *toolbox.ToolBox
	local      *toolbox.ToolBox
	perms      *permissions.Store
	audit      *audit.Log
	mcpClients []*mcpclient.MCPClient
	servers    []ServerInfo

	mu       sync.Mutex
	sessions map[string]*Session
	nextID   int
}

// New creates an Engine from the given configuration. It applies defaults,
// validates the config, opens the stores, builds the local tools, discovers
// remote tools and loads the model.
func New(ctx context.Context, cfg Config, opts ...Option) (*Engine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg = cfg.WithDefaults()
	if err := cfg.validate(!o.toolsOnly); err != nil {
		return nil, err
	}
	if o.log == nil {
		o.log = slog.New(slog.DiscardHandler)
	}

	e := &Engine{
		cfg:      cfg,
		opts:     o,
		log:      o.log,
		events:   NewEventBus(),
		toolbox:  toolbox.New(),
		sessions: make(map[string]*Session),
	}

	if err := e.openStores(); err != nil {
		_ = e.Close()
		return nil, err
	}

	e.local = e.buildLocalTools()
	for _, t := range e.local.Tools() {
		e.toolbox.Add(t)
	}

	for _, mc := range cfg.MCPServers {
		if err := e.discover(ctx, mc); err != nil {
			_ = e.Close()
			return nil, err
		}
	}

	e.completer = o.completer
	if e.completer == nil && !o.toolsOnly {
		c, err := buildCompleter(ctx, cfg, o.httpClient, e.log)
		if err != nil {
			_ = e.Close()
			return nil, err
		}
		e.completer = c
	}

	return e, nil
}

func (e *Engine) openStores() error {
	if e.cfg.PermissionsFile != "" {
		p, err := permissions.New(e.cfg.PermissionsFile)
		if err != nil {
			return fmt.Errorf("engine: permissions: %w", err)
		}
		e.perms = p
	} else {
		e.perms = permissions.NewMemory()
	}

	if e.cfg.Audit.DBPath != "" {
		l, err := audit.Open(e.cfg.Audit.DBPath, e.log)
		if err != nil {
			return fmt.Errorf("engine: %w", err)
		}
		e.audit = l
	}

	return nil
}

// buildLocalTools assembles the built-in tools: the shell tool behind the
// safety validator and the calculator.
func (e *Engine) buildLocalTools() *toolbox.ToolBox {
	runner := e.opts.runner
	if runner == nil {
		runner = &executor.Executor{
			Mode:           executor.Mode(e.cfg.Shell.Mode),
			MaxOutputBytes: e.cfg.Shell.MaxOutputBytes,
			Dir:            e.cfg.Shell.Dir,
		}
	}

	shellOpts := []shell.Option{shell.WithLogger(e.log)}
	if executor.Mode(e.cfg.Shell.Mode) == executor.ModeArgv {
		shellOpts = append(shellOpts, shell.WithArgv())
	}
	if e.audit != nil {
		shellOpts = append(shellOpts, shell.WithRecorder(e.audit))
	}

	tb := toolbox.New()
	tb.Register(shell.New(safety.New(e.cfg.Shell.Policy), runner, shellOpts...).Tool())
	tb.Register(calculator.Tool())
	return tb
}

// discover connects to a remote provider and registers its tools. A tool
// whose name is already taken is skipped with a warning.
func (e *Engine) discover(ctx context.Context, mc MCPConfig) error {
	client, err := connect(ctx, mc)
	if err != nil {
		return fmt.Errorf("engine: mcp %q: %w", mc.Name, err)
	}
	e.mcpClients = append(e.mcpClients, client)

	tools, err := client.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("engine: mcp %q: list tools: %w", mc.Name, err)
	}

	info := ServerInfo{Name: mc.Name, Endpoint: client.Endpoint()}
	for _, t := range tools {
		if !e.toolbox.Add(t) {
			existing, _ := e.toolbox.Get(t.Name)
			e.log.Warn("duplicate tool ignored",
				"tool", t.Name, "server", mc.Name, "registered_by", existing.Source)
			continue
		}
		info.Tools = append(info.Tools, t.Name)
	}
	e.servers = append(e.servers, info)

	e.log.Info("discovered tools", "server", mc.Name, "endpoint", client.Endpoint(), "count", len(info.Tools))
	return nil
}

func connect(ctx context.Context, mc MCPConfig) (*mcpclient.MCPClient, error) {
	switch {
	case mc.Command != "":
		return mcpclient.New(ctx, mc.Name, mc.Command, mc.Args...)
	case mc.Transport == "sse":
		return mcpclient.NewSSE(ctx, mc.Name, mc.URL)
	default:
		return mcpclient.NewHTTP(ctx, mc.Name, mc.URL)
	}
}

// Config returns the effective configuration, defaults applied.
func (e *Engine) Config() Config { return e.cfg }

// Events returns the engine's event bus.
func (e *Engine) Events() *EventBus { return e.events }

// ToolBox returns the registry every session dispatches through.
func (e *Engine) ToolBox() *toolbox.ToolBox { return e.toolbox }

// Permissions returns the trusted-tools store.
func (e *Engine) Permissions() *permissions.Store { return e.perms }

// Audit returns the command audit log, or nil if it is disabled.
func (e *Engine) Audit() *audit.Log { return e.audit }

// Servers returns the connected remote tool providers in config order.
func (e *Engine) Servers() []ServerInfo { return e.servers }

// Usage returns the completer's token usage tracker, or nil if the completer
// does not report usage.
func (e *Engine) Usage() *usage.Tracker {
	if r, ok := e.completer.(modeladapter.UsageReporter); ok {
		return r.UsageTracker()
	}
	return nil
}

// NewSession creates a new conversation with its own agent.
func (e *Engine) NewSession() (*Session, error) {
	if e.completer == nil {
		return nil, ErrNoModel
	}

	e.mu.Lock()
	e.nextID++
	id := fmt.Sprintf("session-%d", e.nextID)
	e.mu.Unlock()

	name := e.cfg.Agent.Name

	mw := []agent.Middleware{agent.Recovery(), agent.Logger(e.log, name)}
	if d := e.cfg.TurnTimeout(); d > 0 {
		mw = append(mw, agent.Timeout(d))
	}

	confirmer := e.opts.confirmer
	if confirmer != nil && e.audit != nil {
		confirmer = auditedConfirmer{next: confirmer, recorder: e.audit}
	}

	a := agent.New(name, e.cfg.Agent.Instructions, e.completer, agent.Options{
		MaxIterations: e.cfg.Agent.MaxIterations,
		Middleware:    mw,
		Confirm:       e.cfg.Agent.Confirm,
		Confirmer:     confirmer,
		Permissions:   e.perms,
		Observer:      &busObserver{bus: e.events, sessionID: id},
		Logger:        e.log,
	})
	a.AddToolBoxes(e.toolbox)
	a.Init()

	s := newSession(id, a, e.events)

	e.mu.Lock()
	e.sessions[id] = s
	e.mu.Unlock()

	return s, nil
}

// Session returns an existing session by ID.
func (e *Engine) Session(id string) (*Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[id]
	return s, ok
}

// ToolServer builds an MCP server hosting the local tools.
func (e *Engine) ToolServer() *mcpserver.MCPServer {
	srv := mcpserver.New(Name, mcpclient.Version, e.log)
	srv.Register(e.local.Tools()...)
	return srv
}

// ToolServerAddr returns the configured tool server address.
func (e *Engine) ToolServerAddr() string {
	return net.JoinHostPort(e.cfg.ToolServer.Host, strconv.Itoa(e.cfg.ToolServer.Port))
}

// ServeTools hosts the local tools on ln until ctx is cancelled.
func (e *Engine) ServeTools(ctx context.Context, ln net.Listener) error {
	return e.ToolServer().ServeHTTP(ctx, ln)
}

// Close shuts down MCP clients and releases resources.
func (e *Engine) Close() error {
	var firstErr error
	for _, c := range e.mcpClients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.audit != nil {
		if err := e.audit.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
