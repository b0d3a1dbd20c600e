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

	"github.com/germanamz/llamagent/pkg/engine"
	"github.com/germanamz/llamagent/pkg/modeladapter/usage"
	"github.com/germanamz/llamagent/pkg/tools/mcpserver"
	"github.com/spf13/cobra"
)

// chatFlags override the model, chat and agent sections of the config.
type chatFlags struct {
	model        string
	maxNewTokens int
	ctxSize      int
	batchSize    int
	confirm      bool
	templateFile string
	format       string
	port         int
	engineURL    string
	verbose      bool
}

func newChatCmd(rf *rootFlags) *cobra.Command {
	var f chatFlags

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the model in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := rf.loadConfig()
			if err != nil {
				return err
			}
			f.apply(cmd, &cfg)

			if cfg.Model.Path == "" {
				return fmt.Errorf("required flag \"model\" not set\n\n%s", cmd.UsageString())
			}

			return runChat(cmd.Context(), cfg, f.verbose, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.model, "model", "m", "", "path of the GGUF model the server must be serving (required)")
	fl.IntVarP(&f.maxNewTokens, "max-new-tokens", "n", 0, "maximum tokens generated per reply")
	fl.IntVar(&f.ctxSize, "ctx-size", 0, "context size in tokens (0 = the server's)")
	fl.IntVar(&f.batchSize, "batch-size", 0, "prompt tokens submitted per decode call")
	fl.BoolVar(&f.confirm, "confirm", false, "ask before every tool call")
	fl.StringVar(&f.templateFile, "chat-template-file", "", "render prompts with this Go template file")
	fl.StringVar(&f.format, "chat-format", "", "chat format: hermes, llama3, generic")
	fl.IntVar(&f.port, "port", 0, "also host the local tools over MCP on this port")
	fl.StringVar(&f.engineURL, "engine-url", "", "llama.cpp server URL")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "show full tool results and reasoning")

	return cmd
}

// apply copies every flag the user set onto cfg.
func (f chatFlags) apply(cmd *cobra.Command, cfg *engine.Config) {
	changed := cmd.Flags().Changed

	if changed("model") {
		cfg.Model.Path = f.model
	}
	if changed("max-new-tokens") {
		cfg.Model.MaxNewTokens = f.maxNewTokens
	}
	if changed("ctx-size") {
		cfg.Model.ContextSize = f.ctxSize
	}
	if changed("batch-size") {
		cfg.Model.BatchSize = f.batchSize
	}
	if changed("confirm") {
		cfg.Agent.Confirm = f.confirm
	}
	if changed("chat-template-file") {
		cfg.Chat.TemplateFile = f.templateFile
	}
	if changed("chat-format") {
		cfg.Chat.Format = f.format
	}
	if changed("port") {
		cfg.ToolServer.Port = f.port
	}
	if changed("engine-url") {
		cfg.Model.EngineURL = f.engineURL
	}
}

func runChat(parent context.Context, cfg engine.Config, verbose bool, in io.Reader, out io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log, err := newLogger(os.Stderr, cfg.Log)
	if err != nil {
		return err
	}

	con := newConsole(out, verbose)

	eng, err := engine.New(ctx, cfg,
		engine.WithLogger(log),
		engine.WithConfirmer(newPromptConfirmer(con)),
	)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	if eng.Config().ToolServer.Port > 0 {
		ln, err := mcpserver.Listen(eng.ToolServerAddr())
		if err != nil {
			return err
		}
		go func() {
			if err := eng.ServeTools(ctx, ln); err != nil {
				log.Error("tool server stopped", "error", err)
			}
		}()
	}

	for _, s := range eng.Servers() {
		log.Info("remote tools available", "server", s.Name, "tools", strings.Join(s.Tools, ","))
	}

	sess, err := eng.NewSession()
	if err != nil {
		return err
	}

	sub := eng.Events().Subscribe(256)
	con.follow(sub)
	defer eng.Events().Unsubscribe(sub)

	initMarkdownRenderer(100)

	return chatLoop(ctx, in, con, sess, eng.Usage(), log)
}

// chatLoop reads one user message per line until EOF, "exit" or "quit".
func chatLoop(ctx context.Context, in io.Reader, con *console, sess *engine.Session, tracker *usage.Tracker, log *slog.Logger) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		con.printf("%s", userPrefixStyle.Render("You > "))

		if !scanner.Scan() {
			con.printf("\n")
			if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			return nil
		}

		text := strings.TrimSpace(scanner.Text())
		switch text {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		con.turn(ctx, sess, tracker, text)

		if ctx.Err() != nil {
			log.Info("shutting down")
			return nil
		}
	}
}
