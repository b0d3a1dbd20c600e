package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/germanamz/llamagent/pkg/chattmpl"
	"github.com/germanamz/llamagent/pkg/generate"
	"github.com/germanamz/llamagent/pkg/inference/llamaserver"
	"github.com/germanamz/llamagent/pkg/modeladapter"
)

// buildTemplate returns the chat template selected by cfg.
func buildTemplate(cfg ChatConfig) (chattmpl.Template, error) {
	format, err := chattmpl.ParseFormat(cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	if cfg.TemplateFile != "" {
		t, err := chattmpl.LoadFile(cfg.TemplateFile, format)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		return t, nil
	}

	return chattmpl.ForFormat(format)
}

// buildCompleter connects to the inference server, checks that it serves the
// configured model and assembles the local completer around it.
func buildCompleter(ctx context.Context, cfg Config, client *http.Client, log *slog.Logger) (*modeladapter.Local, error) {
	tmpl, err := buildTemplate(cfg.Chat)
	if err != nil {
		return nil, err
	}

	eng := llamaserver.New(cfg.Model.EngineURL, client)
	eng.Auth = modeladapter.Auth{Key: cfg.Model.APIKey}

	if err := eng.Load(ctx, cfg.Model.Path); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	ctxSize := cfg.Model.ContextSize
	if ctxSize == 0 {
		ctxSize = eng.MaxTokens
	} else if eng.MaxTokens > 0 && ctxSize > eng.MaxTokens {
		log.Warn("configured context exceeds the server's", "ctx_size", ctxSize, "server_ctx_size", eng.MaxTokens)
	}

	local := modeladapter.NewLocal(eng, tmpl, generate.Driver{
		MaxNewTokens: cfg.Model.MaxNewTokens,
		BatchSize:    cfg.Model.BatchSize,
		ContextSize:  ctxSize,
	})
	local.ToolChoice = cfg.Chat.ToolChoice

	log.Info("model loaded", "model", eng.Name, "ctx_size", ctxSize, "format", cfg.Chat.Format)
	return local, nil
}
