// Command llamagent drives a local language model through tool calls: it chats
// with the model, executes the shell and calculator tools it asks for, hosts
// those tools over MCP and offers an interactive tool client.
package main

import (
	"fmt"
	"os"

	"github.com/germanamz/llamagent/pkg/engine"
	"github.com/spf13/cobra"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	envFile    string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var rf rootFlags

	root := &cobra.Command{
		Use:   "llamagent",
		Short: "Tool-augmented chat with a local language model",
		Long: "llamagent runs a conversational agent on a local model served by llama.cpp.\n" +
			"The model may call a sandboxed shell tool and a calculator, and any tools\n" +
			"discovered on configured MCP servers.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadDotEnv(rf.envFile)
		},
	}

	root.PersistentFlags().StringVarP(&rf.configPath, "config", "c", "", "path to YAML configuration file")
	root.PersistentFlags().StringVar(&rf.envFile, "env", ".env", "path to .env file (ignored if missing)")
	root.PersistentFlags().StringVar(&rf.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newChatCmd(&rf))
	root.AddCommand(newServeCmd(&rf))
	root.AddCommand(newClientCmd(&rf))

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w\n\n%s", err, cmd.UsageString())
	})

	return root
}

// loadConfig reads the configuration file, if any, and applies the shared
// flags on top of it.
func (rf *rootFlags) loadConfig() (engine.Config, error) {
	var cfg engine.Config
	if rf.configPath != "" {
		var err error
		if cfg, err = engine.LoadConfig(rf.configPath); err != nil {
			return engine.Config{}, err
		}
	}

	if rf.logLevel != "" {
		cfg.Log.Level = rf.logLevel
	}

	return cfg, nil
}
