package cli

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Superego-Agent/superego-lgdemo-sub000/core"
	"github.com/Superego-Agent/superego-lgdemo-sub000/runner"
	"github.com/Superego-Agent/superego-lgdemo-sub000/server"
)

// NewChatCmd creates the "chat" subcommand: one gated run streamed to
// stdout.
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Run a prompt through the gated pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runChat,
	}
	cmd.Flags().StringArrayP("constitution", "C", nil, "Constitution module id (repeatable)")
	cmd.Flags().String("provider", "", "Model provider (anthropic, openai, mock)")
	cmd.Flags().String("model", "", "Model name override")
	cmd.Flags().String("session", "", "Session id to continue")
	cmd.Flags().Bool("skip-gate", false, "Skip the policy gate")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	app, err := buildApp(configPath)
	if err != nil {
		return err
	}
	defer app.cleanup()

	constitutions, _ := cmd.Flags().GetStringArray("constitution")
	provider, _ := cmd.Flags().GetString("provider")
	modelName, _ := cmd.Flags().GetString("model")
	sessionID, _ := cmd.Flags().GetString("session")
	skipGate, _ := cmd.Flags().GetBool("skip-gate")

	if provider == "" {
		provider = app.cfg.Providers.Default
	}
	cfg := core.RunConfig{Provider: provider, ModelName: modelName, SkipGate: skipGate}
	if len(constitutions) > 0 {
		text, err := app.registry.Resolve(constitutions...)
		if err != nil {
			return exitError(2, "%v", err)
		}
		cfg.Constitution = text
	}

	if sessionID == "" {
		sessionID = core.NewID()
	}
	sess, err := app.store.Get(sessionID)
	if err != nil {
		return exitError(1, "loading session: %v", err)
	}
	human := core.NewHumanMessage(strings.Join(args, " "))
	if err := app.store.AppendMessages(sessionID, human); err != nil {
		return exitError(1, "persisting message: %v", err)
	}
	initial := append(sess.Messages, human)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	br := runner.New(app.factory(server.APIKeys{}), cfg,
		runner.WithLogger(app.logger),
		runner.WithSession(app.store, sessionID))

	out := newRenderer(os.Stdout)
	failed := false
	for ev := range br.Run(ctx, initial) {
		out.render(ev)
		if ev.Type == core.EventError {
			failed = true
		}
	}
	if failed {
		return exitError(1, "run finished with errors")
	}
	return nil
}
