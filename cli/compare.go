package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Superego-Agent/superego-lgdemo-sub000/compare"
	"github.com/Superego-Agent/superego-lgdemo-sub000/core"
	"github.com/Superego-Agent/superego-lgdemo-sub000/server"
)

// NewCompareCmd creates the "compare" subcommand: the same prompt through
// several branch configurations at once.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [prompt]",
		Short: "Run a prompt through multiple gate configurations concurrently",
		Long: `Run the same prompt through one branch per --constitution plus an
optional ungated baseline, or through the config file's compare presets when
no flags are given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCompare,
	}
	cmd.Flags().StringArrayP("constitution", "C", nil, "Constitution module id; one branch per flag (repeatable)")
	cmd.Flags().String("provider", "", "Model provider for all branches")
	cmd.Flags().String("model", "", "Model name override for all branches")
	cmd.Flags().Bool("baseline", false, "Add an ungated baseline branch")
	return cmd
}

func runCompare(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	app, err := buildApp(configPath)
	if err != nil {
		return err
	}
	defer app.cleanup()

	constitutions, _ := cmd.Flags().GetStringArray("constitution")
	provider, _ := cmd.Flags().GetString("provider")
	modelName, _ := cmd.Flags().GetString("model")
	baseline, _ := cmd.Flags().GetBool("baseline")

	if provider == "" {
		provider = app.cfg.Providers.Default
	}

	configs, err := app.compareConfigs(constitutions, provider, modelName, baseline)
	if err != nil {
		return err
	}
	if len(configs) == 0 {
		return exitError(2, "nothing to compare: pass --constitution flags or configure compare presets")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmp := compare.New(app.factory(server.APIKeys{}), configs,
		compare.WithLogger(app.logger),
		compare.WithSession(app.store, core.NewID()))

	initial := []core.Message{core.NewHumanMessage(strings.Join(args, " "))}
	out := newRenderer(os.Stdout)
	failed := false
	for ev := range cmp.Run(ctx, initial) {
		out.render(ev)
		if ev.Type == core.EventError {
			failed = true
		}
	}
	if failed {
		return exitError(1, "comparison finished with errors")
	}
	return nil
}

// compareConfigs derives branch configs from flags, falling back to the
// config file's presets when no constitutions were given.
func (a *app) compareConfigs(constitutions []string, provider, modelName string, baseline bool) ([]core.RunConfig, error) {
	var configs []core.RunConfig

	if len(constitutions) == 0 && !baseline {
		for _, preset := range a.cfg.Compare.Presets {
			cfg := core.RunConfig{
				BranchID:       preset.BranchID,
				Provider:       preset.Provider,
				ModelName:      preset.Model,
				AdherenceLevel: preset.AdherenceLevel,
				SkipGate:       preset.SkipGate,
			}
			if cfg.Provider == "" {
				cfg.Provider = a.cfg.Providers.Default
			}
			if len(preset.Constitutions) > 0 {
				text, err := a.registry.Resolve(preset.Constitutions...)
				if err != nil {
					return nil, exitError(2, "preset %s: %v", preset.BranchID, err)
				}
				cfg.Constitution = text
			}
			configs = append(configs, cfg)
		}
		return configs, nil
	}

	for i, id := range constitutions {
		text, err := a.registry.Resolve(id)
		if err != nil {
			return nil, exitError(2, "%v", err)
		}
		configs = append(configs, core.RunConfig{
			BranchID:     branchIDFor(id, i),
			Provider:     provider,
			ModelName:    modelName,
			Constitution: text,
		})
	}
	if baseline {
		configs = append(configs, core.RunConfig{
			BranchID:  "baseline",
			Provider:  provider,
			ModelName: modelName,
			SkipGate:  true,
		})
	}
	return configs, nil
}

func branchIDFor(constitutionID string, idx int) string {
	if constitutionID != "" {
		return constitutionID
	}
	return fmt.Sprintf("branch_%d", idx)
}
