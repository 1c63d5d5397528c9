// Package cli wires the vidpipe command tree: config loading, store
// lifecycle, and the execute/seed entrypoints.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jiki-education/video-production-sub000/pkg/config"
	"github.com/jiki-education/video-production-sub000/pkg/executor"
	"github.com/jiki-education/video-production-sub000/pkg/infra/assetcache"
	"github.com/jiki-education/video-production-sub000/pkg/infra/logger"
	"github.com/jiki-education/video-production-sub000/pkg/infra/objectstore"
	"github.com/jiki-education/video-production-sub000/pkg/infra/store"
	"github.com/jiki-education/video-production-sub000/pkg/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cliVersion   = "dev"
	cliBuildDate = "unknown"
	cliGitCommit = "unknown"
)

type RootCommand struct {
	cmd        *cobra.Command
	cfg        *config.Config
	store      pipeline.PipelineStore
	graph      *pipeline.GraphStore
	state      *pipeline.StateManager
	dispatcher *executor.Dispatcher
}

func NewRootCommand() *RootCommand {
	root := &RootCommand{}

	cmd := &cobra.Command{
		Use:   "vidpipe",
		Short: "vidpipe - video production pipeline graphs",
		Long: `vidpipe manages video-production workflows expressed as graphs of
typed processing nodes (scripts, generated speech and video, composition,
merging) and executes individual nodes against a shared store.`,
		PersistentPreRunE:  root.persistentPreRunE,
		PersistentPostRunE: root.persistentPostRunE,
		SilenceUsage:       true,
	}

	pflags := cmd.PersistentFlags()
	pflags.String("config", "", "Config file path (default: built-in defaults)")
	viper.BindPFlag("config", pflags.Lookup("config"))

	root.cmd = cmd
	root.addSubCommands()

	return root
}

func (r *RootCommand) addSubCommands() {
	r.cmd.AddCommand(NewExecuteCommand(r))
	r.cmd.AddCommand(NewSeedCommand(r))
	r.cmd.AddCommand(NewVersionCommand())
}

func (r *RootCommand) persistentPreRunE(cmd *cobra.Command, args []string) error {
	cfgPath := viper.GetString("config")
	var err error
	r.cfg, err = config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(logger.Config{
		Level:  r.cfg.Logging.Level,
		Format: r.cfg.Logging.Format,
	})

	if err := os.MkdirAll(r.cfg.General.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// One explicitly-opened store handle per process, released in the
	// post-run hook.
	sqliteStore, err := store.NewSQLiteStore(r.cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	r.store = sqliteStore
	r.graph = pipeline.NewGraphStore(r.store)
	r.state = pipeline.NewStateManager(r.store)

	cache := assetcache.New(r.cfg.Cache.Dir)
	objects := objectstore.NewClient(objectstore.Config{
		Scheme:        r.cfg.ObjectStore.Scheme,
		ServiceDomain: r.cfg.ObjectStore.ServiceDomain,
		Container:     r.cfg.ObjectStore.Container,
	}, cache)

	tool := executor.NewFFmpegTool(r.cfg.MergeTool.FFmpegPath, r.cfg.MergeTool.FFprobePath)

	r.dispatcher = executor.NewDispatcher()
	if err := r.dispatcher.Register(executor.NewMergeVideos(r.state, objects, tool, r.cfg.MergeTool.WorkDir)); err != nil {
		return fmt.Errorf("register executors: %w", err)
	}

	return nil
}

func (r *RootCommand) persistentPostRunE(cmd *cobra.Command, args []string) error {
	if r.store != nil {
		return r.store.Close()
	}
	return nil
}

func (r *RootCommand) ExecuteContext(ctx context.Context) error {
	return r.cmd.ExecuteContext(ctx)
}

// Execute runs the CLI with signal-aware context cancellation.
func Execute() {
	root := NewRootCommand()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// SetVersion injects build metadata from the linker.
func SetVersion(version, buildDate, gitCommit string) {
	cliVersion = version
	cliBuildDate = buildDate
	cliGitCommit = gitCommit
}
