package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/0xcro3dile/creditrag-go/internal/app"
	"github.com/0xcro3dile/creditrag-go/internal/infrastructure/config"
	"github.com/0xcro3dile/creditrag-go/internal/infrastructure/logger"
)

// cli carries state shared by every subcommand.
type cli struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
	log        *logger.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:           "creditrag",
		Short:         "UK consumer credit Q&A over a local knowledge base",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.log != nil {
				c.log.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "config file (default ./creditrag.yaml if present)")
	flags.String("data", "", "corpus directory")
	flags.String("index-dir", "", "index directory")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-mode", "", "log mode: dev or prod")
	c.bind("corpus.dir", root, "data")
	c.bind("index.dir", root, "index-dir")
	c.bind("log.level", root, "log-level")
	c.bind("log.mode", root, "log-mode")

	root.AddCommand(
		newIndexCmd(c),
		newChatCmd(c),
		newAskCmd(c),
		newServeCmd(c),
	)
	return root
}

// bind ties a flag to a config key; an unset flag leaves the key alone.
func (c *cli) bind(key string, cmd *cobra.Command, flag string) {
	f := cmd.PersistentFlags().Lookup(flag)
	if f == nil {
		f = cmd.Flags().Lookup(flag)
	}
	_ = c.v.BindPFlag(key, f)
}

func (c *cli) load() error {
	cfg, err := config.Load(c.v, c.configFile)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	c.cfg, c.log = cfg, log
	return nil
}

func (c *cli) open(ctx context.Context) (*app.App, error) {
	return app.New(ctx, c.cfg, c.log)
}
