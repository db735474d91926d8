// Command nestedset inspects and repairs nested sets stored in SQL databases
// or DynamoDB.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jacentio/nestedset/store/dynamo"
	"github.com/jacentio/nestedset/store/sqlstore"
	"github.com/jacentio/nestedset/tree"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the state shared by all commands of one invocation.
type app struct {
	configPath string
	database   string
	scopeKey   string

	config Config
	logger *slog.Logger
	store  tree.Store
	closer func() error
	tree   *tree.Tree
	scope  tree.Scope
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:               "nestedset",
		Short:             "Inspect and maintain nested set trees",
		SilenceUsage:      true,
		PersistentPreRunE: a.open,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.closer != nil {
				return a.closer()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.database, "db", "", "database DSN, overrides the config file")
	root.PersistentFlags().StringVarP(&a.scopeKey, "scope", "s", "", "scope as name=value pairs joined by '&', e.g. menu_id=1")

	root.AddCommand(
		a.treeCmd(),
		a.addCmd(),
		a.moveCmd(),
		a.rmCmd(),
		a.rebuildCmd(),
		a.checkCmd(),
		a.configCmd(),
		a.scopesCmd(),
		a.expireCmd(),
	)
	return root
}

func (a *app) open(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.database != "" {
		cfg.Database = a.database
	}
	a.config = cfg

	a.logger, err = cfg.logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.scope, err = tree.ParseScope(a.scopeKey)
	if err != nil {
		return fmt.Errorf("--scope: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if table, ok := strings.CutPrefix(cfg.Database, "dynamodb="); ok {
		dcfg := dynamo.DefaultConfig()
		dcfg.Table = table
		s, err := dynamo.Open(ctx, dcfg, a.logger)
		if err != nil {
			return err
		}
		a.store = s
	} else {
		scfg := sqlstore.DefaultConfig()
		if cfg.Table != "" {
			scfg.Table = cfg.Table
		}
		s, err := sqlstore.Open(cfg.Database, scfg, a.logger)
		if err != nil {
			return err
		}
		a.store, a.closer = s, s.Close
	}

	a.tree = tree.New(a.store, cfg.treeConfig())
	a.tree.SetLogger(a.logger)
	return nil
}

// node loads a node by its command line ID.
func (a *app) node(ctx context.Context, raw string) (*tree.Node, error) {
	id, err := tree.ParseID(raw)
	if err != nil {
		return nil, err
	}
	return a.tree.Get(ctx, id)
}
