package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jacentio/nestedset/inspect"
	"github.com/jacentio/nestedset/tree"
)

// scopeLister is implemented by stores that can enumerate their scopes.
type scopeLister interface {
	Scopes(ctx context.Context) ([]tree.Scope, error)
}

// expirer is implemented by stores with deferred deletion.
type expirer interface {
	Expire(ctx context.Context, id tree.ID, at time.Time) error
}

var errUnsupported = errors.New("not supported by this database")

func (a *app) treeCmd() *cobra.Command {
	var fields []string
	cmd := &cobra.Command{
		Use:   "tree [id]",
		Short: "Print a scope, or the subtree of one node",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			label := inspect.Bounds
			if len(fields) > 0 {
				label = inspect.Fields(fields...)
			}

			var out string
			if len(args) == 1 {
				n, err := a.node(ctx, args[0])
				if err != nil {
					return err
				}
				if out, err = inspect.Subtree(ctx, a.tree, n, label); err != nil {
					return err
				}
			} else {
				var err error
				if out, err = inspect.Scope(ctx, a.tree, a.scope, label); err != nil {
					return err
				}
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&fields, "fields", "f", nil, "columns to print: id,lft,rgt,parent_id,slug,path,level")
	return cmd
}

// hintFlags registers the relocation flags shared by add and move.
func hintFlags(cmd *cobra.Command) {
	cmd.Flags().String("parent", "", "parent ID, empty for a root")
	cmd.Flags().String("left", "", "left neighbor ID, empty for the first sibling")
	cmd.Flags().String("right", "", "right neighbor ID, empty for the last sibling")
	cmd.Flags().String("path", "", "path of the node; its parent portion picks the parent")
}

// moveRequest builds a request from the relocation flags that were given.
func moveRequest(cmd *cobra.Command) (tree.MoveRequest, error) {
	attrs := make(map[string]any)
	for flag, attr := range map[string]string{
		"parent": tree.AttrParentID,
		"left":   tree.AttrLeftID,
		"right":  tree.AttrRightID,
		"path":   tree.AttrPath,
	} {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		v, err := cmd.Flags().GetString(flag)
		if err != nil {
			return tree.MoveRequest{}, err
		}
		attrs[attr] = v
	}
	return tree.ParseMoveRequest(attrs)
}

func (a *app) addCmd() *cobra.Command {
	var slug string
	cmd := &cobra.Command{
		Use:   "add [id]",
		Short: "Create a node, placed by --parent, --left, --right or --path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := moveRequest(cmd)
			if err != nil {
				return err
			}
			n := &tree.Node{Scope: a.scope, Slug: slug}
			if len(args) == 1 {
				if n.ID, err = tree.ParseID(args[0]); err != nil {
					return err
				}
			}
			if err := a.tree.Create(cmd.Context(), n, req); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
	cmd.Flags().StringVar(&slug, "slug", "", "path segment of the node")
	hintFlags(cmd)
	return cmd
}

func (a *app) moveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move <id> [child|left|right <target> | root]",
		Short: "Move a node next to or under another node",
		Long: `Move a node either by position:

  nestedset move 7 child 3
  nestedset move 7 root

or by relocation hints:

  nestedset move 7 --left 4
  nestedset move 7 --parent ""`,
		Args: cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			n, err := a.node(ctx, args[0])
			if err != nil {
				return err
			}

			switch len(args) {
			case 1:
				req, err := moveRequest(cmd)
				if err != nil {
					return err
				}
				if req.IsZero() {
					return errors.New("nothing to do: give a position or a relocation flag")
				}
				err = a.tree.MoveByAttributes(ctx, n, req)
				if err != nil {
					return err
				}
			default:
				pos, err := tree.ParsePosition(args[1])
				if err != nil {
					return err
				}
				var target tree.ID
				if pos != tree.PositionRoot {
					if len(args) != 3 {
						return fmt.Errorf("%s needs a target node", pos)
					}
					if target, err = tree.ParseID(args[2]); err != nil {
						return err
					}
				}
				if err := a.tree.MoveTo(ctx, n, target, pos); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
	hintFlags(cmd)
	return cmd
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a node and its descendants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			n, err := a.node(ctx, args[0])
			if err != nil {
				return err
			}
			return a.tree.Destroy(ctx, n)
		},
	}
}

var sortKeys = map[string]tree.SortKey{
	"left": tree.SortByLeft,
	"slug": tree.SortBySlug,
	"id":   tree.SortByID,
}

func (a *app) rebuildCmd() *cobra.Command {
	var from, sortBy string
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Renumber a scope from parent pointers or paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var err error
			switch from {
			case "parents":
				key, ok := sortKeys[sortBy]
				if !ok {
					return fmt.Errorf("--sort must be one of left, slug, id but is %q", sortBy)
				}
				err = a.tree.RebuildFromParents(ctx, a.scope, key)
			case "paths":
				err = a.tree.RebuildFromPaths(ctx, a.scope)
			default:
				return fmt.Errorf("--from must be parents or paths but is %q", from)
			}
			if err != nil {
				return err
			}
			return a.tree.Verify(ctx, a.scope)
		},
	}
	cmd.Flags().StringVar(&from, "from", "parents", "source of truth: parents or paths")
	cmd.Flags().StringVar(&sortBy, "sort", "left", "sibling order when rebuilding from parents: left, slug or id")
	return cmd
}

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the intervals of a scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.tree.Verify(cmd.Context(), a.scope); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", a.scope)
			return nil
		},
	}
}

func (a *app) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config
			tc := a.tree.Config()
			cfg.PathSeparator, cfg.TrackLevel, cfg.TrackPath = tc.PathSeparator, tc.TrackLevel, tc.TrackPath
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func (a *app) scopesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scopes",
		Short: "List the scopes holding nodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, ok := a.store.(scopeLister)
			if !ok {
				return fmt.Errorf("scopes: %w", errUnsupported)
			}
			scopes, err := l.Scopes(cmd.Context())
			if err != nil {
				return err
			}
			keys := make([]string, len(scopes))
			for i, s := range scopes {
				keys[i] = s.Key()
			}
			if len(keys) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(keys, "\n"))
			}
			return nil
		},
	}
}

func (a *app) expireCmd() *cobra.Command {
	var after time.Duration
	cmd := &cobra.Command{
		Use:   "expire <id>",
		Short: "Schedule a node and its branch for deletion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, ok := a.store.(expirer)
			if !ok {
				return fmt.Errorf("expire: %w", errUnsupported)
			}
			id, err := tree.ParseID(args[0])
			if err != nil {
				return err
			}
			return e.Expire(cmd.Context(), id, time.Now().Add(after))
		},
	}
	cmd.Flags().DurationVar(&after, "after", 0, "delay before the node expires")
	return cmd
}
