// Command nestedset-expiry is the Lambda function attached to the node table's
// stream. It closes the gaps left by nodes removed through TTL.
//
// Environment:
//
//	NESTEDSET_TABLE           node table, default nestedset_nodes
//	NESTEDSET_ID_INDEX        ID index, default id-index
//	NESTEDSET_PATH_SEPARATOR  path separator, default /
//	NESTEDSET_TRACK_LEVEL     maintain levels on rebuild, default true
//	NESTEDSET_TRACK_PATH      maintain paths on rebuild, default true
//
// Level and path tracking must match the settings of every other writer of the
// table.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/nestedset/store/dynamo"
	"github.com/jacentio/nestedset/stream"
	"github.com/jacentio/nestedset/tree"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, treeCfg, err := configFromEnv(os.Getenv)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	s, err := dynamo.Open(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}

	t := tree.New(s, treeCfg)
	t.SetLogger(logger)

	lambda.Start(stream.NewHandler(t, logger).HandleExpiry)
}

// configFromEnv reads the store and tree settings over their defaults.
func configFromEnv(getenv func(string) string) (dynamo.Config, tree.Config, error) {
	cfg := dynamo.DefaultConfig()
	if v := getenv("NESTEDSET_TABLE"); v != "" {
		cfg.Table = v
	}
	if v := getenv("NESTEDSET_ID_INDEX"); v != "" {
		cfg.IDIndex = v
	}

	treeCfg := tree.DefaultConfig()
	if v := getenv("NESTEDSET_PATH_SEPARATOR"); v != "" {
		treeCfg.PathSeparator = v
	}
	for name, dst := range map[string]*bool{
		"NESTEDSET_TRACK_LEVEL": &treeCfg.TrackLevel,
		"NESTEDSET_TRACK_PATH":  &treeCfg.TrackPath,
	} {
		v := getenv(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, treeCfg, fmt.Errorf("%s: %w", name, err)
		}
		*dst = b
	}
	return cfg, treeCfg, nil
}
