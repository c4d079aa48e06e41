package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/GoCodeAlone/appsyncctl/platform"
	"github.com/GoCodeAlone/appsyncctl/platform/state"
)

func nopClose() error { return nil }

// openStore opens the snapshot store named by --state. A value without a
// scheme is a directory for the file store.
func (c *cli) openStore(ctx context.Context, region string) (platform.StateStore, func() error, error) {
	loc := c.flags.state
	scheme, rest, ok := strings.Cut(loc, "://")
	if !ok {
		if path, found := strings.CutPrefix(loc, "sqlite:"); found {
			scheme, rest = "sqlite", path
		} else {
			scheme, rest = "file", loc
		}
	}

	switch scheme {
	case "file":
		return state.NewFileStore(rest), nopClose, nil

	case "sqlite":
		store, err := state.NewSQLiteStore(rest)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case "postgres", "postgresql":
		store, err := state.NewPostgresStore(loc)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case "redis", "rediss":
		store, err := state.NewRedisStore(ctx, loc, state.DefaultRedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case "s3":
		u, err := url.Parse(loc)
		if err != nil || u.Host == "" {
			return nil, nil, fmt.Errorf("invalid --state %q: want s3://bucket/prefix", loc)
		}
		prefix := strings.TrimPrefix(u.Path, "/")
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		p, err := c.awsProvider(ctx, region)
		if err != nil {
			return nil, nil, err
		}
		return p.S3Store(u.Host, prefix), nopClose, nil

	case "dynamodb":
		if rest == "" {
			return nil, nil, fmt.Errorf("invalid --state %q: want dynamodb://table", loc)
		}
		p, err := c.awsProvider(ctx, region)
		if err != nil {
			return nil, nil, err
		}
		return p.DynamoDBStore(rest), nopClose, nil

	default:
		return nil, nil, fmt.Errorf("unsupported state scheme %q", scheme)
	}
}
