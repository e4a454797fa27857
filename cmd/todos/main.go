// Command todos prints stored to-do items as JSON. It reads the same
// environment as the API server and talks to the store directly.
//
//	todos -user <uid>            items owned by uid
//	todos -collection users      every document of a collection
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gogotex/todo-api/internal/config"
	"github.com/gogotex/todo-api/internal/database"
	"github.com/gogotex/todo-api/internal/document"
	"github.com/gogotex/todo-api/internal/document/repository"
	"github.com/gogotex/todo-api/internal/todos"
	"github.com/gogotex/todo-api/pkg/logger"
)

type options struct {
	user       string
	collection string
	limit      int
	orderBy    string
	desc       bool
}

func main() {
	var o options
	flag.StringVar(&o.user, "user", "", "list the to-do items owned by this user id")
	flag.StringVar(&o.collection, "collection", "", "dump every document of this collection instead")
	flag.IntVar(&o.limit, "limit", 0, "maximum number of documents (0 = no limit)")
	flag.StringVar(&o.orderBy, "order-by", "", "order results by this field")
	flag.BoolVar(&o.desc, "desc", false, "descending order")
	flag.Parse()

	// stdout carries the JSON
	logger.SetOutput(os.Stderr)
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if cfg.MongoDB.URI == "" {
		logger.Fatalf("MONGODB_URI is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, cfg.MongoDB.Attempts)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	store := database.NewMongoStore(client.Database(cfg.MongoDB.Database))
	if err := run(ctx, store, o, os.Stdout); err != nil {
		logger.Fatalf("%v", err)
	}
}

func run(ctx context.Context, store database.Store, o options, w io.Writer) error {
	var qopts []document.Option
	if o.limit > 0 {
		qopts = append(qopts, document.WithLimit(o.limit))
	}
	if o.orderBy != "" {
		dir := database.Asc
		if o.desc {
			dir = database.Desc
		}
		qopts = append(qopts, document.WithOrderBy(o.orderBy, dir))
	}

	var out any
	switch {
	case o.user != "" && o.collection != "":
		return errors.New("-user and -collection are mutually exclusive")
	case o.user != "":
		items, err := todos.NewRepository(store).GetByUserID(ctx, o.user, qopts...)
		if err != nil {
			return fmt.Errorf("list items of %s: %w", o.user, err)
		}
		out = items
	case o.collection != "":
		docs, err := repository.New[map[string]any](o.collection, store).GetAll(ctx, qopts...)
		if err != nil {
			return fmt.Errorf("dump %s: %w", o.collection, err)
		}
		out = docs
	default:
		return errors.New("one of -user or -collection is required")
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
