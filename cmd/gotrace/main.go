// Command gotrace inspects persisted trace caches: lists the stored entries
// or dumps selected ones, as an aligned table for terminals or as JSON/YAML
// for pipelines.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/podhmo/go-trace/cache"
)

func main() {
	var (
		cachePath string
		format    string
	)

	flag.StringVar(&cachePath, "cache", "", "path to the trace cache (*.db / *.sqlite opens SQLite, anything else a JSON file)")
	flag.StringVar(&format, "format", "table", "output format: table, json or yaml")
	flag.Parse()

	if cachePath == "" {
		log.Fatal("-cache is required")
	}

	if err := run(cachePath, format, flag.Args()); err != nil {
		log.Fatalf("!! %+v", err)
	}
}

func run(cachePath, format string, keys []string) error {
	ctx := context.Background()

	store, err := openStore(cachePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(keys) == 0 {
		keys, err = store.Keys(ctx)
		if err != nil {
			return err
		}
	}

	entries := make([]*cache.Entry, 0, len(keys))
	for _, key := range keys {
		e, ok, err := store.Get(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no entry for key %q", key)
		}
		entries = append(entries, e)
	}

	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(entries)
	case "table":
		return writeTable(os.Stdout, entries)
	default:
		return fmt.Errorf("unknown format %q (want table, json or yaml)", format)
	}
}

func openStore(path string) (cache.Store, error) {
	if strings.HasSuffix(path, ".db") || strings.HasSuffix(path, ".sqlite") {
		return cache.OpenSQLite(path)
	}
	return cache.OpenFile(path, nil)
}

// writeTable prints one summary row per entry. Output to a terminal is
// column-aligned; piped output stays plain tab-separated.
func writeTable(out *os.File, entries []*cache.Entry) error {
	var w io.Writer = out
	var flush func() error
	if isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()) {
		tw := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
		w = tw
		flush = tw.Flush
	}

	fmt.Fprintln(w, "KEY\tTRACE_ID\tCREATED\tSTATEMENTS\tGUARDS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
			e.Key, e.TraceID, e.CreatedAt.Format(time.RFC3339), len(e.Statements), len(e.Guards))
	}
	if flush != nil {
		return flush()
	}
	return nil
}
