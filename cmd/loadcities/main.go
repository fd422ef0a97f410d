// Command loadcities bulk-loads a worldcities gazetteer CSV into the
// indicator store, seeding city names, coordinates, and populations.
//
// Usage:
//
//	go run ./cmd/loadcities -db cities.db -csv resources/worldcities.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/citystat/city-quality-etl/internal/adapter/gazetteer"
	"github.com/citystat/city-quality-etl/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dbPath := flag.String("db", "cities.db", "path to the SQLite database")
	csvPath := flag.String("csv", "", "path to the worldcities CSV file")
	flag.Parse()

	if *csvPath == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -csv")
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	loader := gazetteer.NewLoader(st, logger)

	loaded, err := loader.LoadFile(context.Background(), *csvPath)
	if err != nil {
		return err
	}

	log.Printf("loaded %d cities into %s", loaded, *dbPath)
	return nil
}
