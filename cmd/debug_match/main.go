package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"ftc-sync/core/config"
	"ftc-sync/core/database"
	"ftc-sync/core/reconcile"
	"ftc-sync/core/storage"
	"ftc-sync/core/upstream"
	"ftc-sync/feature/archive"
	"ftc-sync/feature/match"

	"github.com/goccy/go-json"
)

// Prints how one upstream match compares with its persisted row.
//
//	go run ./cmd/debug_match <event-code> <match-number> [season]
func main() {
	if len(os.Args) < 3 {
		log.Fatal("usage: debug_match <event-code> <match-number> [season]")
	}
	eventCode := os.Args[1]
	matchNumber, err := strconv.Atoi(os.Args[2])
	if err != nil {
		log.Fatalf("invalid match number %q: %v", os.Args[2], err)
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal(err)
	}

	scope := reconcile.Scope{Season: cfg.Upstream.Season, EventCode: eventCode}
	if len(os.Args) > 3 {
		if scope.Season, err = strconv.Atoi(os.Args[3]); err != nil {
			log.Fatalf("invalid season %q: %v", os.Args[3], err)
		}
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatal(err)
	}

	adapter := match.NewAdapter(db, upstream.NewClient(&cfg.Upstream, nil), 1, nil)
	ctx := context.Background()
	key := upstream.MatchKey(eventCode, matchNumber)

	fmt.Println("=== Upstream ===")
	records, err := adapter.FetchSnapshot(ctx, scope)
	if err != nil {
		log.Fatal(err)
	}

	var record *match.Record
	for i := range records {
		if adapter.UpstreamKey(records[i]) == key {
			record = &records[i]
			break
		}
	}
	if record == nil {
		fmt.Printf("NOT FOUND upstream: %s (%d matches fetched)\n", key, len(records))
		return
	}
	out, _ := json.MarshalIndent(record, "", "  ")
	fmt.Println(string(out))

	if cfg.Sync.Archive {
		printArchived(ctx, cfg, scope, key)
	}

	fmt.Println("\n=== Database ===")
	index, err := adapter.LoadIndex(ctx, scope)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Persisted matches for %s: %d\n", eventCode, len(index))

	row, ok := index[key]
	if !ok {
		fmt.Printf("NOT FOUND in database: %s would be created\n", key)
	} else {
		diff := adapter.CompareFields(row, *record)
		if len(diff) == 0 {
			fmt.Printf("UNCHANGED: %s (id=%d)\n", key, adapter.PersistedID(row))
		} else {
			fmt.Printf("WOULD UPDATE: %s (id=%d)\n", key, adapter.PersistedID(row))
			for _, d := range diff {
				fmt.Println("  " + d)
			}
		}
	}

	fmt.Println("\n=== References ===")
	m, omissions, err := adapter.Resolve(ctx, *record)
	if err != nil {
		fmt.Printf("SKIPPED: %v\n", err)
		return
	}
	fmt.Printf("event_id=%d participants=%d\n", m.EventID, len(m.Participants))
	for _, o := range omissions {
		fmt.Printf("  omitted %s: %s\n", o.Key, o.Reason)
	}
}

// printArchived shows the match as it appeared in the newest archived snapshot.
func printArchived(ctx context.Context, cfg *config.Config, scope reconcile.Scope, key string) {
	fmt.Println("\n=== Archive ===")
	store, err := storage.NewClient(cfg.Storage)
	if err != nil {
		log.Fatal(err)
	}
	a := archive.New(store, cfg.Storage.Bucket, cfg.Storage.Retain, nil)

	object, found, err := a.Latest(ctx, match.Name, scope)
	if err != nil {
		log.Fatal(err)
	}
	if !found {
		fmt.Println("No archived snapshot for this scope")
		return
	}

	var records []match.Record
	snapshot, err := a.Read(ctx, object, &records)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Snapshot %s (run %s, fetched %s, %d records)\n",
		object, snapshot.RunID, snapshot.FetchedAt.Format(time.RFC3339), snapshot.Count)

	for _, r := range records {
		if r.Key() == key {
			out, _ := json.MarshalIndent(r, "", "  ")
			fmt.Println(string(out))
			return
		}
	}
	fmt.Printf("NOT FOUND in snapshot: %s\n", key)
}
