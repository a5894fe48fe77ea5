package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/ridewise/navcore/internal/config"
	"github.com/ridewise/navcore/internal/segment"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "inspect":
		handleInspect()
	case "sweep":
		handleSweep()
	case "clear":
		handleClear()
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// openStore parses any flags already registered on fs plus the shared
// --store flag, then opens the store over a file backend.
func openStore(fs *flag.FlagSet) *segment.Store {
	storePath := fs.String("store", "segments.json", "Path to the segment store file")
	fs.Parse(os.Args[2:])
	return segment.NewStore(segment.NewFileBackend(*storePath), config.DefaultConfig().Segment, nil, nil)
}

func handleInspect() {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	store := openStore(fs)

	ids := store.IDs()
	if len(ids) == 0 {
		fmt.Println("Store is empty")
		return
	}

	sort.Slice(ids, func(i, j int) bool {
		if ids[i].RouteFingerprint != ids[j].RouteFingerprint {
			return ids[i].RouteFingerprint < ids[j].RouteFingerprint
		}
		return ids[i].Index < ids[j].Index
	})

	fmt.Printf("%d records:\n", len(ids))
	var current uint64
	for _, id := range ids {
		if id.RouteFingerprint != current {
			current = id.RouteFingerprint
			fmt.Printf("route %016x:\n", current)
		}
		rec, ok := store.Read(id)
		if !ok {
			continue
		}
		fmt.Printf("  step %-3d quality=%.2f roughness=%.2f freshness=%.2f updated=%s\n",
			id.Index, rec.Quality, rec.Roughness, rec.Freshness,
			rec.UpdatedAt.Format(time.RFC3339))
	}
}

func handleSweep() {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	store := openStore(fs)

	updated := store.Sweep()
	if err := store.Flush(); err != nil {
		fmt.Printf("Error persisting store: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Swept %d of %d records\n", updated, store.Len())
}

func handleClear() {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	confirm := fs.Bool("yes", false, "Actually clear the store")
	store := openStore(fs)

	if !*confirm {
		fmt.Printf("Store holds %d records. Re-run with --yes to clear.\n", store.Len())
		return
	}

	store.ClearAll()
	if err := store.Flush(); err != nil {
		fmt.Printf("Error persisting store: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Store cleared")
}

func printUsage() {
	fmt.Println("test-segment-store - Segment store maintenance")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  inspect   List stored records with decayed freshness")
	fmt.Println("  sweep     Materialize freshness decay and persist")
	fmt.Println("  clear     Remove all records (requires --yes)")
	fmt.Println("  help      Show this help")
}
