// Package snapshot is the offline snapshot tool. It works directly against
// the object store, so it can inspect and prune snapshots without a running
// server. Export and restore go through the server API, which owns the live
// record data.
package snapshot

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/annosearch/anno/internal/backend"
	"github.com/annosearch/anno/internal/config"
	"github.com/annosearch/anno/internal/dataset"
	"github.com/annosearch/anno/internal/ingest"
	"github.com/annosearch/anno/internal/logging"
	"github.com/annosearch/anno/internal/snapshot"
	"github.com/annosearch/anno/pkg/objectstore"
)

func Run(args []string) {
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	sub := args[0]
	fs := flag.NewFlagSet("snapshot "+sub, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	name := fs.String("dataset", "", "Dataset name")
	id := fs.String("id", "", "Snapshot id")
	fs.Parse(args[1:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *name == "" {
		log.Fatal("-dataset is required")
	}

	store, err := objectstore.New(objectstore.Config{
		Type:      cfg.ObjectStore.Type,
		Endpoint:  cfg.ObjectStore.Endpoint,
		Bucket:    cfg.ObjectStore.Bucket,
		AccessKey: cfg.ObjectStore.AccessKey,
		SecretKey: cfg.ObjectStore.SecretKey,
		Region:    cfg.ObjectStore.Region,
		UseSSL:    cfg.ObjectStore.UseSSL,
		RootPath:  cfg.ObjectStore.RootPath,
	})
	if err != nil {
		log.Fatalf("Failed to initialize object store: %v", err)
	}

	logger := logging.New()
	registry := dataset.NewRegistry(store)
	mem := backend.NewMemory()
	processor := ingest.NewProcessor(registry, mem, ingest.Options{Logger: logger})
	manager := snapshot.NewManager(store, registry, mem, processor, snapshot.Options{
		Prefix:    cfg.Snapshot.GetPrefix(),
		BatchSize: cfg.Snapshot.GetScanPageSize(),
		Logger:    logger,
	})

	ctx := context.Background()
	switch sub {
	case "list":
		manifests, err := manager.List(ctx, *name)
		if err != nil {
			log.Fatalf("List failed: %v", err)
		}
		if len(manifests) == 0 {
			fmt.Printf("No snapshots for dataset %s\n", *name)
			return
		}
		for _, man := range manifests {
			fmt.Printf("%s  records=%d  bytes=%d  created=%s\n",
				man.ID, man.Records, man.DataBytes, man.CreatedAt.Format("2006-01-02T15:04:05Z"))
		}
	case "show":
		if *id == "" {
			log.Fatal("-id is required")
		}
		man, err := manager.Load(ctx, *name, *id)
		if err != nil {
			log.Fatalf("Load failed: %v", err)
		}
		fmt.Printf("snapshot %s\n", man.ID)
		fmt.Printf("  dataset:  %s\n", man.Dataset)
		fmt.Printf("  records:  %d\n", man.Records)
		fmt.Printf("  checksum: %s\n", man.Checksum)
		fmt.Printf("  data key: %s\n", man.DataKey)
		fmt.Printf("  bytes:    %d\n", man.DataBytes)
		fmt.Printf("  created:  %s\n", man.CreatedAt.Format("2006-01-02T15:04:05Z"))
	case "delete":
		if *id == "" {
			log.Fatal("-id is required")
		}
		if err := manager.Delete(ctx, *name, *id); err != nil {
			log.Fatalf("Delete failed: %v", err)
		}
		fmt.Printf("Deleted snapshot %s/%s\n", *name, *id)
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n\n", sub)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage:
  anno snapshot list   -dataset <name> [-config <path>]
  anno snapshot show   -dataset <name> -id <snapshot-id> [-config <path>]
  anno snapshot delete -dataset <name> -id <snapshot-id> [-config <path>]`)
}
