package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"tenderwatch-engine/internal/config"
	"tenderwatch-engine/internal/enrich"
	"tenderwatch-engine/internal/scrape"
	"tenderwatch-engine/internal/scrape/citytable"
	"tenderwatch-engine/internal/scrape/ebid"
	"tenderwatch-engine/internal/scrape/preffeed"
	"tenderwatch-engine/internal/scrape/treeapi"
	"tenderwatch-engine/internal/scrape/types"
	"tenderwatch-engine/internal/scrape/util"
	"tenderwatch-engine/internal/secrets"
	"tenderwatch-engine/internal/store"
)

func main() {
	var (
		cfgPath     = flag.String("config", "", "config file (default: <data-dir>/config.yml, bootstrapped on first run)")
		dataDirFlag = flag.String("data-dir", "", "data directory (default: $TENDERWATCH_DATA_DIR or .)")
		runEnrich   = flag.Bool("enrich", false, "run an enrichment pass over the backlog instead of an aggregation pass")
		enrichBatch = flag.Int("enrich-batch", 0, "override enrich batch size for this invocation")
		setKey      = flag.String("set-gemini-key", "", "store the Gemini API key in the OS keychain and exit")
		cursor      = flag.Int("cursor", 0, "resume offset for the treeapi walk")
	)
	flag.Parse()

	if *setKey != "" {
		if err := secrets.SetGeminiAPIKey(*setKey); err != nil {
			log.Fatalf("store api key: %v", err)
		}
		fmt.Println("gemini api key stored")
		return
	}

	dataDir := *dataDirFlag
	if dataDir == "" {
		dataDir = os.Getenv("TENDERWATCH_DATA_DIR")
	}
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal(err)
	}

	path := *cfgPath
	if path == "" {
		var err error
		path, err = config.EnsureUserConfig(dataDir, filepath.Join("config", "config.yml"))
		if err != nil {
			log.Fatalf("config bootstrap failed: %v", err)
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load failed (%s): %v", path, err)
	}
	cfg, vres := config.NormalizeAndValidate(cfg)
	for _, w := range vres.Warnings {
		log.Printf("[config] warning: %s", w)
	}
	if !vres.OK() {
		for _, e := range vres.Errors {
			log.Printf("[config] error: %s", e)
		}
		os.Exit(1)
	}
	if cfg.App.DataDir == "." {
		cfg.App.DataDir = dataDir
	}

	st := store.Open(filepath.Join(cfg.App.DataDir, cfg.Store.File))
	cache, err := store.OpenDocCache(filepath.Join(cfg.App.DataDir, cfg.Store.DocCache))
	if err != nil {
		log.Fatalf("open doc cache: %v", err)
	}
	defer cache.Close()

	ctx := context.Background()

	if *runEnrich {
		if *enrichBatch > 0 {
			cfg.Enrich.BatchSize = *enrichBatch
		}
		if err := enrichPass(ctx, cfg, st, cache); err != nil {
			log.Fatalf("enrich pass: %v", err)
		}
		return
	}

	if err := aggregationPass(ctx, cfg, st, cache, *cursor); err != nil {
		log.Fatalf("aggregation pass: %v", err)
	}
}

func aggregationPass(ctx context.Context, cfg config.Config, st *store.Store, cache *store.DocCache, cursor int) error {
	limiter := util.NewHostLimiter(cfg.Limiter.RequestsPerSecond, cfg.Limiter.Burst)

	var fetchers []types.Fetcher
	if cfg.Sources.CityTable.Enabled {
		fetchers = append(fetchers, citytable.New(
			citytable.Config{Portals: cfg.Sources.CityTable.Portals}, limiter))
	}
	if cfg.Sources.Feeds.Enabled {
		fetchers = append(fetchers, preffeed.New(
			preffeed.Config{Portals: cfg.Sources.Feeds.Portals}, limiter))
	}
	if cfg.Sources.TreeAPI.Enabled {
		fetchers = append(fetchers, treeapi.New(
			treeapi.Config{Portals: cfg.Sources.TreeAPI.Portals, Cursor: cursor}, limiter))
	}
	if cfg.Sources.Ebid.Enabled {
		fetchers = append(fetchers, ebid.New(
			ebid.Config{Portals: cfg.Sources.Ebid.Portals}, ebid.RodDriverFactory, cache))
	}

	sum, err := scrape.AggregateOnce(ctx, fetchers, st)
	if err != nil {
		return err
	}
	log.Printf("[done] added=%d updated=%d sources=%d", sum.Added, sum.Updated, len(sum.PerSource))
	return nil
}

func enrichPass(ctx context.Context, cfg config.Config, st *store.Store, cache *store.DocCache) error {
	apiKey, err := secrets.GetGeminiAPIKey()
	if err != nil {
		return err
	}
	extractor, err := enrich.NewGeminiExtractor(ctx, apiKey, cfg.Enrich.Model)
	if err != nil {
		return err
	}

	runner := &enrich.Runner{
		Store:        st,
		Cache:        cache,
		Extractor:    extractor,
		BatchSize:    cfg.Enrich.BatchSize,
		Delay:        time.Duration(cfg.Enrich.DelaySeconds) * time.Second,
		MinTextChars: cfg.Enrich.MinTextChars,
	}
	processed, enriched, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	log.Printf("[done] enrich processed=%d enriched=%d", processed, enriched)
	return nil
}
