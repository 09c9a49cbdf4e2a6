// Package pipeline drives the end-to-end package-index build: scraping
// missing packages, classifying ambiguous namespace-package __init__.py
// files, and computing each package's nested common prefixes. The scrape
// and classification stages each run on a fixed-size worker pool; the
// prefix stage runs sequentially.
package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/thejcannon/pypkgmapper/internal/prefixes"
	"github.com/thejcannon/pypkgmapper/internal/scraper"
	"github.com/thejcannon/pypkgmapper/internal/store"
)

// DefaultConcurrency is the number of packages scraped, or wheels
// classified, at once.
const DefaultConcurrency = 20

const (
	scrapeChunkSize    = 100
	namespaceChunkSize = 10
	iterateBatchSize   = 1000
)

// Pipeline wires a Store and a Scraper together behind a bounded worker
// pool and drives the three stages of an index build.
type Pipeline struct {
	Store       *store.Store
	Scraper     *scraper.Scraper
	Concurrency int
	Log         *logrus.Logger
}

// New returns a Pipeline with DefaultConcurrency and a standard logrus
// logger if log is nil.
func New(st *store.Store, sc *scraper.Scraper, log *logrus.Logger) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{Store: st, Scraper: sc, Concurrency: DefaultConcurrency, Log: log}
}

// Run executes all three stages in order: scrape every package in names not
// already indexed, classify every duplicated __init__.py across packages
// as namespace or not, then compute and store nested common prefixes for
// every package's now-disambiguated filepaths.
func (p *Pipeline) Run(ctx context.Context, names []string) error {
	normalized := make([]string, len(names))
	pos := make(map[string]int, len(names))
	for i, name := range names {
		n := scraper.Normalize(name)
		normalized[i] = n
		pos[n] = i + 1
	}

	if err := p.scrapeStage(ctx, normalized, pos); err != nil {
		return fmt.Errorf("pipeline: scrape stage: %w", err)
	}

	if err := p.namespaceStage(ctx); err != nil {
		return fmt.Errorf("pipeline: namespace stage: %w", err)
	}

	if err := p.prefixStage(ctx); err != nil {
		return fmt.Errorf("pipeline: prefix stage: %w", err)
	}

	return nil
}

func (p *Pipeline) scrapeStage(ctx context.Context, normalized []string, pos map[string]int) error {
	missing, err := p.Store.MissingPackages(ctx, normalized)
	if err != nil {
		return err
	}

	p.Log.Infof("launching %d scrape tasks", len(missing))

	for _, chunk := range chunked(missing, scrapeChunkSize) {
		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(p.Concurrency)

		for _, name := range chunk {
			name := name
			group.Go(func() error {
				return p.processPackage(groupCtx, name, pos[name])
			})
		}

		if err := group.Wait(); err != nil {
			return err
		}
	}

	return nil
}

// processPackage scrapes one package and records it. A package with no
// wheel anywhere is logged and skipped, not treated as a pipeline failure.
func (p *Pipeline) processPackage(ctx context.Context, name string, packagePos int) error {
	info, filepaths, err := p.Scraper.ScrapePackage(ctx, name)
	if err != nil {
		p.Log.WithError(err).Warnf("scraping %s", name)
		return nil
	}
	if info == nil {
		p.Log.Warnf("no suitable wheel found for %s", name)
		return nil
	}

	if err := p.Store.InsertPackage(ctx, store.WheelRecord{
		PackageName:    info.PackageName,
		PackageVersion: info.PackageVersion,
		PackagePos:     packagePos,
		URL:            info.URL,
	}, filepaths); err != nil {
		return fmt.Errorf("storing %s: %w", name, err)
	}

	p.Log.Infof("finished processing %s", name)
	return nil
}

func (p *Pipeline) namespaceStage(ctx context.Context) error {
	dupFilepaths, err := p.Store.DuplicateDunderInits(ctx)
	if err != nil {
		return err
	}

	grouped, err := p.Store.MissingDupFilepathsByURL(ctx, dupFilepaths)
	if err != nil {
		return err
	}

	keys := make([]store.PackageURL, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}

	p.Log.Infof("classifying %d ambiguous __init__.py groups", len(keys))

	for _, chunk := range chunked(keys, namespaceChunkSize) {
		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(p.Concurrency)

		for _, key := range chunk {
			key := key
			group.Go(func() error {
				return p.processDuplicates(groupCtx, key, grouped[key])
			})
		}

		if err := group.Wait(); err != nil {
			return err
		}
	}

	return nil
}

func (p *Pipeline) processDuplicates(ctx context.Context, pu store.PackageURL, filepaths []string) error {
	namespaced, err := p.Scraper.IsExplicitNamespacePackage(ctx, pu.URL, filepaths)
	if err != nil {
		p.Log.WithError(err).Warnf("classifying %s (%s)", pu.PackageName, pu.URL)
		return nil
	}

	isNamespace := make(map[string]bool, len(namespaced))
	for _, fp := range namespaced {
		isNamespace[fp] = true
	}

	for _, fp := range filepaths {
		if err := p.Store.CheckAndStoreNamespacePackage(ctx, pu.PackageName, fp, isNamespace[fp]); err != nil {
			return fmt.Errorf("recording namespace classification for %s: %w", pu.PackageName, err)
		}
	}

	return nil
}

func (p *Pipeline) prefixStage(ctx context.Context) error {
	return p.Store.IterateFilepaths(ctx, iterateBatchSize, func(packageName string, filepaths []string) error {
		filtered := prefixes.FilterNoise(filepaths)
		computed := prefixes.FindNestedCommonPrefixes(filtered)

		if err := p.Store.InsertPackagePrefixes(ctx, packageName, computed); err != nil {
			return fmt.Errorf("storing prefixes for %s: %w", packageName, err)
		}

		return nil
	})
}

// chunked splits items into consecutive slices of at most n elements each.
func chunked[T any](items []T, n int) [][]T {
	if len(items) == 0 {
		return nil
	}

	var chunks [][]T
	for len(items) > 0 {
		end := n
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[:end])
		items = items[end:]
	}

	return chunks
}
