// Command lexicored is a thin CLI demonstrating the lexicon substrate
// end to end: save a corpus, build its search indices, query it, and
// stream a progress-tracked pipeline run. Grounded on teacher's
// cmd/ds/ds.go urfave/cli/v2 App/Command/Flag structure (persistent
// --data-dir flag, Before/After hooks opening and closing the backing
// store).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"lexicore/blobstore"
	"lexicore/codec"
	"lexicore/config"
	"lexicore/corpus"
	"lexicore/dedup"
	"lexicore/embedding"
	"lexicore/logging"
	"lexicore/model"
	"lexicore/pipeline"
	"lexicore/providers"
	"lexicore/registry"
	"lexicore/search"
	"lexicore/semantic"
	"lexicore/trie"
	"lexicore/version"
)

const defaultDataDir = "./lexicore-data"

// app bundles every wired component the subcommands share.
type app struct {
	cfg        *config.Config
	versions   *version.Store
	corpora    *corpus.Store
	tries      *trie.Store
	semantics  *semantic.Store
	facade     *search.Facade
	providers  *providers.Store
	literature *providers.LiteratureStore
	registry   *registry.Registry
	cleanup    func()
}

func setupApp(dataDir string) (*app, error) {
	cfg := config.Default()
	cfg.BlobRootDir = filepath.Join(dataDir, "blobs")
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("lexicored: invalid config: %w", err)
	}

	log, err := logging.New(logging.Development, "info")
	if err != nil {
		return nil, fmt.Errorf("lexicored: build logger: %w", err)
	}

	blobs, err := blobstore.New(cfg.BlobRootDir, log)
	if err != nil {
		return nil, fmt.Errorf("lexicored: open blobstore: %w", err)
	}
	cdc, err := codec.New(int(cfg.CompressionThresholdBytes))
	if err != nil {
		return nil, fmt.Errorf("lexicored: build codec: %w", err)
	}

	vcfg := version.Config{
		InlineThresholdBytes: int(cfg.InlineThresholdBytes),
		L1Size:               cfg.L1MaxSizePerNamespace,
		L1TTL:                cfg.L1TTL(),
		L2TTL:                cfg.L2TTL(),
	}
	vs, err := version.Open(context.Background(), filepath.Join(dataDir, "meta.db"), blobs, cdc, vcfg, log)
	if err != nil {
		return nil, fmt.Errorf("lexicored: open version store: %w", err)
	}

	corpora := corpus.New(vs, corpusDependents)
	tries := trie.NewStore(vs)
	mdl := embedding.NewHashing("hashing-default", 64)
	semantics := semantic.NewStore(vs, blobs, mdl)

	gate := dedup.New(0)
	facade := search.New(corpora, tries, semantics, vs, gate, search.Config{
		StrongScoreThreshold: cfg.StrongScoreThreshold,
		EnableSemantic:       true,
		Model:                mdl,
	}, log)

	provStore := providers.NewStore(vs, gate)
	litStore := providers.NewLiteratureStore(vs, gate)
	reg := registry.Default()

	return &app{
		cfg:        cfg,
		versions:   vs,
		corpora:    corpora,
		tries:      tries,
		semantics:  semantics,
		facade:     facade,
		providers:  provStore,
		literature: litStore,
		registry:   reg,
		cleanup:    func() { vs.Close() },
	}, nil
}

// corpusDependents declares the trie/semantic/search index chains that
// must be deleted alongside a corpus under cascade delete (spec §4.5).
func corpusDependents(corpusID string) []model.ResourceKey {
	return []model.ResourceKey{
		{Type: model.ResourceTrie, ID: corpusID},
		{Type: model.ResourceSemantic, ID: corpusID},
		{Type: model.ResourceSearch, ID: corpusID},
	}
}

var appKey = "lexicored.app"

func main() {
	cliApp := &cli.App{
		Name:  "lexicored",
		Usage: "save, index, search, and stream a lexicon corpus",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Value:   defaultDataDir,
				Usage:   "data directory for the version store and blobstore",
				EnvVars: []string{"LEXICORED_DATA_DIR"},
			},
		},
		Before: func(c *cli.Context) error {
			a, err := setupApp(c.String("data-dir"))
			if err != nil {
				return err
			}
			c.App.Metadata[appKey] = a
			return nil
		},
		After: func(c *cli.Context) error {
			if a, ok := c.App.Metadata[appKey].(*app); ok {
				a.cleanup()
			}
			return nil
		},
		Commands: []*cli.Command{
			saveCorpusCommand(),
			buildIndexCommand(),
			searchCommand(),
			streamCommand(),
			fetchWordCommand(),
			fetchLiteratureCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func appFrom(c *cli.Context) *app {
	return c.App.Metadata[appKey].(*app)
}

func saveCorpusCommand() *cli.Command {
	return &cli.Command{
		Name:  "save-corpus",
		Usage: "save a corpus from a JSON vocabulary array",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Required: true, Usage: "corpus id"},
			&cli.StringFlag{Name: "name", Usage: "corpus name", Value: "unnamed"},
			&cli.StringFlag{Name: "vocabulary", Required: true, Usage: "path to a JSON array of words"},
		},
		Action: func(c *cli.Context) error {
			raw, err := os.ReadFile(c.String("vocabulary"))
			if err != nil {
				return fmt.Errorf("save-corpus: read vocabulary file: %w", err)
			}
			var words []string
			if err := json.Unmarshal(raw, &words); err != nil {
				return fmt.Errorf("save-corpus: parse vocabulary JSON: %w", err)
			}

			normalized := make([]string, len(words))
			for i, w := range words {
				normalized[i] = corpus.Normalize(w)
			}

			corp := &model.Corpus{
				CorpusID:           c.String("id"),
				CorpusName:         c.String("name"),
				CorpusType:         model.CorpusLexicon,
				Vocabulary:         normalized,
				OriginalVocabulary: words,
			}

			saved, err := appFrom(c).corpora.Save(c.Context, corp)
			if err != nil {
				return fmt.Errorf("save-corpus: %w", err)
			}
			fmt.Printf("saved corpus %q: %d words, vocabulary_hash=%s\n", saved.CorpusID, len(saved.Vocabulary), saved.VocabularyHash)
			return nil
		},
	}
}

// buildIndexCommand rebuilds the search tiers for one or more corpora
// concurrently (errgroup, bounded by the flag count — there is no
// artificial cap since each corpus build is I/O- and CPU-bound
// independently, matching spec §5's "CPU-heavy work is offloaded to a
// worker pool").
func buildIndexCommand() *cli.Command {
	return &cli.Command{
		Name:  "build-index",
		Usage: "build (or rebuild) the search index for one or more corpora",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "corpus", Required: true, Usage: "corpus id (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			a := appFrom(c)
			ids := c.StringSlice("corpus")

			g, ctx := errgroup.WithContext(c.Context)
			for _, id := range ids {
				id := id
				g.Go(func() error {
					corp, err := a.corpora.Get(ctx, id)
					if err != nil {
						return fmt.Errorf("build-index: load corpus %s: %w", id, err)
					}
					if corp == nil {
						return fmt.Errorf("build-index: corpus %s not found", id)
					}
					if _, err := a.tries.Build(ctx, corp.CorpusID, corp.VocabularyHash, corp.Vocabulary, corp.OriginalVocabulary, corp.WordFrequencies); err != nil {
						return fmt.Errorf("build-index: trie for %s: %w", id, err)
					}
					if _, err := a.semantics.Build(ctx, corp.CorpusID, corp.VocabularyHash, corp.Vocabulary, corp.LemmatizedVocabulary); err != nil {
						return fmt.Errorf("build-index: semantic for %s: %w", id, err)
					}
					fmt.Printf("built index for corpus %q\n", id)
					return nil
				})
			}
			return g.Wait()
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "search a corpus",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "corpus", Required: true},
			&cli.StringFlag{Name: "query", Required: true},
			&cli.StringFlag{Name: "hint", Value: search.HintAuto, Usage: "exact|prefix|fuzzy|semantic|auto|hybrid"},
			&cli.IntFlag{Name: "max-results", Value: 10},
			&cli.Float64Flag{Name: "min-score", Value: 0},
		},
		Action: func(c *cli.Context) error {
			results, err := appFrom(c).facade.Search(c.Context, c.String("corpus"), c.String("query"), c.String("hint"), c.Int("max-results"), c.Float64("min-score"))
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			out, _ := json.MarshalIndent(results, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
}

// fetchWordCommand demonstrates the provider connector interface (spec
// §6): a --entries file maps words to opaque JSON payloads, standing in
// for a real scraper/API provider, fetched and persisted through the
// same dedup-gated Store used by any production Provider.
func fetchWordCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch-word",
		Usage: "fetch a word through a stub provider and persist the result",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "provider", Value: "static-demo"},
			&cli.StringFlag{Name: "entries", Required: true, Usage: "path to a JSON object of word -> payload"},
			&cli.StringFlag{Name: "word", Required: true},
		},
		Action: func(c *cli.Context) error {
			raw, err := os.ReadFile(c.String("entries"))
			if err != nil {
				return fmt.Errorf("fetch-word: read entries file: %w", err)
			}
			var payloads map[string]json.RawMessage
			if err := json.Unmarshal(raw, &payloads); err != nil {
				return fmt.Errorf("fetch-word: parse entries JSON: %w", err)
			}

			entries := make(map[string]*providers.Entry, len(payloads))
			for word, payload := range payloads {
				entries[word] = &providers.Entry{Payload: payload}
			}
			p := providers.NewStatic(c.String("provider"), entries)

			entry, err := appFrom(c).providers.Fetch(c.Context, p, c.String("word"))
			if err != nil {
				return fmt.Errorf("fetch-word: %w", err)
			}
			if entry == nil {
				fmt.Printf("no entry for %q (or previously recorded as failed)\n", c.String("word"))
				return nil
			}
			out, _ := json.MarshalIndent(entry, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
}

// fetchLiteratureCommand demonstrates the literature provider chain (spec
// §6 generalized to model.ResourceLiterature): fetches a public-domain work
// by its Project Gutenberg catalog number through providers.GutenbergConnector
// and persists it through the same dedup-gated LiteratureStore a bulk
// import job would use.
func fetchLiteratureCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch-literature",
		Usage: "fetch a Gutenberg work by catalog id and persist it",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "work-id", Required: true, Usage: "Project Gutenberg catalog number, e.g. 1342"},
		},
		Action: func(c *cli.Context) error {
			conn := providers.NewGutenbergConnector(nil)
			entry, err := appFrom(c).literature.Fetch(c.Context, conn, c.String("work-id"))
			if err != nil {
				return fmt.Errorf("fetch-literature: %w", err)
			}
			if entry == nil {
				fmt.Printf("no work found for id %q (or previously recorded as failed)\n", c.String("work-id"))
				return nil
			}
			fmt.Printf("fetched %q (work_id=%s, provider=%s)\n", entry.Title, entry.WorkID, entry.Provider)
			return nil
		},
	}
}

// streamCommand runs a small demo pipeline (corpus lookup -> index
// resolve -> search) with progress streamed as newline-delimited JSON,
// matching spec §4.11's event stream.
func streamCommand() *cli.Command {
	return &cli.Command{
		Name:  "stream",
		Usage: "run a search as a progress-streamed pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "corpus", Required: true},
			&cli.StringFlag{Name: "query", Required: true},
		},
		Action: func(c *cli.Context) error {
			a := appFrom(c)
			tracker := pipeline.NewStateTracker("search", map[model.PipelineStage]int{
				model.StageStart:             5,
				model.StageSearchStart:       10,
				model.StageProviderFetchStart: 25,
				model.StageComplete:          100,
			})

			process := func(ctx context.Context) (any, error) {
				tracker.UpdateStage(model.StageStart, "", nil)
				tracker.UpdateStage(model.StageSearchStart, "", nil)
				results, err := a.facade.Search(ctx, c.String("corpus"), c.String("query"), search.HintAuto, 10, 0)
				if err != nil {
					return nil, err
				}
				tracker.UpdateComplete("search finished")
				return results, nil
			}

			events := pipeline.CreateStreamingResponse(c.Context, tracker, process, pipeline.StreamOptions{
				IncludeStageDefinitions: true,
				IncludeCompletionData:   true,
				HeartbeatInterval:       a.cfg.HeartbeatInterval(),
				StreamTimeout:           a.cfg.StreamTimeout(),
			}, nil)

			enc := json.NewEncoder(os.Stdout)
			for ev := range events {
				if err := enc.Encode(ev); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
