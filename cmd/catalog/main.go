package main

import (
	"fmt"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jrsteele09/go-catalog-client/api"
	"github.com/jrsteele09/go-catalog-client/catalog"
	"github.com/jrsteele09/go-catalog-client/internal/apitest"
	"github.com/jrsteele09/go-catalog-client/internal/config"
	"github.com/jrsteele09/go-catalog-client/session"
	"github.com/jrsteele09/go-catalog-client/storage"
	"github.com/jrsteele09/go-catalog-client/storage/filestore"
	"github.com/jrsteele09/go-catalog-client/storage/memstore"
)

var demoMode bool

func main() {
	_ = godotenv.Load()
	setupLogging()

	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func setupLogging() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("ENV") == "DEV" || os.Getenv("ENV") == "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if os.Getenv("DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "catalog",
		Short:         "Terminal client for the Book Catalog / Script Labs API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&demoMode, "demo", false, "run against a built-in in-memory API with seeded demo data")

	root.AddCommand(
		newLoginCmd(),
		newRegisterCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newListCmd(),
		newSearchCmd(),
		newAddCmd(),
		newUpdateCmd(),
		newRemoveCmd(),
		newWatchCmd(),
	)
	return root
}

// app wires the SDK the way a browser tab would: one shared state file per
// "origin", credentials and sync keys living side by side in it.
type app struct {
	cfg     config.Config
	store   storage.KV
	creds   *session.KVCredentials
	client  *api.Client
	sess    *session.Store
	books   *catalog.Cache[catalog.Book]
	scripts *catalog.Cache[catalog.Script]

	cleanup func()
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if demoMode {
		return newDemoApp(cfg)
	}

	store := filestore.New(cfg.GetStateFile(), filestore.WithPollInterval(cfg.GetSyncPollInterval()))
	creds := session.NewKVCredentials(store)

	clientOpts := []api.Option{api.WithTokenSource(creds)}
	if path := cfg.GetCSRFInitPath(); path != "" {
		clientOpts = append(clientOpts, api.WithCSRF(path))
	}
	client := api.New(cfg.GetBaseURL(), clientOpts...)

	return buildApp(cfg, store, creds, client, store.Close)
}

// newDemoApp runs the process against an in-memory fake API, pre-seeded and
// already signed in, so every command works without a real server.
func newDemoApp(cfg config.Config) (*app, error) {
	srv := apitest.New()
	srv.SeedUser("demo@example.com", "demo123")
	srv.SeedItem("books", map[string]any{"_id": "book-1", "title": "Dune", "author": "Frank Herbert"})
	srv.SeedItem("books", map[string]any{"_id": "book-2", "title": "Hyperion", "author": "Dan Simmons"})
	srv.SeedItem("scripts", map[string]any{"_id": "script-1", "title": "Nightly Backup", "description": "rsync to cold storage"})

	store := memstore.NewHub().Tab()
	creds := session.NewKVCredentials(store)
	creds.Save(&session.User{ID: "demo-user", Email: "demo@example.com"}, srv.SeedToken("demo@example.com"))

	client := api.New(srv.URL(), api.WithTokenSource(creds))
	log.Info().Str("url", srv.URL()).Msg("demo mode: using built-in in-memory API")
	return buildApp(cfg, store, creds, client, srv.Close)
}

func buildApp(cfg config.Config, store storage.KV, creds *session.KVCredentials, client *api.Client, cleanup func()) (*app, error) {
	sess, err := session.New(client, creds)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		store:  store,
		creds:  creds,
		client: client,
		sess:   sess,
		books: catalog.New(
			catalog.NewService[catalog.Book](client, "/api/books"),
			catalog.WithEpochSource[catalog.Book](sess),
		),
		scripts: catalog.New(
			catalog.NewService[catalog.Script](client, "/api/scripts"),
			catalog.WithEpochSource[catalog.Script](sess),
		),
		cleanup: cleanup,
	}, nil
}

func (a *app) close() {
	if a.cleanup != nil {
		a.cleanup()
	}
}

func loadConfig() (config.Config, error) {
	if path := os.Getenv("CATALOG_CONFIG"); path != "" {
		return config.LoadFile(path)
	}
	return config.New(), nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
