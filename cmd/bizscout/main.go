package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TobiSchelling/bizscout/internal/config"
	"github.com/TobiSchelling/bizscout/internal/database"
	"github.com/TobiSchelling/bizscout/internal/logging"
	"github.com/TobiSchelling/bizscout/internal/niches"
	"github.com/TobiSchelling/bizscout/internal/pipeline"
	"github.com/TobiSchelling/bizscout/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	flushLogs  = func() {}
)

func main() {
	err := rootCmd.Execute()
	flushLogs()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "bizscout",
	Short:   "Local business intelligence from maps listings",
	Long:    "bizscout discovers local businesses, profiles their websites and Instagram accounts, and scores them with an LLM.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return eris.Wrap(err, "loading .env")
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return eris.Wrap(err, "loading config")
		}

		_, flush, err := logging.New(cfg.Logging.Level, verbose)
		if err != nil {
			return err
		}
		flushLogs = flush
		if path == "" {
			zap.L().Debug("no config file found; using built-in defaults")
		} else {
			zap.L().Debug("loaded config", zap.String("path", path))
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(nichesCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(businessesCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("bizscout", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/bizscout/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return eris.Wrap(err, "creating config directory")
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return eris.Wrap(err, "writing config")
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Set GROQ_API_KEY in your environment or a .env file to enable scoring.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "getting stats")
		}

		fmt.Printf("Database: %s (%s)\n\n", db.Path(), db.Driver())
		fmt.Println("Businesses:")
		fmt.Printf("  Total: %d\n", stats.Businesses)
		fmt.Printf("  With website: %d\n", stats.WithWebsite)
		fmt.Printf("  With Instagram: %d\n", stats.WithInstagram)
		fmt.Printf("  Analysed: %d\n", stats.WithAnalysis)
		fmt.Printf("  Websites graded: %d\n", stats.Graded)
		fmt.Println("\nCoverage:")
		fmt.Printf("  Runs: %d\n", stats.Runs)
		fmt.Printf("  Niches: %d\n", stats.Niches)
		return nil
	},
}

var nichesCmd = &cobra.Command{
	Use:   "niches",
	Short: "List the niche catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}
		for _, key := range catalog.Keys() {
			n, _ := catalog.Lookup(key)
			fmt.Printf("  %-16s %s (searches %q)\n", key, n.Label, catalog.SearchTerm(key))
		}
		return nil
	},
}

// --- run command ---

var (
	runNiche    string
	runLocation string
	runMax      int
	runNoSave   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Discover and analyse businesses, printing the batch as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		catalog, err := loadCatalog()
		if err != nil {
			return err
		}

		var db *database.DB
		if !runNoSave {
			db, err = openDB()
			if err != nil {
				return err
			}
			defer db.Close()
		}

		p := pipeline.New(cfg, db, catalog)
		result, err := p.Run(ctx, pipeline.Request{Niche: runNiche, Location: runLocation, MaxResults: runMax})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runNiche, "niche", "", "Niche key from the catalog, or free text")
	runCmd.Flags().StringVar(&runLocation, "location", "", "Location to search, e.g. \"Austin, TX\"")
	runCmd.Flags().IntVar(&runMax, "max", pipeline.DefaultResults, "Maximum businesses to analyse (1-50)")
	runCmd.Flags().BoolVar(&runNoSave, "no-save", false, "Do not persist results")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and web index",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		catalog, err := loadCatalog()
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}

		srv, err := server.New(pipeline.New(cfg, db, catalog), db, catalog)
		if err != nil {
			return err
		}

		fmt.Printf("Starting server at http://%s\n", cfg.Addr())
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, srv, cfg.Addr())
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 5000, "Port to run server on")
}

// --- businesses command ---

var businessesCmd = &cobra.Command{
	Use:   "businesses",
	Short: "Inspect stored businesses",
}

var (
	listNiche string
	listLimit int
)

var businessesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored businesses",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		items, err := db.ListBusinesses(cmd.Context(), listNiche, listLimit)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No businesses stored. Run one with: bizscout run --niche medspas --location \"Austin, TX\"")
			return nil
		}

		for _, b := range items {
			tier := "-"
			if b.Analysis != nil && b.Analysis.EstimatedRevenueTier != nil {
				tier = *b.Analysis.EstimatedRevenueTier
			}
			niche := ""
			if b.Niche != nil {
				niche = *b.Niche
			}
			fmt.Printf("  [%d] %-40s %-12s tier: %s\n", b.ID, b.Name, niche, tier)
		}
		return nil
	},
}

var businessesShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print one stored business as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, id, err := openWithID(args[0])
		if err != nil {
			return err
		}
		defer db.Close()

		b, err := db.GetBusiness(cmd.Context(), id)
		if err != nil {
			return err
		}
		if b == nil {
			return eris.Errorf("business %d not found", id)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(b)
	},
}

var businessesRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a stored business and its children",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, id, err := openWithID(args[0])
		if err != nil {
			return err
		}
		defer db.Close()

		b, err := db.GetBusiness(cmd.Context(), id)
		if err != nil {
			return err
		}
		if b == nil {
			return eris.Errorf("business %d not found", id)
		}

		if err := db.DeleteBusiness(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Removed business [%d]: %s\n", id, b.Name)
		return nil
	},
}

func init() {
	businessesListCmd.Flags().StringVar(&listNiche, "niche", "", "Only list this niche")
	businessesListCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum rows (0 for all)")

	businessesCmd.AddCommand(businessesListCmd)
	businessesCmd.AddCommand(businessesShowCmd)
	businessesCmd.AddCommand(businessesRemoveCmd)
}

func openWithID(arg string) (*database.DB, int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return nil, 0, eris.Errorf("invalid business ID: %s", arg)
	}
	db, err := openDB()
	if err != nil {
		return nil, 0, err
	}
	return db, id, nil
}

func openDB() (*database.DB, error) {
	if cfg.Database.Driver == config.DriverPostgres {
		dsn := cfg.DatabaseDSN()
		if dsn == "" {
			return nil, eris.Errorf("database.driver is postgres but %s is not set", cfg.Database.DSNEnv)
		}
		return database.OpenPostgres(dsn)
	}
	return database.Open(cfg.DatabasePath())
}

func loadCatalog() (*niches.Catalog, error) {
	if cfg.Niches.Path == "" {
		return niches.Default(), nil
	}
	return niches.Load(cfg.Niches.Path)
}
