package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/benjaminschreck/go-docfill/pkg/docfill"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

var (
	// Global flags
	configPath string
	logLevel   string
	outputDir  string
	noRender   bool

	// Command flags
	dataPath  string
	tablePath string
	rowCount  int

	cfg    *docfill.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "docfill",
	Short: "docfill - DOCX template assembly with PDF output",
	Long: `docfill fills Word templates with field values and row lists,
inserts large synthesized tables, forces landscape pages and converts the
result to PDF through LibreOffice or a built-in fallback writer.

Generated files are written to a flat output directory under unique names.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath != "" {
			cfg, err = docfill.LoadConfig(configPath)
			if err != nil {
				return err
			}
		} else {
			cfg = docfill.ConfigFromEnvironment()
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if outputDir != "" {
			cfg.OutputDir = outputDir
		}
		if noRender {
			cfg.Render.Enabled = false
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, err = docfill.NewLogger(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		docfill.SetLogger(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// generateCmd binds fields and rows into a template
var generateCmd = &cobra.Command{
	Use:   "generate <template>",
	Short: "Fill a template with field values and table rows",
	Long: `Binds a JSON object of field values and a JSON array of rows into the
template. Rows repeat the {#items}...{/items} region.

Example:
  docfill generate contract.docx --data fields.json --table rows.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gen, tmpl, err := setup(args[0])
		if err != nil {
			return err
		}
		fields, err := readFields(dataPath)
		if err != nil {
			return err
		}
		rows, err := readRows(tablePath)
		if err != nil {
			return err
		}
		res, err := gen.Generate(cmd.Context(), tmpl, fields, rows)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), gen, res)
	},
}

// largeCmd inserts a synthesized table
var largeCmd = &cobra.Command{
	Use:   "large <template>",
	Short: "Insert a synthesized table with many rows",
	Long: `Replaces the <!--TABLE--> marker (or appends before the end of the body)
with a table of random product rows.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gen, tmpl, err := setup(args[0])
		if err != nil {
			return err
		}
		n := rowCount
		if !cmd.Flags().Changed("rows") {
			n = cfg.DefaultLargeRows
		}
		res, err := gen.GenerateLarge(cmd.Context(), tmpl, n)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), gen, res)
	},
}

// landscapeCmd fills a template and forces landscape pages
var landscapeCmd = &cobra.Command{
	Use:   "landscape <template>",
	Short: "Fill a template and turn every page to landscape",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gen, tmpl, err := setup(args[0])
		if err != nil {
			return err
		}
		fields, err := readFields(dataPath)
		if err != nil {
			return err
		}
		res, err := gen.GenerateLandscape(cmd.Context(), tmpl, fields)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), gen, res)
	},
}

// inspectCmd lists the placeholders of a template
var inspectCmd = &cobra.Command{
	Use:   "inspect <template>",
	Short: "List the fields and loops a template uses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tmpl, err := openTemplate(args[0])
		if err != nil {
			return err
		}
		info, err := docfill.Inspect(tmpl, cfg.LoopName)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(info); err != nil {
			return err
		}
		if !info.Valid() {
			return fmt.Errorf("template has %d issue(s)", len(info.Issues))
		}
		return nil
	},
}

// versionCmd shows version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "docfill version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error, off)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output-dir", "o", "", "directory for generated files")
	rootCmd.PersistentFlags().BoolVar(&noRender, "no-render", false, "skip PDF conversion")

	generateCmd.Flags().StringVarP(&dataPath, "data", "d", "", "JSON object of field values (file path or - for stdin)")
	generateCmd.Flags().StringVarP(&tablePath, "table", "t", "", "JSON array of table rows (file path)")
	landscapeCmd.Flags().StringVarP(&dataPath, "data", "d", "", "JSON object of field values (file path or - for stdin)")
	largeCmd.Flags().IntVarP(&rowCount, "rows", "n", 10000, "number of table rows")

	rootCmd.AddCommand(generateCmd, largeCmd, landscapeCmd, inspectCmd, serveCmd, versionCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setup(template string) (*docfill.Generator, *docfill.Package, error) {
	tmpl, err := openTemplate(template)
	if err != nil {
		return nil, nil, err
	}
	gen, err := docfill.NewGenerator(cfg, docfill.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return gen, tmpl, nil
}

// openTemplate loads a template by path, falling back to a name in the
// template directory.
func openTemplate(arg string) (*docfill.Package, error) {
	if _, err := os.Stat(arg); err == nil {
		return docfill.Open(arg)
	} else if !errors.Is(err, fs.ErrNotExist) || strings.ContainsAny(arg, `/\`) {
		return nil, err
	}
	lib := docfill.NewTemplateLibrary(cfg.TemplateDir, docfill.CacheConfig{})
	return lib.Load(filepath.Base(arg))
}

func readInput(path string) ([]byte, error) {
	switch path {
	case "":
		return nil, nil
	case "-":
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func readFields(path string) (docfill.FieldMap, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	return docfill.ParseFields(data)
}

func readRows(path string) ([]docfill.TableRow, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	return docfill.ParseRows(data)
}

func printResult(w io.Writer, gen *docfill.Generator, res *docfill.Result) error {
	fmt.Fprintf(w, "Document: %s\n", filepath.Join(gen.Store().Dir(), res.Document.Name))
	if res.Portable != nil {
		fmt.Fprintf(w, "PDF:      %s (%s)\n", filepath.Join(gen.Store().Dir(), res.Portable.Name), res.Portable.Strategy)
	}
	fmt.Fprintln(w, res.Message)
	return nil
}
