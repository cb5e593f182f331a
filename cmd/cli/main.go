package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/tinylinks/pkg/app"
	"github.com/wadjakorntonsri/tinylinks/pkg/config"
	"github.com/wadjakorntonsri/tinylinks/pkg/core/domain"
	"github.com/wadjakorntonsri/tinylinks/pkg/logger"
)

const usage = "expected 'check', 'validate', 'export' or 'import' subcommands"

func main() {
	checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	validateCode := validateCmd.String("code", "", "short url of the link to validate")
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importFile := importCmd.String("file", "", "JSON file to import")

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	cfg := config.Load()
	// Logs go to stderr so export output stays clean JSON.
	log := logger.NewWithWriter(zerolog.ConsoleWriter{Out: os.Stderr}, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open link store")
	}
	defer a.Close()

	switch os.Args[1] {
	case "check":
		_ = checkCmd.Parse(os.Args[2:])
		err = doCheck(ctx, a, os.Stdout)
	case "validate":
		_ = validateCmd.Parse(os.Args[2:])
		if *validateCode == "" {
			validateCmd.PrintDefaults()
			os.Exit(1)
		}
		err = doValidate(ctx, a, *validateCode, os.Stdout)
	case "export":
		_ = exportCmd.Parse(os.Args[2:])
		err = doExport(ctx, a, os.Stdout)
	case "import":
		_ = importCmd.Parse(os.Args[2:])
		if *importFile == "" {
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		err = doImport(ctx, a, *importFile)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	if err != nil {
		a.Close()
		log.Fatal().Err(err).Str("command", os.Args[1]).Msg("command failed")
	}
}

// doCheck runs one validation batch, for use from an external cron.
func doCheck(ctx context.Context, a *app.App, out io.Writer) error {
	report, err := a.Checker.RunValidationBatch(ctx)
	if err != nil {
		return err
	}
	return writeJSON(out, report)
}

// doValidate validates one link regardless of its cooldown.
func doValidate(ctx context.Context, a *app.App, code string, out io.Writer) error {
	link, err := a.Repo.GetByShortURL(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to find %q: %w", code, err)
	}
	if err := a.Validator.Validate(ctx, link); err != nil {
		return err
	}
	return writeJSON(out, link)
}

func doExport(ctx context.Context, a *app.App, out io.Writer) error {
	links, err := a.Service.Export(ctx)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if links == nil {
		links = []domain.Link{}
	}
	return writeJSON(out, links)
}

func doImport(ctx context.Context, a *app.App, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var links []domain.Link
	if err := json.NewDecoder(file).Decode(&links); err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}

	imported, skipped, err := a.Service.Import(ctx, links)
	a.Log.Info().Int("imported", imported).Int("skipped", skipped).Msg("import finished")
	return err
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
