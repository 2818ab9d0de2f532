package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jjenkins/readiness/internal/export"
	"github.com/jjenkins/readiness/internal/model"
	"github.com/jjenkins/readiness/internal/service"
	"github.com/jjenkins/readiness/internal/store"
)

var exportIDs []string
var exportAll bool
var exportFormat string
var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export questionnaire responses to CSV or Excel",
	Long: `Export writes the selected responses, one row per response and one
column per answered question, as a UTF-8 CSV file or an Excel workbook.

Examples:
  # Export two responses as Excel
  ./readiness export --ids 1b4e...,9f2c...

  # Export everything as CSV to a chosen file
  ./readiness export --all --format csv --out responses.csv

  # Write to stdout
  ./readiness export --all --format csv --out -`,
	Run: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringSliceVar(&exportIDs, "ids", nil, "Response IDs to export (comma separated)")
	exportCmd.Flags().BoolVar(&exportAll, "all", false, "Export every stored response")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "xlsx", "Export format: csv or xlsx")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file, - for stdout (defaults to a generated name)")
}

func runExport(cmd *cobra.Command, args []string) {
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		log.Fatalf("Invalid format: %v", err)
	}
	if !exportAll && len(exportIDs) == 0 {
		log.Fatal("Either --ids or --all is required")
	}

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	cfg, logr, db := setup()
	defer db.Close()

	cat := loadCatalog(cfg.CatalogPath)
	responses := service.NewResponseService(store.NewResponseStore(db), cat, logr)

	ids := exportIDs
	if exportAll {
		ids, err = responses.AllResponseIDs(ctx)
		if err != nil {
			log.Fatalf("Failed to list responses: %v", err)
		}
		if len(ids) == 0 {
			log.Println("No responses to export")
			return
		}
	}

	records, err := fetchInBatches(ctx, responses, ids)
	if err != nil {
		if ctx.Err() != nil {
			log.Println("Export cancelled")
			os.Exit(1)
		}
		log.Fatalf("Export failed: %v", err)
	}

	data, err := export.NewExporter(cat, cfg.Location).Export(records, format)
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}

	if exportOut == "-" {
		if _, err := os.Stdout.Write(data); err != nil {
			log.Fatalf("Failed to write export: %v", err)
		}
		return
	}

	out := exportOut
	if out == "" {
		var name string
		if len(records) == 1 {
			name = records[0].BusinessName.String
		}
		out = export.Filename(format, len(records), name, time.Now())
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		log.Fatalf("Failed to write export: %v", err)
	}
	log.Printf("Exported %d responses to %s (%d bytes)", len(records), out, len(data))
}

// fetchInBatches loads records in request order, respecting the export batch limit
func fetchInBatches(ctx context.Context, responses *service.ResponseService, ids []string) ([]model.ResponseRecord, error) {
	var records []model.ResponseRecord
	for start := 0; start < len(ids); start += service.MaxExportBatch {
		end := min(start+service.MaxExportBatch, len(ids))
		batch, err := responses.FetchRecords(ctx, ids[start:end])
		if service.CodeOf(err) == service.ErrorNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, batch...)
	}
	if len(records) == 0 {
		return nil, service.NewNotFoundError("No responses found")
	}
	return records, nil
}
