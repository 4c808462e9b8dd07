// Command backup exports and restores SIGEF data from the command line.
//
//	backup -export data.json
//	backup -import data.json [-replace]
//	backup -xlsx report.xlsx
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"sigef-backend/internal/config"
	"sigef-backend/internal/repository"
	"sigef-backend/internal/service"
	"sigef-backend/pkg/database"
	"sigef-backend/pkg/logger"
)

var cliActor = service.Actor{ID: "cli", Name: "backup cli"}

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, "text")

	exportPath := flag.String("export", "", "write a JSON backup to this file")
	importPath := flag.String("import", "", "restore a JSON backup from this file")
	replace := flag.Bool("replace", false, "with -import, wipe current data before restoring")
	xlsxPath := flag.String("xlsx", "", "write the spreadsheet export to this file")
	flag.Parse()

	if *exportPath == "" && *importPath == "" && *xlsxPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	db, err := database.ConnectDB(database.Options{Driver: cfg.DBDriver, DSN: cfg.DatabaseURL, MaxOpenConns: 2, MaxIdleConns: 1})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	backups := service.NewBackupService(
		repository.NewProductRepo(db),
		repository.NewSaleRepo(db),
		repository.NewDebtRepo(db),
		db,
		service.Deps{Log: log},
	)

	if *importPath != "" {
		raw, err := os.ReadFile(*importPath)
		if err != nil {
			log.WithError(err).Fatal("failed to read backup")
		}
		var doc service.BackupDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			log.WithError(err).Fatal("backup is not valid JSON")
		}
		result, err := backups.Import(ctx, &doc, *replace, cliActor)
		if err != nil {
			log.WithError(err).Fatal("import failed")
		}
		log.WithField("products", result.Products).
			WithField("sales", result.Sales).
			WithField("debts", result.Debts).
			WithField("replaced", result.Replaced).
			Info("backup imported")
	}

	if *exportPath != "" {
		doc, err := backups.Export(ctx)
		if err != nil {
			log.WithError(err).Fatal("export failed")
		}
		raw, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			log.WithError(err).Fatal("failed to encode backup")
		}
		if err := os.WriteFile(*exportPath, raw, 0o600); err != nil {
			log.WithError(err).Fatal("failed to write backup")
		}
		log.WithField("file", *exportPath).Info("backup exported")
	}

	if *xlsxPath != "" {
		f, err := os.Create(*xlsxPath)
		if err != nil {
			log.WithError(err).Fatal("failed to create spreadsheet file")
		}
		defer f.Close()
		if err := backups.ExportXLSX(ctx, f); err != nil {
			log.WithError(err).Fatal("spreadsheet export failed")
		}
		log.WithField("file", *xlsxPath).Info("spreadsheet exported")
	}
}
