package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/restock-forecast/internal/app"
	"github.com/andresuchdata/restock-forecast/internal/config"
	"github.com/andresuchdata/restock-forecast/internal/domain"
	"github.com/andresuchdata/restock-forecast/internal/drive"
	"github.com/andresuchdata/restock-forecast/internal/forecast"
	"github.com/andresuchdata/restock-forecast/internal/repository"
	"github.com/andresuchdata/restock-forecast/internal/service"
	"github.com/andresuchdata/restock-forecast/internal/storage"
	"github.com/andresuchdata/restock-forecast/pkg/logger"
	"github.com/urfave/cli/v2"
)

var sourceTables = []string{
	repository.TableSales,
	repository.TableInventory,
	repository.TableProducts,
	repository.TableStores,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		if exitErr, ok := err.(cli.ExitCoder); ok {
			os.Exit(exitErr.ExitCode())
		}
		logger.Log.Error().Err(err).Msg("forecast: command failed")
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "forecast",
		Usage: "Forecast store demand and report restock alerts",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run the pipeline and print the result envelope",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "retrain",
						Usage: "Retrain the model even when an artifact exists",
					},
					&cli.StringFlag{
						Name:  "today",
						Usage: "First horizon day as YYYY-MM-DD (defaults to the current date)",
					},
				},
				Action: runPipeline,
			},
			{
				Name:   "train",
				Usage:  "Retrain the model on the full sales history and save it",
				Action: trainModel,
			},
			{
				Name:  "pull",
				Usage: "Download source tables into SOURCE_DIR",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "from",
						Usage: "Where to pull from: drive or storage",
						Value: "drive",
					},
					&cli.StringFlag{
						Name:    "folder-id",
						Usage:   "Google Drive folder holding the exports",
						EnvVars: []string{"DRIVE_FOLDER_ID"},
					},
					&cli.StringFlag{
						Name:    "prefix",
						Usage:   "Object key prefix holding the exports",
						Value:   "exports/",
						EnvVars: []string{"STORAGE_SOURCE_PREFIX"},
					},
				},
				Action: pullSources,
			},
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Get()
	if err != nil {
		return nil, err
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

// runPipeline always prints exactly one envelope on stdout; the exit code
// mirrors its success flag.
func runPipeline(c *cli.Context) error {
	envelope := executeRun(c)

	if err := writeJSON(c.App.Writer, envelope); err != nil {
		return err
	}
	if !envelope.Success {
		return cli.Exit("", 1)
	}
	return nil
}

func executeRun(c *cli.Context) domain.Envelope {
	cfg, err := loadConfig()
	if err != nil {
		return domain.NewEnvelope(nil, err)
	}

	req := service.PredictRequest{}
	if raw := c.String("today"); raw != "" {
		today, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return domain.NewEnvelope(nil, fmt.Errorf("invalid --today %q: want YYYY-MM-DD", raw))
		}
		req.Today = today
	}

	a, err := app.New(c.Context, cfg)
	if err != nil {
		return domain.NewEnvelope(nil, err)
	}
	defer a.Close()

	req.Strategy = a.DefaultStrategy()
	if c.Bool("retrain") {
		req.Strategy = forecast.ForceRetrain
	}

	res := service.NewPredictionService(a.Orchestrator, nil).Predict(c.Context, req)
	return res.Envelope
}

func trainModel(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := app.New(c.Context, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Orchestrator.Train(c.Context)
	if err != nil {
		return err
	}
	return writeJSON(c.App.Writer, report)
}

func pullSources(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var paths []string
	switch c.String("from") {
	case "drive":
		if cfg.Drive.CredentialsJSON == "" {
			return fmt.Errorf("GOOGLE_DRIVE_CREDENTIALS_JSON is required to pull from drive")
		}
		svc, err := drive.NewService(c.Context, cfg.Drive.CredentialsJSON)
		if err != nil {
			return err
		}
		paths, err = drive.NewPuller(svc).Pull(c.Context, drive.PullOptions{
			FolderID: c.String("folder-id"),
			DestDir:  cfg.Source.Dir,
			Tables:   sourceTables,
			Progress: c.App.ErrWriter,
		})
		if err != nil {
			return err
		}
	case "storage":
		client, err := storage.New(app.StorageConfig(cfg))
		if err != nil {
			return err
		}
		paths, err = storage.Mirror(c.Context, client, c.String("prefix"), cfg.Source.Dir, sourceTables)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown --from %q: want drive or storage", c.String("from"))
	}

	logger.Log.Info().Int("files", len(paths)).Str("dir", cfg.Source.Dir).Msg("forecast: source tables pulled")
	return writeJSON(c.App.Writer, map[string]interface{}{"files": paths})
}

func writeJSON(w io.Writer, v interface{}) error {
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
