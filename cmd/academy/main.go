package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/ejwhite7/zendesk-academy/internal/app"
	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	httpapi "github.com/ejwhite7/zendesk-academy/internal/http"
	"github.com/ejwhite7/zendesk-academy/internal/learning/assembler"
	"github.com/ejwhite7/zendesk-academy/internal/learning/generator"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/pointers"
	"github.com/ejwhite7/zendesk-academy/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	cliApp := &cli.App{
		Name:  "academy",
		Usage: "generate courses from help center articles",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API, generation worker and sync scheduler",
				Action: serveAction,
			},
			{
				Name:   "migrate",
				Usage:  "create or update database tables",
				Action: migrateAction,
			},
			{
				Name:  "generate",
				Usage: "generate a course from a knowledge source",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "tenant", Required: true},
					&cli.StringFlag{Name: "source", Required: true, Usage: "knowledge source id"},
					&cli.StringSliceFlag{Name: "article", Usage: "article id (repeatable)"},
					&cli.StringSliceFlag{Name: "section", Usage: "section id (repeatable)"},
					&cli.StringSliceFlag{Name: "category", Usage: "category id (repeatable)"},
					&cli.StringSliceFlag{Name: "label", Usage: "label name (repeatable)"},
					&cli.StringFlag{Name: "title"},
					&cli.StringFlag{Name: "level", Value: generator.DefaultLevel},
					&cli.IntFlag{Name: "max-modules", Value: generator.DefaultMaxModules},
					&cli.IntFlag{Name: "max-lessons", Value: generator.DefaultMaxLessonsPerModule},
					&cli.BoolFlag{Name: "no-assessments"},
				},
				Action: generateAction,
			},
			{
				Name:   "regenerate",
				Usage:  "regenerate an existing course from the articles its lessons cite",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "course", Required: true}},
				Action: regenerateAction,
			},
			{
				Name:   "sync",
				Usage:  "sync a knowledge source's articles",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "source", Required: true}},
				Action: syncAction,
			},
		},
	}
	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "academy: %v\n", err)
		os.Exit(1)
	}
}

func bootstrap(c *cli.Context) (*app.App, *logger.Logger, error) {
	log, err := app.NewLogger()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := app.LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, nil, err
	}
	a, err := app.New(c.Context, log, cfg)
	if err != nil {
		log.Sync()
		return nil, nil, err
	}
	return a, log, nil
}

func serveAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, log, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer a.Close()

	a.Start(ctx)
	log.Info("Server listening", "addr", a.Cfg.HTTPAddr)
	return httpapi.NewServer(a.Cfg.HTTPAddr, a.Router).Run(ctx)
}

func migrateAction(c *cli.Context) error {
	log, err := app.NewLogger()
	if err != nil {
		return err
	}
	defer log.Sync()
	cfg, err := app.LoadConfig(log)
	if err != nil {
		return err
	}
	svc, err := app.OpenDB(cfg, log, true)
	if err != nil {
		return err
	}
	defer svc.Close()
	log.Info("Migrations applied")
	return nil
}

func generateAction(c *cli.Context) error {
	tenantID, err := uuid.Parse(c.String("tenant"))
	if err != nil {
		return fmt.Errorf("--tenant: %w", err)
	}
	sourceID, err := uuid.Parse(c.String("source"))
	if err != nil {
		return fmt.Errorf("--source: %w", err)
	}

	a, _, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := services.WithTrigger(c.Context, types.RunTriggerCLI)
	res, err := a.Services.CourseGeneration.GenerateCourse(ctx, assembler.Request{
		TenantID:          tenantID,
		KnowledgeSourceID: sourceID,
		Title:             c.String("title"),
		Level:             c.String("level"),
		ArticleIDs:        c.StringSlice("article"),
		SectionIDs:        c.StringSlice("section"),
		CategoryIDs:       c.StringSlice("category"),
		LabelNames:        c.StringSlice("label"),
		Options: generator.Options{
			Title:               c.String("title"),
			Level:               c.String("level"),
			MaxModules:          c.Int("max-modules"),
			MaxLessonsPerModule: c.Int("max-lessons"),
			IncludeAssessments:  pointers.Ptr(!c.Bool("no-assessments")),
		},
	})
	return printResult(res, err)
}

func regenerateAction(c *cli.Context) error {
	courseID, err := uuid.Parse(c.String("course"))
	if err != nil {
		return fmt.Errorf("--course: %w", err)
	}
	a, _, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := services.WithTrigger(c.Context, types.RunTriggerCLI)
	res, err := a.Services.CourseGeneration.RegenerateCourse(ctx, courseID)
	return printResult(res, err)
}

func syncAction(c *cli.Context) error {
	sourceID, err := uuid.Parse(c.String("source"))
	if err != nil {
		return fmt.Errorf("--source: %w", err)
	}
	a, _, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := services.WithTrigger(c.Context, types.RunTriggerCLI)
	res, err := a.Services.CourseGeneration.SyncKnowledgeSource(ctx, sourceID)
	return printResult(res, err)
}

// printResult writes the result object to stdout; a failed operation still
// prints its result before the non-zero exit.
func printResult(res any, opErr error) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	return opErr
}
