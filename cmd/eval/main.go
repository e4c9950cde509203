package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v2"

	"github.com/kirillkom/assessment-recommender/internal/bootstrap"
	"github.com/kirillkom/assessment-recommender/internal/config"
	"github.com/kirillkom/assessment-recommender/internal/core/domain"
	"github.com/kirillkom/assessment-recommender/internal/core/usecase"
	"github.com/kirillkom/assessment-recommender/internal/infrastructure/evaldata"
	"github.com/kirillkom/assessment-recommender/internal/observability/logging"
)

const serviceName = "eval"

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		slog.Error("eval_failed", "error", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:  "eval",
		Usage: "Score the recommendation pipeline against labelled queries",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "Labelled queries, .csv or .xlsx",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "k",
				Usage: "Cutoff for Recall@k and AP@k",
				Value: usecase.DefaultEvalK,
			},
			&cli.IntFlag{
				Name:  "rrf-k",
				Usage: "Reciprocal rank fusion constant",
				Value: usecase.DefaultEvalRRFK,
			},
			&cli.IntFlag{
				Name:  "candidate-limit",
				Usage: "Fused candidates sent to the reranker",
				Value: usecase.DefaultEvalCandidateLimit,
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write the per-query JSON report to this path",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
		},
		Action: func(c *cli.Context) error {
			return evaluate(c, out)
		},
	}
}

func evaluate(c *cli.Context, out io.Writer) error {
	logger := logging.NewJSONLoggerTo(os.Stderr, serviceName, c.String("log-level"))
	slog.SetDefault(logger)

	cases, err := evaldata.Load(c.String("data"))
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	k := c.Int("k")
	settings := usecase.EvalRetrievalSettings(k)
	settings.RRFK = c.Int("rrf-k")
	settings.CandidateLimit = c.Int("candidate-limit")

	app, err := bootstrap.NewServing(c.Context, cfg, serviceName, logger, bootstrap.WithRetrievalSettings(settings))
	if err != nil {
		return err
	}

	report, err := usecase.NewEvaluateUseCase(app.Recommender, logger).Evaluate(c.Context, cases, k)
	if err != nil {
		return err
	}

	if path := c.String("report"); path != "" {
		if err := writeReport(path, report); err != nil {
			return err
		}
	}
	printSummary(out, report)
	return nil
}

func printSummary(out io.Writer, report *domain.EvalReport) {
	fmt.Fprintf(out, "queries:       %d\n", report.Queries)
	fmt.Fprintf(out, "mean recall@%d: %.4f\n", report.K, report.MeanRecall)
	fmt.Fprintf(out, "map@%d:         %.4f\n", report.K, report.MAP)
}

func writeReport(path string, report *domain.EvalReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
