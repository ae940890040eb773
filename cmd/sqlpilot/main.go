package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sqlpilot/internal/config"
	"sqlpilot/internal/db"
	"sqlpilot/internal/engine"
	"sqlpilot/internal/generate"
	"sqlpilot/internal/metrics"
	"sqlpilot/internal/report"
	"sqlpilot/internal/runner"
	"sqlpilot/internal/schema"
	"sqlpilot/internal/uploader"
	"sqlpilot/internal/util"

	"gopkg.in/yaml.v3"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	question := flag.String("question", "", "answer a single question and exit")
	questionsFile := flag.String("questions", "", "file with one question per line (- for stdin)")
	flag.Parse()

	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	util.SetDetail(cfg.Logging.Verbose)
	util.Infof("starting sqlpilot (model %s, max %d attempts)", cfg.Generator.Model, cfg.Correction.MaxAttempts)
	if data, err := yaml.Marshal(&cfg); err == nil {
		util.Highlightf("config:\n%s", string(data))
	}

	questions, err := loadQuestions(*question, *questionsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read questions: %v\n", err)
		os.Exit(1)
	}
	if len(questions) == 0 {
		fmt.Fprintln(os.Stderr, "no questions given: use -question or -questions")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, questions); err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, questions []string) error {
	conn, err := db.Open(ctx, &cfg)
	if err != nil {
		return err
	}
	defer util.CloseWithErr(conn, "database")

	snap, err := schema.Extract(ctx, conn)
	if err != nil {
		return err
	}
	util.Infof("schema loaded: %s", snap.Summary())

	gen, err := generate.NewGemini(ctx, cfg.Generator, conn.Dialect)
	if err != nil {
		return err
	}

	up, err := uploader.FromConfig(cfg.Storage)
	if err != nil {
		return err
	}

	stats := engine.NewStats()
	stopStats := stats.StartLogger(time.Duration(cfg.Logging.ReportIntervalSeconds) * time.Second)
	defer stopStats()

	eng := engine.New(conn, cfg.Execution, stats)
	met := runner.NewMetrics()

	var reporter *report.Reporter
	if cfg.Reports.Enabled {
		reporter = report.New(cfg.Reports.OutputDir, cfg.Reports.MaxRowsPerAttempt)
		reporter.Archive = cfg.Reports.Archive
	}

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.ListenAddr, metrics.NewCollector(), metrics.Sources{
			Runner: met,
			Engine: stats,
			Pool:   conn,
		})
		go func() {
			if err := srv.Start(); err != nil {
				util.Errorf("metrics server: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Stop(shutdownCtx)
		}()
	}

	r := runner.New(cfg, gen, eng, runner.StaticResolver(snap), met, reporter, up)
	for i, q := range questions {
		if ctx.Err() != nil {
			util.Warnf("interrupted after %d of %d questions", i, len(questions))
			break
		}
		res := r.Run(ctx, q)
		printResult(res)
	}
	met.Log()
	met.Check(cfg.Logging.Metrics)
	return ctx.Err()
}

// loadQuestions merges the single -question flag and the -questions file.
// Blank lines and # comments in the file are skipped.
func loadQuestions(single, path string) ([]string, error) {
	questions := make([]string, 0, 8)
	if strings.TrimSpace(single) != "" {
		questions = append(questions, strings.TrimSpace(single))
	}
	if path == "" {
		return questions, nil
	}

	var reader io.Reader
	if path == "-" {
		reader = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer util.CloseWithErr(f, "questions file")
		reader = f
	}
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		questions = append(questions, line)
	}
	return questions, scanner.Err()
}

func printResult(res runner.Result) {
	if !res.Succeeded {
		util.Errorf("FAILED %q: %s", util.Truncate(res.Question, 80), res.FailureText())
		return
	}
	util.Highlightf("ANSWER %q (%d attempt(s), %d row(s))", util.Truncate(res.Question, 80), res.Attempts, res.Outcome.RowCount)
	fmt.Println(strings.Join(res.Outcome.Columns, "\t"))
	for _, row := range res.Outcome.Rows {
		fmt.Println(strings.Join(row, "\t"))
	}
}
