// Command evaluate runs the evaluation engine over a directory of
// transcript JSON files without a server or queue, for offline analysis
// of exported call batches.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/config"
	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/evaluation"
)

func main() {
	dir := flag.String("dir", "", "directory of transcript JSON files")
	out := flag.String("out", "", "optional path for the JSON report")
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "usage: evaluate -dir <transcripts> [-out report.json]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	log := logrus.New()
	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	transcripts, err := evaluation.LoadDir(*dir)
	if err != nil {
		log.Fatalf("load transcripts: %v", err)
	}
	if len(transcripts) == 0 {
		log.Fatalf("no transcripts found in %s", *dir)
	}

	analyzer := evaluation.NewAnalyzer(&cfg.Guardrail, &cfg.Worker, log)
	report, err := analyzer.Analyze(context.Background(), transcripts)
	if err != nil {
		log.Fatalf("analyze: %v", err)
	}

	fmt.Print(evaluation.Render(report))

	if *out != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			log.Fatalf("marshal report: %v", err)
		}
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			log.Fatalf("write report: %v", err)
		}
		log.WithField("path", *out).Info("report written")
	}
}
