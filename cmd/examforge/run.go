package main

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mkobayashi/examforge/internal/config"
	"github.com/mkobayashi/examforge/internal/exam"
	"github.com/mkobayashi/examforge/internal/geometry"
	"github.com/mkobayashi/examforge/internal/home"
	"github.com/mkobayashi/examforge/internal/pipeline"
	"github.com/mkobayashi/examforge/internal/providers"
	"github.com/mkobayashi/examforge/internal/structurer"
)

var runForce bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process every exam PDF in the input directory",
	Long: `Run walks the input directory, groups PDFs by exam session, and drives
each group through the full pipeline: extraction, reading-order
reconstruction, chunking, structuring, image mapping, answer-key parsing,
integration, and final output assembly.

Completed stages are skipped when their artifacts already exist; use
--force to regenerate everything.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := slog.Default()

		mgr, err := config.NewManager(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg := mgr.Get()

		dir, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := dir.EnsureExists(); err != nil {
			return err
		}

		prov := cfg.ResolvedProvider()
		client, err := providers.NewOpenAICompatClient(providers.OpenAICompatConfig{
			APIKey:  prov.APIKey,
			BaseURL: prov.BaseURL,
			Model:   prov.Model,
			Timeout: prov.Timeout(),
		})
		if err != nil {
			return fmt.Errorf("creating provider client: %w", err)
		}

		svc := structurer.NewService(client, structurer.Config{
			Model:          prov.Model,
			MaxRetries:     prov.MaxRetries,
			RateLimitDelay: prov.RateLimitDelay(),
		}, log)

		registry := pipeline.NewRegistry()
		if err := pipeline.RegisterAll(registry); err != nil {
			return err
		}

		env := &pipeline.Env{
			Home:      dir,
			Chunking:  cfg.Chunking,
			Svc:       svc,
			Extractor: geometry.NewPDFExtractor(log),
			Log:       log,
			Force:     runForce,
		}
		runner := pipeline.NewRunner(registry, env)

		paths, err := dir.ListInputPDFs()
		if err != nil {
			return fmt.Errorf("listing input PDFs: %w", err)
		}
		if len(paths) == 0 {
			log.Info("no PDFs found", "dir", dir.InputDir())
			return nil
		}

		exams := make(map[string][]exam.File)
		for _, p := range paths {
			f := exam.Classify(p)
			exams[f.ExamID] = append(exams[f.ExamID], f)
		}
		ids := make([]string, 0, len(exams))
		for id := range exams {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		var total int
		for _, id := range ids {
			log.Info("processing exam", "exam_id", id, "files", len(exams[id]))
			failures, err := runner.RunExam(cmd.Context(), id, exams[id])
			if err != nil {
				return err
			}
			for _, f := range failures {
				log.Error("stage failed", "exam_id", id, "failure", f.String())
			}
			total += len(failures)
		}

		if total > 0 {
			return fmt.Errorf("%d stage failure(s); see log for details", total)
		}
		log.Info("all exams processed", "exams", len(ids))
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runForce, "force", false, "regenerate artifacts even when they already exist")
}
