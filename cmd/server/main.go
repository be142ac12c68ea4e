package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/katakuxiko/docqa/internal/api"
	"github.com/katakuxiko/docqa/internal/config"
	"github.com/katakuxiko/docqa/internal/eval"
	"github.com/katakuxiko/docqa/internal/pdf"
	"github.com/katakuxiko/docqa/internal/service"
	"github.com/katakuxiko/docqa/internal/store"
	"github.com/katakuxiko/docqa/internal/util"
)

var (
	cfgPath string
	debug   bool
)

// app bundles the wired components shared by every subcommand.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	llm      *service.LLMClient
	rag      *service.RAGService
	ingestor *service.Ingestor
}

func setup() (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Debug = true
	}
	log, err := util.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	opener, err := store.NewOpener(cfg.Index)
	if err != nil {
		return nil, err
	}
	loader, err := pdf.NewLoader(cfg.Ingest, log)
	if err != nil {
		return nil, err
	}
	llm := service.NewLLMClient(cfg.LLM)
	return &app{
		cfg:      cfg,
		log:      log,
		llm:      llm,
		rag:      service.NewRAGService(cfg, llm, llm, opener, log),
		ingestor: service.NewIngestor(loader, llm, opener, log),
	}, nil
}

func main() {
	root := &cobra.Command{
		Use:           "docqa",
		Short:         "Question answering over ingested PDF documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP service",
			Args:  cobra.NoArgs,
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "ingest <file.pdf>...",
			Short: "Ingest PDF files into the vector index",
			Args:  cobra.MinimumNArgs(1),
			RunE:  runIngest,
		},
		&cobra.Command{
			Use:   "query <question>",
			Short: "Answer a question from the indexed documents",
			Args:  cobra.MinimumNArgs(1),
			RunE:  runQuery,
		},
		newEvalCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.log.Sync()

	srv := api.NewApp(a.cfg.Server.MaxUploadMB, a.log)
	api.RegisterRoutes(srv, api.NewHandler(a.rag, a.ingestor, a.llm, a.cfg.Server.UploadDir, a.log))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		a.log.Info("server started",
			zap.String("addr", a.cfg.Server.Addr),
			zap.String("index_backend", a.cfg.Index.Backend),
			zap.String("model", a.cfg.LLM.Model))
		errc <- srv.Listen(a.cfg.Server.Addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.ShutdownWithContext(shutdownCtx)
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.log.Sync()

	for _, path := range args {
		n, err := a.ingestor.Ingest(cmd.Context(), path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Successfully ingested %d chunks from %s\n", n, path)
	}
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.log.Sync()

	answer, err := a.rag.Answer(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), answer)
	return nil
}

func newEvalCommand() *cobra.Command {
	var casesPath, outPath string
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score answers against question and ground-truth pairs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.log.Sync()

			cases := eval.DefaultCases
			if casesPath != "" {
				if cases, err = eval.LoadCases(casesPath); err != nil {
					return err
				}
			}
			results := eval.Run(cmd.Context(), a.rag, a.llm, cases, a.log)
			s := eval.Summarize(results)
			fmt.Fprintf(cmd.OutOrStdout(), "context_recall=%.4f context_precision=%.4f answer_recall=%.4f faithfulness=%.4f answer_relevancy=%.4f\n",
				s.ContextRecall, s.ContextPrecision, s.AnswerRecall, s.Faithfulness, s.AnswerRelevancy)
			if err := eval.Write(outPath, results); err != nil {
				return fmt.Errorf("save results: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Results saved to %s\n", outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&casesPath, "cases", "", "YAML file with question/ground_truth cases")
	cmd.Flags().StringVar(&outPath, "out", "evaluation_results.csv", "output file (.csv or .xlsx)")
	return cmd
}
