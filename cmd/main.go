package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"document-qa/internal/config"
	"document-qa/internal/models"
	"document-qa/internal/server"
	"document-qa/internal/tui"
)

const configFilePath = "./configs/config.yaml"

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "document-qa",
	Short: "Ask questions about PDF documents",
	Long: `Index a batch of up to 5 PDFs and chat with them, or classify, summarize
and compare them with a generative model.

Environment variables:
  GEMINI_API_KEY  API key for the generative and embedding endpoints (required
                  unless both providers are ollama)
  LLM_PROVIDER    gemini (default), openai or ollama
  INDEX_BACKEND   memory (default) or postgres
  DATABASE_URL    postgres DSN when INDEX_BACKEND=postgres`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var chatCmd = &cobra.Command{
	Use:   "chat FILE.pdf...",
	Short: "Index PDFs and chat with them in the terminal",
	Args:  cobra.RangeArgs(1, models.MaxBatchFiles),
	RunE:  runChat,
}

var askCmd = &cobra.Command{
	Use:   "ask FILE.pdf...",
	Short: "Answer a single question about PDFs",
	Args:  cobra.RangeArgs(1, models.MaxBatchFiles),
	RunE:  runAsk,
}

var classifyCmd = &cobra.Command{
	Use:   "classify FILE.pdf...",
	Short: "Assign a topic to every PDF",
	Args:  cobra.RangeArgs(1, models.MaxBatchFiles),
	RunE:  runClassify,
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize FILE.pdf...",
	Short: "Summarize one of the PDFs",
	Args:  cobra.RangeArgs(1, models.MaxBatchFiles),
	RunE:  runSummarize,
}

var compareCmd = &cobra.Command{
	Use:   "compare FILE.pdf...",
	Short: "Compare two of the PDFs",
	Args:  cobra.RangeArgs(1, models.MaxBatchFiles),
	RunE:  runCompare,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", configFilePath, "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	askCmd.Flags().StringP("question", "q", "", "question to ask")
	_ = askCmd.MarkFlagRequired("question")
	summarizeCmd.Flags().StringP("document", "d", "", "file name of the document to summarize (defaults to the first)")
	compareCmd.Flags().String("doc1", "", "first document file name")
	compareCmd.Flags().String("doc2", "", "second document file name")
	_ = compareCmd.MarkFlagRequired("doc1")
	_ = compareCmd.MarkFlagRequired("doc2")

	rootCmd.AddCommand(serveCmd, chatCmd, askCmd, classifyCmd, summarizeCmd, compareCmd)
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if debug {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()
}

// loadConfig reads and validates configuration, failing before any work
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	setupLogger(cfg.Log.Level)
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return nil, err
	}
	log.Debug().Str("provider", cfg.LLM.Provider).Str("model", cfg.LLM.Model).
		Str("index", cfg.Index.Backend).Msg("Loaded config")
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(a.newSession, a.analyzer)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.NewRouter(cfg.Server.GinMode),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func runChat(cmd *cobra.Command, args []string) error {
	a, sess, res, err := ingestArgs(cmd.Context(), args)
	if err != nil {
		return err
	}
	defer a.Close()

	names := make([]string, len(res.Documents))
	for i, d := range res.Documents {
		names[i] = d.Name
	}
	summary := fmt.Sprintf("%s (%d fragmentos)", strings.Join(names, ", "), res.Chunks)

	// the TUI owns the terminal
	if !debug {
		zerolog.SetGlobalLevel(zerolog.Disabled)
	}
	m := tui.New(cmd.Context(), sess, summary)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	question, _ := cmd.Flags().GetString("question")

	a, sess, _, err := ingestArgs(cmd.Context(), args)
	if err != nil {
		return err
	}
	defer a.Close()

	answer, err := sess.Ask(cmd.Context(), question)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), answer)
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	a, sess, _, err := ingestArgs(cmd.Context(), args)
	if err != nil {
		return err
	}
	defer a.Close()

	return sess.WithIndex(func(idx models.Index) error {
		results, err := a.analyzer.Classify(cmd.Context(), idx)
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", r.Document, r.Topic)
		}
		return nil
	})
}

func runSummarize(cmd *cobra.Command, args []string) error {
	doc, _ := cmd.Flags().GetString("document")

	a, sess, res, err := ingestArgs(cmd.Context(), args)
	if err != nil {
		return err
	}
	defer a.Close()

	if doc == "" {
		doc = res.Documents[0].Name
	}
	return sess.WithIndex(func(idx models.Index) error {
		summary, err := a.analyzer.Summarize(cmd.Context(), idx, doc)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), summary)
		return nil
	})
}

func runCompare(cmd *cobra.Command, args []string) error {
	doc1, _ := cmd.Flags().GetString("doc1")
	doc2, _ := cmd.Flags().GetString("doc2")
	if doc1 == doc2 {
		return errors.New(models.SameDocumentsMessage)
	}

	a, sess, _, err := ingestArgs(cmd.Context(), args)
	if err != nil {
		return err
	}
	defer a.Close()

	return sess.WithIndex(func(idx models.Index) error {
		comparison, err := a.analyzer.Compare(cmd.Context(), idx, doc1, doc2)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), comparison)
		return nil
	})
}
