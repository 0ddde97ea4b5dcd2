package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pavelanni/autograder/internal/answers"
	"github.com/pavelanni/autograder/internal/batch"
	"github.com/pavelanni/autograder/internal/extract"
	"github.com/pavelanni/autograder/internal/extract/ocr"
	"github.com/pavelanni/autograder/internal/grading"
	"github.com/pavelanni/autograder/internal/handler"
	appI18n "github.com/pavelanni/autograder/internal/i18n"
	"github.com/pavelanni/autograder/internal/llm"
	"github.com/pavelanni/autograder/internal/llm/prompts"
	"github.com/pavelanni/autograder/internal/model"
	"github.com/pavelanni/autograder/internal/report"
	"github.com/pavelanni/autograder/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "autograder",
		Short:        "Multiple-choice exam grader",
		SilenceUsage: true,
	}

	serve := serveCmd()
	root.AddCommand(serve, gradeCmd(), parseKeyCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	f.String("log-file", "", "Also write logs to this file, rotated by size")
}

func addExtractFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("strategy", string(extract.StrategyAuto), "Extraction strategy ("+strings.Join(extract.StrategyNames(), ", ")+")")
	f.Int("max-pages", extract.DefaultMaxPages, "Pages read from each document")
	f.Int("concurrency", 4, "Documents processed at once")
	f.Int("retries", 2, "Retries for a failed extraction")
	f.Bool("ocr", false, "Enable Tesseract OCR for scanned pages")
	f.String("ocr-lang", "spa+eng", "Tesseract language codes")
	f.String("llm-url", "", "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for the model endpoint")
	f.String("llm-model", "", "Model name; the model oracle is disabled when empty")
	f.Float64("llm-rps", 1, "Maximum model requests per second (0 = unlimited)")
	f.String("prompt-variant", string(prompts.PromptSpanish), "Detection prompt language (es, en)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the grading web server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "autograder.db", "SQLite database path")
	f.StringP("lang", "l", "es", "UI language (en, es)")
	f.Float64("pass-mark", grading.DefaultPassMark, "Minimum passing score on the 0-20 scale")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /grader)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.Int64("max-upload-mb", 200, "Maximum upload size per request in megabytes")
	f.StringSlice("cors-origins", nil, "Origins allowed to call the JSON API (default any)")
	f.String("admin-password", "", "Initial admin password (or set AUTOGRADER_ADMIN_PASSWORD)")
	addExtractFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade [flags] FILE...",
		Short: "Grade exam files from the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runGrade,
	}
	f := cmd.Flags()
	f.String("course", "", "Course name (required)")
	f.String("code", "", "Course code (required)")
	f.StringP("key", "k", "", `Answer key, e.g. "1:a, 2:d, 3:e" (required)`)
	f.IntP("total", "n", 0, "Total questions (0 = size of the key)")
	f.Float64("pass-mark", grading.DefaultPassMark, "Minimum passing score on the 0-20 scale")
	f.StringP("lang", "l", "es", "Report language (en, es)")
	f.String("pdf", "", "Write a PDF report to this path (a directory gets the default name)")
	f.String("xlsx", "", "Write an Excel report to this path (a directory gets the default name)")
	f.String("json", "", "Write the results as JSON to this path (- for stdout)")
	f.String("db", "", "Also save the session to this SQLite database")
	addExtractFlags(cmd)
	addLogFlags(cmd)

	_ = cmd.MarkFlagRequired("course")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func parseKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse-key KEY",
		Short: "Show how an answer key is read",
		Args:  cobra.ExactArgs(1),
		RunE:  runParseKey,
	}
	cmd.Flags().Bool("json", false, "Print the mapping as JSON")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored grading sessions as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "autograder.db", "SQLite database path")
	f.String("session", "", "Export only this session ID")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	if path := v.GetString("log-file"); path != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}

	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(out, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(out, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("AUTOGRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("autograder")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/autograder")
	v.AddConfigPath("/etc/autograder")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// extractConfig builds the OCR engine and model client the flags ask for.
// Either stays nil when it is not configured or not usable.
func extractConfig(ctx context.Context, v *viper.Viper) (extract.Config, error) {
	cfg := extract.Config{MaxPages: v.GetInt("max-pages")}

	if v.GetBool("ocr") {
		o := extract.NewOCR(ocr.NewTesseract(v.GetString("ocr-lang")), cfg.MaxPages)
		if err := o.Available(); err != nil {
			slog.Warn("OCR disabled", "error", err)
		} else {
			cfg.OCR = o
		}
	}

	if v.GetString("llm-model") == "" && v.GetString("llm-url") == "" {
		return cfg, nil
	}

	variant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
	if !prompts.IsValidVariant(variant) {
		slog.Warn("invalid prompt-variant, using es", "variant", variant)
		variant = string(prompts.PromptSpanish)
	}
	client, err := llm.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("llm-model"),
		llm.WithPromptVariant(prompts.PromptVariant(variant)),
		llm.WithRateLimit(v.GetFloat64("llm-rps"), 1),
	)
	if err != nil {
		return cfg, fmt.Errorf("create LLM client: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		slog.Warn("LLM endpoint unavailable, model oracle disabled", "url", v.GetString("llm-url"), "error", err)
		return cfg, nil
	}
	slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
	cfg.Oracle = client
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	exCfg, err := extractConfig(ctx, v)
	if err != nil {
		return err
	}

	cfg := model.GradingConfig{
		PassMark:      v.GetFloat64("pass-mark"),
		Strategy:      v.GetString("strategy"),
		Concurrency:   v.GetInt("concurrency"),
		Retries:       v.GetInt("retries"),
		BasePath:      v.GetString("base-path"),
		SecureCookies: v.GetBool("secure-cookies"),
		MaxUploadSize: v.GetInt64("max-upload-mb") << 20,
		CORSOrigins:   v.GetStringSlice("cors-origins"),
	}
	h, err := handler.New(db, exCfg, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	go cleanupAuthSessions(ctx, db)

	srv := &http.Server{
		Addr:              v.GetString("addr"),
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("starting server",
		"addr", srv.Addr,
		"lang", lang,
		"strategy", cfg.Strategy,
		"pass_mark", cfg.PassMark,
		"ocr", exCfg.OCR != nil,
		"llm", exCfg.Oracle != nil,
		"base_path", cfg.BasePath,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server stopped")
	return nil
}

func cleanupAuthSessions(ctx context.Context, db *store.Store) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := db.CleanupExpiredSessions(); err != nil {
				slog.Warn("failed to clean up auth sessions", "error", err)
			}
		}
	}
}

func runGrade(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	ctx := appI18n.WithLanguage(cmd.Context(), lang)

	form := model.SessionForm{
		CourseName:     v.GetString("course"),
		CourseCode:     v.GetString("code"),
		AnswerKey:      v.GetString("key"),
		TotalQuestions: v.GetInt("total"),
		PassMark:       v.GetFloat64("pass-mark"),
		Strategy:       v.GetString("strategy"),
		Documents:      len(args),
	}
	if err := form.Validate(); err != nil {
		return fmt.Errorf("invalid input (%s): %w", strings.Join(model.InvalidFields(err), ", "), err)
	}

	exCfg, err := extractConfig(ctx, v)
	if err != nil {
		return err
	}
	strategy, err := extract.ParseStrategy(form.Strategy)
	if err != nil {
		return err
	}
	ex, err := extract.New(strategy, exCfg)
	if err != nil {
		return err
	}

	docs := make([]extract.Document, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		docs = append(docs, extract.NewDocument(filepath.Base(path), data))
	}

	gs := grading.NewSession(
		grading.Course{Name: form.CourseName, Code: form.CourseCode},
		form.AnswerKey, form.TotalQuestions, form.PassMark,
	)
	gs.Strategy = string(strategy)

	runner := batch.New(ex,
		batch.WithConcurrency(v.GetInt("concurrency")),
		batch.WithRetries(v.GetInt("retries")),
		batch.WithStrategy(string(strategy)),
	)
	progress := func(done, total int) {
		slog.Info("graded", "done", done, "total", total)
	}
	if _, err := runner.Run(ctx, gs, docs, progress); err != nil {
		return fmt.Errorf("grade: %w", err)
	}

	if err := printResults(cmd.OutOrStdout(), gs); err != nil {
		return err
	}

	now := time.Now()
	if path := v.GetString("pdf"); path != "" {
		if err := writeReport(reportPath(path, gs.Course.Code, now, "pdf"), func(w io.Writer) error {
			return report.PDF(ctx, w, gs, now)
		}); err != nil {
			return err
		}
	}
	if path := v.GetString("xlsx"); path != "" {
		if err := writeReport(reportPath(path, gs.Course.Code, now, "xlsx"), func(w io.Writer) error {
			return report.XLSX(ctx, w, gs)
		}); err != nil {
			return err
		}
	}
	if path := v.GetString("json"); path != "" {
		if err := writeJSON(path, model.NewSessionExport(gs)); err != nil {
			return err
		}
	}

	if dbPath := v.GetString("db"); dbPath != "" {
		db, err := store.New(dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := db.SaveSession(gs, 0); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		slog.Info("saved session", "id", gs.ID, "db", dbPath)
	}
	return nil
}

func printResults(w io.Writer, gs *grading.Session) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tFILE\tCORRECT\tINCORRECT\tSCORE\tNOTE")
	for i, sh := range gs.Ranked() {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%.2f\t%s\n",
			i+1, sh.Name, sh.Result.Correct, sh.Result.Incorrect, sh.Result.Score, sh.Error)
	}
	sum := gs.Summary()
	fmt.Fprintf(tw, "\nsheets: %d\tmean: %.2f\tpassed: %d\tfailed: %d\n", sum.Count, sum.Mean, sum.Passed, sum.Failed)
	return tw.Flush()
}

// reportPath resolves an output flag: an existing directory receives the
// default report name.
func reportPath(path, code string, now time.Time, ext string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(path, report.Filename(code, now, ext))
	}
	return path
}

func writeReport(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := render(f); err != nil {
		f.Close()
		return fmt.Errorf("render %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	slog.Info("wrote report", "path", path)
	return nil
}

func writeJSON(outPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	return nil
}

func runParseKey(cmd *cobra.Command, args []string) error {
	m := answers.Parse(args[0])
	if len(m) == 0 {
		return errors.New("no answers found in key")
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}
	fmt.Fprintln(out, m.String())
	fmt.Fprintf(out, "%d questions\n", len(m))
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if id := v.GetString("session"); id != "" {
		exp, err := db.ExportSession(id)
		if err != nil {
			return fmt.Errorf("export session: %w", err)
		}
		if exp == nil {
			return fmt.Errorf("session %s not found", id)
		}
		return writeJSON(v.GetString("output"), exp)
	}

	all, err := db.ExportAllSessions()
	if err != nil {
		return fmt.Errorf("export sessions: %w", err)
	}
	return writeJSON(v.GetString("output"), all)
}

func seedAdmin(db *store.Store, password string) error {
	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or AUTOGRADER_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
