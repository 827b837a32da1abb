package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aburossi/textboxv2/internal/autosave"
	"github.com/aburossi/textboxv2/internal/backup"
	"github.com/aburossi/textboxv2/internal/export"
	"github.com/aburossi/textboxv2/internal/handler"
	appI18n "github.com/aburossi/textboxv2/internal/i18n"
	"github.com/aburossi/textboxv2/internal/model"
	"github.com/aburossi/textboxv2/internal/store"
	"github.com/aburossi/textboxv2/internal/storekey"
	"github.com/aburossi/textboxv2/internal/submit"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "textbox",
		Short: "Worksheet answer store with export, submission and restore",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), submitCmd(), restoreCmd(), clearCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `textbox --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP answer server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "textbox.db", "SQLite database path")
	f.String("submit-url", "", "Submission endpoint URL (empty disables submission)")
	f.String("quiz-dir", "quizzes", "Directory holding quiz definition JSON files")
	f.Duration("autosave-debounce", 1500*time.Millisecond, "Quiet period before an edit is persisted")
	f.StringP("lang", "l", "de", "UI language (de, en)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export saved answers as a signed JSON envelope",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "textbox.db", "SQLite database path")
	f.String("identifier", "", "Student identifier for the envelope (required)")
	f.String("assignment", "", "Limit the export to one assignment id")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("identifier")

	return cmd
}

func submitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Export saved answers and post them to the submission endpoint",
		RunE:  runSubmit,
	}
	f := cmd.Flags()
	f.String("db", "textbox.db", "SQLite database path")
	f.String("identifier", "", "Student identifier for the envelope (required)")
	f.String("assignment", "", "Limit the submission to one assignment id")
	f.String("submit-url", "", "Submission endpoint URL (required)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("identifier")

	return cmd
}

func restoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <backup-file>",
		Short: "Replace all local data with the contents of a backup file",
		Args:  cobra.ExactArgs(1),
		RunE:  runRestore,
	}
	f := cmd.Flags()
	f.String("db", "textbox.db", "SQLite database path")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func clearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all saved answers, snapshots and attachments",
		RunE:  runClear,
	}
	f := cmd.Flags()
	f.String("db", "textbox.db", "SQLite database path")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
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
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("TEXTBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("textbox")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/textbox")
	v.AddConfigPath("/etc/textbox")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	saver := autosave.New(v.GetDuration("autosave-debounce"), func(u storekey.Unit, html string) {
		if _, err := db.SaveAnswer(u, html); err != nil {
			slog.Error("autosave flush failed", "assignment", u.AssignmentID, "sub", u.SubID, "error", err)
		}
	})
	defer saver.Close()

	agg := export.New(db, saver)
	sub := submit.New(v.GetString("submit-url"))

	cfg := model.ServerConfig{
		SubmitURL:     v.GetString("submit-url"),
		QuizDir:       v.GetString("quiz-dir"),
		AutosaveDelay: v.GetDuration("autosave-debounce"),
		Lang:          lang,
	}
	h := handler.New(db, agg, sub, saver, cfg)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"db", v.GetString("db"),
		"submit_url", cfg.SubmitURL,
		"quiz_dir", cfg.QuizDir,
		"autosave_debounce", cfg.AutosaveDelay,
		"lang", lang,
	)
	return http.ListenAndServe(addr, r)
}

func gatherEnvelope(db *store.Store, identifier, assignmentID string) (*model.ExportEnvelope, error) {
	agg := export.New(db, nil)
	if assignmentID == "" {
		return agg.GatherAll(identifier)
	}
	return agg.GatherAssignment(identifier, assignmentID)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	env, err := gatherEnvelope(db, v.GetString("identifier"), v.GetString("assignment"))
	if err != nil {
		return fmt.Errorf("gather export: %w", err)
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
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

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	env, err := gatherEnvelope(db, v.GetString("identifier"), v.GetString("assignment"))
	if err != nil {
		return fmt.Errorf("gather export: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	result, err := submit.New(v.GetString("submit-url")).Submit(ctx, env)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	slog.Info("submission accepted", "file_name", result.FileName, "download_url", result.DownloadURL)
	fmt.Printf("submitted as %s\n", result.FileName)
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read backup file: %w", err)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := backup.Restore(db, data); err != nil {
		return err
	}
	slog.Info("backup restored", "file", args[0])
	return nil
}

func runClear(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.ClearAll(); err != nil {
		return fmt.Errorf("clear data: %w", err)
	}
	slog.Info("all local data deleted", "db", v.GetString("db"))
	return nil
}
