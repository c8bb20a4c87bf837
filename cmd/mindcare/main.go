package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/MindCare/internal/analysis"
	"github.com/TobiSchelling/MindCare/internal/config"
	"github.com/TobiSchelling/MindCare/internal/database"
	"github.com/TobiSchelling/MindCare/internal/knowledge"
	"github.com/TobiSchelling/MindCare/internal/mcpserver"
	"github.com/TobiSchelling/MindCare/internal/scl90"
	"github.com/TobiSchelling/MindCare/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	clientID   string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "mindcare",
	Short:   "Mental-health counseling assistant",
	Long:    "MindCare scores SCL-90 questionnaires and answers counseling questions with retrieved knowledge and a local or remote language model.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "init" || cmd.Name() == "version" {
			log.SetFlags(log.LstdFlags)
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		switch {
		case err == nil:
			cfg, err = config.Load(path)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
		case configPath == "":
			cfg = config.Default()
		default:
			return err
		}

		if verbose || strings.EqualFold(cfg.Logging.Level, "DEBUG") {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&clientID, "client", mcpserver.DefaultOwner, "Client id that owns sessions, records and private notes")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(scl90Cmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(knowledgeCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("mindcare", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/mindcare/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure the model provider, classifier and knowledge feeds.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		schema, err := db.SchemaVersion()
		if err != nil {
			return err
		}

		fmt.Printf("Database: %s (schema v%d)\n\n", db.Path(), schema)
		fmt.Println("Counseling:")
		fmt.Printf("  Clients: %d\n", stats.Owners)
		fmt.Printf("  Sessions: %d\n", stats.Sessions)
		fmt.Printf("  Turns: %d\n", stats.Turns)
		fmt.Printf("  SCL-90 records: %d\n", stats.Assessments)
		fmt.Println("\nKnowledge:")
		fmt.Printf("  Shared entries: %d\n", stats.SharedKnowledge)
		fmt.Printf("  Private entries: %d\n", stats.PrivateKnowledge)
		fmt.Printf("  Indexed vectors: %d\n", stats.Vectors)
		fmt.Println("\nCollaborators:")
		fmt.Printf("  Generator: %s (%s)\n", cfg.Generation.Provider, cfg.Generation.Model)
		fmt.Printf("  Classifier: %s\n", cfg.Classifier.Provider)
		fmt.Printf("  Retrieval: %v\n", cfg.Retrieval.Enabled)
		fmt.Printf("  Summary cache: %v\n", cfg.Cache.Enabled)
		return nil
	},
}

// --- serve / mcp commands ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, a.serverServices(), port)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run as an MCP server on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout belongs to the protocol.
		log.SetOutput(os.Stderr)

		a, err := buildApp(context.Background())
		if err != nil {
			return err
		}
		defer a.Close()

		return mcpserver.Serve(mcpserver.New(a.mcpServices(), version, clientID))
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

// --- analyze command ---

var (
	deepThinking bool
	sessionID    string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [text]",
	Short: "Run one counseling turn",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.analyzer.Analyze(ctx, analysis.Request{
			OwnerID:      clientID,
			Text:         strings.Join(args, " "),
			DeepThinking: deepThinking,
			SessionID:    sessionID,
		})
		if res == nil {
			return err
		}

		for i, step := range res.Steps {
			fmt.Printf("Step %d/%d: %s\n", i+1, len(res.Steps), step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		fmt.Printf("\nSession: %s\n", res.SessionID)
		fmt.Printf("Emotion: %s   Risk: %s   Knowledge used: %v\n\n", res.Emotion, res.Risk, res.KnowledgeUsed)
		fmt.Println(res.Advice)
		return err
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&deepThinking, "deep", false, "Use the deep analysis style")
	analyzeCmd.Flags().StringVarP(&sessionID, "session", "s", "", "Continue an existing session")
}

// --- scl90 command ---

var scl90Cmd = &cobra.Command{
	Use:   "scl90",
	Short: "SCL-90 questionnaire",
}

var scl90QuestionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "List the 90 questionnaire items",
	Run: func(cmd *cobra.Command, args []string) {
		for _, q := range scl90.Questions() {
			fmt.Printf("  %2d. %s [%s]\n", q.ID, q.Text, q.Factor.Name())
		}
		fmt.Println("\nScore each item 1 (none) to 5 (severe).")
	},
}

var scl90SubmitCmd = &cobra.Command{
	Use:   "submit [answers.json]",
	Short: "Score and store answers from a JSON file (or - for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		answers, err := readAnswers(args[0])
		if err != nil {
			return err
		}

		ctx := context.Background()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		id, result, err := a.assessments.Submit(ctx, clientID, answers)
		if err != nil {
			return err
		}

		fmt.Printf("Stored record [%d]\n\n", id)
		printResult(result)
		return nil
	},
}

var scl90HistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored questionnaire records",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(context.Background())
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.assessments.History(clientID)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No records yet. Submit one with: mindcare scl90 submit answers.json")
			return nil
		}
		for _, r := range records {
			fmt.Printf("  [%d] %s  total %d  average %.2f\n", r.ID, r.CreatedAt, r.TotalScore, r.AverageScore)
		}
		return nil
	},
}

var scl90ShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a stored questionnaire record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid record ID: %s", args[0])
		}

		a, err := buildApp(context.Background())
		if err != nil {
			return err
		}
		defer a.Close()

		detail, err := a.assessments.Detail(clientID, id)
		if err != nil {
			return err
		}
		if detail == nil {
			return fmt.Errorf("record %d not found", id)
		}
		fmt.Printf("Record [%d] from %s\n\n", detail.ID, detail.CreatedAt)
		printResult(&detail.Result)
		return nil
	},
}

func init() {
	scl90Cmd.AddCommand(scl90QuestionsCmd)
	scl90Cmd.AddCommand(scl90SubmitCmd)
	scl90Cmd.AddCommand(scl90HistoryCmd)
	scl90Cmd.AddCommand(scl90ShowCmd)
}

// readAnswers accepts either a bare id-to-score object or {"answers": {...}}.
func readAnswers(path string) (scl90.AnswerSet, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening answers: %w", err)
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parsing answers: %w", err)
	}
	if nested, ok := raw["answers"].(map[string]any); ok {
		raw = nested
	}
	return scl90.AnswerSet(raw), nil
}

func printResult(r *scl90.Result) {
	fmt.Printf("Total score: %d\n", r.TotalScore)
	fmt.Printf("Average score: %.2f\n", r.AverageScore)
	fmt.Printf("Positive items: %d\n\n", r.PositiveItemsCount)
	fmt.Println("Factors:")
	for _, f := range scl90.Factors() {
		fr := r.FactorResults[f.Key]
		fmt.Printf("  %-8s %.2f (sum %d)\n", fr.Name, fr.MeanScore, fr.RawSum)
	}
	if len(r.AbnormalItems) > 0 {
		fmt.Println("\nAbnormal items:")
		for _, item := range r.AbnormalItems {
			fmt.Printf("  %2d. %s = %d [%s]\n", item.QuestionID, item.QuestionText, item.Score, item.FactorName)
		}
	}
}

// --- sessions command ---

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage counseling sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(context.Background())
		if err != nil {
			return err
		}
		defer a.Close()

		sessions, err := a.sessions.ListSessions(clientID)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions yet. Start one with: mindcare analyze \"...\"")
			return nil
		}
		for _, s := range sessions {
			fmt.Printf("  %s  %s (%d messages, updated %s)\n", s.SessionID, s.Title, s.MessageCount, s.UpdatedAt)
		}
		return nil
	},
}

var sessionsNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Start an empty session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(context.Background())
		if err != nil {
			return err
		}
		defer a.Close()

		created, err := a.sessions.Create(clientID)
		if err != nil {
			return err
		}
		fmt.Println(created.SessionID)
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Print every turn of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(context.Background())
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.sessions.Get(clientID, args[0])
		if err != nil {
			return err
		}
		if s == nil {
			return fmt.Errorf("session %s not found", args[0])
		}
		turns, err := a.sessions.Messages(clientID, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%s (%d messages)\n", s.Title, s.MessageCount)
		for _, t := range turns {
			fmt.Printf("\n[%s] %s / %s\n", t.CreatedAt, t.Emotion, t.RiskLevel)
			fmt.Printf("用户：%s\n", t.UserQuery)
			fmt.Printf("咨询师：%s\n", t.SystemReply)
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete [session-id]",
	Short: "Delete a session and its turns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(context.Background())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.sessions.Delete(clientID, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted session %s\n", args[0])
		return nil
	},
}

var sessionsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every session of the client",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(context.Background())
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.sessions.ClearHistory(clientID)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d sessions\n", n)
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsNewCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsClearCmd)
}

// --- knowledge command ---

var (
	sharedEntry bool
	searchK     int
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Manage the knowledge base",
}

var knowledgeAddCmd = &cobra.Command{
	Use:   "add [title] [content]",
	Short: "Add a private note (or a shared entry with --shared)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		var item *database.KnowledgeItem
		if sharedEntry {
			item, err = a.fusion.AddShared(ctx, args[0], args[1])
		} else {
			item, err = a.fusion.AddPrivate(ctx, clientID, args[0], args[1])
		}
		if err != nil {
			return err
		}
		fmt.Printf("Added %s entry [%d]: %s\n", item.Scope, item.ID, item.Title)
		return nil
	},
}

var knowledgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List shared entries and the client's notes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(context.Background())
		if err != nil {
			return err
		}
		defer a.Close()

		items, err := a.fusion.List(clientID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("Knowledge base is empty. Load the built-in entries with: mindcare knowledge seed")
			return nil
		}
		for _, item := range items {
			fmt.Printf("  [%d] %-7s %s\n", item.ID, item.Scope, item.Title)
		}
		return nil
	},
}

var knowledgeShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print a knowledge entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid knowledge ID: %s", args[0])
		}

		a, err := buildApp(context.Background())
		if err != nil {
			return err
		}
		defer a.Close()

		item, err := a.fusion.Get(clientID, id)
		if err != nil {
			return err
		}
		fmt.Printf("[%d] %s (%s, %s)\n\n%s\n", item.ID, item.Title, item.Scope, item.CreatedAt, item.Content)
		return nil
	},
}

var knowledgeRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove one of the client's notes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid knowledge ID: %s", args[0])
		}

		a, err := buildApp(context.Background())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.fusion.Remove(clientID, id); err != nil {
			if errors.Is(err, knowledge.ErrNotFound) {
				return fmt.Errorf("note %d not found", id)
			}
			return err
		}
		fmt.Printf("Removed note [%d]\n", id)
		return nil
	},
}

var knowledgeSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search shared and private knowledge",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		hits := a.fusion.Search(ctx, clientID, strings.Join(args, " "), searchK)
		if len(hits) == 0 {
			fmt.Println("No results.")
			return nil
		}
		for i, h := range hits {
			fmt.Printf("[%d] %s (%s, distance %.3f)\n    %s\n\n", i+1, h.Title, h.Scope, h.Distance, h.Content)
		}
		return nil
	},
}

var knowledgeSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the built-in shared entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.fusion.Seed(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Seeded %d entries\n", n)
		return nil
	},
}

var importTimeout time.Duration

var knowledgeImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import articles from the configured feeds as shared entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.Knowledge.Feeds) == 0 {
			fmt.Println("No feeds configured under knowledge.feeds.")
			return nil
		}

		ctx := context.Background()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		feeds := make([]knowledge.Feed, len(cfg.Knowledge.Feeds))
		for i, f := range cfg.Knowledge.Feeds {
			feeds[i] = knowledge.Feed{URL: f.URL, Name: f.Name}
		}

		fmt.Println("Importing articles from feeds...")
		result, err := knowledge.NewImporter(a.fusion, importTimeout).Import(ctx, feeds)
		if err != nil {
			return err
		}

		fmt.Println("\nImport complete:")
		fmt.Printf("  Total found: %d\n", result.Found)
		fmt.Printf("  Added: %d\n", result.Added)
		fmt.Printf("  Duplicates skipped: %d\n", result.Duplicates)
		fmt.Printf("  Failed: %d\n", result.Failed)
		return nil
	},
}

func init() {
	knowledgeAddCmd.Flags().BoolVar(&sharedEntry, "shared", false, "Add to the shared partition")
	knowledgeSearchCmd.Flags().IntVarP(&searchK, "top-k", "k", knowledge.DefaultTopK, "Neighbours per partition")
	knowledgeImportCmd.Flags().DurationVar(&importTimeout, "timeout", 30*time.Second, "Per-request fetch timeout")

	knowledgeCmd.AddCommand(knowledgeAddCmd)
	knowledgeCmd.AddCommand(knowledgeListCmd)
	knowledgeCmd.AddCommand(knowledgeShowCmd)
	knowledgeCmd.AddCommand(knowledgeRemoveCmd)
	knowledgeCmd.AddCommand(knowledgeSearchCmd)
	knowledgeCmd.AddCommand(knowledgeSeedCmd)
	knowledgeCmd.AddCommand(knowledgeImportCmd)
}
