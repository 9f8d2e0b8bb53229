package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/engramkit/engram/pkg/memory"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Manage the typed memory store",
	Long: `Add, recall, and manage typed memory records.

Records carry a type (preference, habit, constraint, ...), a key, and
lifecycle metadata. Recall is cosine similarity over hashing TF-IDF
embeddings; smart-forget applies exponential decay to importance.

Examples:
  engram memory add --key "preference:color" --value '{"raw":"blue"}' --index
  engram memory search --query "favorite color" --limit 5
  engram memory learn --messages conversation.json
  engram memory forget --user u1
  engram memory stats`,
}

var memoryAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a memory record",
	RunE:  runMemoryAdd,
}

var memoryGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one record by id",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryGet,
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List records for a user",
	RunE:  runMemoryList,
}

var memorySearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Semantic search over records",
	RunE:  runMemorySearch,
}

var memoryLearnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Extract memories from a conversation file",
	RunE:  runMemoryLearn,
}

var memoryForgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Run a decay-based cleanup pass",
	RunE:  runMemoryForget,
}

var memoryReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "List records whose retention is fading",
	RunE:  runMemoryReview,
}

var memoryConsolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Collapse duplicate records for a key",
	RunE:  runMemoryConsolidate,
}

var memoryPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove expired records",
	RunE:  runMemoryPurge,
}

var memoryFeedbackCmd = &cobra.Command{
	Use:   "feedback <id>",
	Short: "Record positive or negative feedback on a record",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryFeedback,
}

var memoryImportanceCmd = &cobra.Command{
	Use:   "importance <id>",
	Short: "Show the importance breakdown of a record",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryImportance,
}

var memoryExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export records as JSON or CSV",
	RunE:  runMemoryExport,
}

var memoryImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import records from a JSON export",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryImport,
}

var memoryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics",
	RunE:  runMemoryStats,
}

func init() {
	rootCmd.AddCommand(memoryCmd)
	memoryCmd.AddCommand(memoryAddCmd)
	memoryCmd.AddCommand(memoryGetCmd)
	memoryCmd.AddCommand(memoryListCmd)
	memoryCmd.AddCommand(memorySearchCmd)
	memoryCmd.AddCommand(memoryLearnCmd)
	memoryCmd.AddCommand(memoryForgetCmd)
	memoryCmd.AddCommand(memoryReviewCmd)
	memoryCmd.AddCommand(memoryConsolidateCmd)
	memoryCmd.AddCommand(memoryPurgeCmd)
	memoryCmd.AddCommand(memoryFeedbackCmd)
	memoryCmd.AddCommand(memoryImportanceCmd)
	memoryCmd.AddCommand(memoryExportCmd)
	memoryCmd.AddCommand(memoryImportCmd)
	memoryCmd.AddCommand(memoryStatsCmd)

	// Add flags
	memoryAddCmd.Flags().String("key", "", "Record key (required)")
	memoryAddCmd.Flags().String("value", "", "Record value as JSON")
	memoryAddCmd.Flags().String("type", "", "Record type (preference, habit, constraint, ...)")
	memoryAddCmd.Flags().String("priority", "", "Priority (high, medium, low)")
	memoryAddCmd.Flags().String("source-question", "", "Question that produced this memory")
	memoryAddCmd.Flags().String("expires-at", "", "RFC3339 expiry timestamp")
	memoryAddCmd.Flags().Bool("index", false, "Also index the record for semantic search")

	// Search flags
	memorySearchCmd.Flags().String("query", "", "Query text (required)")
	memorySearchCmd.Flags().Int("limit", 5, "Maximum results")

	// List flags
	memoryListCmd.Flags().String("type", "", "Filter by type")
	memoryListCmd.Flags().String("key", "", "Filter by key")
	memoryListCmd.Flags().Bool("active", false, "Only active records")

	// Learn flags
	memoryLearnCmd.Flags().String("messages", "", "JSON file with [{role, content}, ...] (required)")
	memoryLearnCmd.Flags().Bool("index", false, "Also index learned records for semantic search")

	// Forget flags
	memoryForgetCmd.Flags().String("type", "", "Restrict the pass to one type")

	// Consolidate flags
	memoryConsolidateCmd.Flags().String("key", "", "Key to consolidate (required)")

	// Feedback flags
	memoryFeedbackCmd.Flags().Bool("negative", false, "Record negative instead of positive feedback")

	// Export flags
	memoryExportCmd.Flags().String("format", "json", "Export format (json, csv)")
	memoryExportCmd.Flags().String("out", "", "Output file (default stdout)")

	// Import flags
	memoryImportCmd.Flags().Bool("index", false, "Re-index imported records for semantic search")
}

func printJSON(v interface{}) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}

func runMemoryAdd(cmd *cobra.Command, args []string) error {
	key, _ := cmd.Flags().GetString("key")
	if key == "" {
		return fmt.Errorf("--key is required")
	}
	value, _ := cmd.Flags().GetString("value")
	typ, _ := cmd.Flags().GetString("type")
	priority, _ := cmd.Flags().GetString("priority")
	sourceQuestion, _ := cmd.Flags().GetString("source-question")
	expiresAt, _ := cmd.Flags().GetString("expires-at")
	index, _ := cmd.Flags().GetBool("index")
	if !cmd.Flags().Changed("index") {
		index = viper.GetBool("memory.index")
	}

	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	input := memory.AddInput{
		UserID:         userID(),
		Type:           memory.Type(typ),
		Key:            key,
		SourceQuestion: sourceQuestion,
		ExpiresAt:      expiresAt,
		Priority:       memory.Priority(priority),
	}
	if value != "" {
		if !json.Valid([]byte(value)) {
			return fmt.Errorf("--value must be valid JSON")
		}
		input.Value = json.RawMessage(value)
	}

	var rec *memory.Record
	if index {
		rec, err = eng.store.AddWithVector(cmd.Context(), input)
	} else {
		rec, err = eng.store.Add(input)
	}
	if err != nil {
		return err
	}
	printJSON(rec)
	return nil
}

func runMemoryGet(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	rec := eng.store.Get(args[0])
	if rec == nil {
		return fmt.Errorf("no record with id %q", args[0])
	}
	printJSON(rec)
	return nil
}

func runMemoryList(cmd *cobra.Command, args []string) error {
	typ, _ := cmd.Flags().GetString("type")
	key, _ := cmd.Flags().GetString("key")
	active, _ := cmd.Flags().GetBool("active")

	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	records := eng.store.ForUser(userID(), memory.Filter{
		Type:       memory.Type(typ),
		Key:        key,
		ActiveOnly: active,
	})
	printJSON(records)
	return nil
}

func runMemorySearch(cmd *cobra.Command, args []string) error {
	query, _ := cmd.Flags().GetString("query")
	if query == "" {
		return fmt.Errorf("--query is required")
	}
	limit, _ := cmd.Flags().GetInt("limit")

	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	hits, err := eng.store.SemanticSearch(cmd.Context(), query, limit)
	if err != nil {
		return err
	}
	printJSON(hits)
	return nil
}

func runMemoryLearn(cmd *cobra.Command, args []string) error {
	if !viper.GetBool("memory.auto_learn") {
		return fmt.Errorf("conversation extraction is disabled (memory.auto_learn)")
	}
	path, _ := cmd.Flags().GetString("messages")
	if path == "" {
		return fmt.Errorf("--messages is required")
	}
	index, _ := cmd.Flags().GetBool("index")
	if !cmd.Flags().Changed("index") {
		index = viper.GetBool("memory.index")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read messages: %w", err)
	}
	var messages []memory.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return fmt.Errorf("parse messages: %w", err)
	}

	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	var learned []memory.Record
	if index {
		learned, err = eng.store.AutoLearn(cmd.Context(), messages, userID())
	} else {
		learned, err = eng.store.Learn(messages, userID())
	}
	if err != nil {
		return err
	}
	printJSON(learned)
	return nil
}

func runMemoryForget(cmd *cobra.Command, args []string) error {
	typ, _ := cmd.Flags().GetString("type")

	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	plan, err := eng.store.SmartForget(cmd.Context(), userID(), memory.Type(typ))
	if err != nil {
		return err
	}
	printJSON(plan)
	return nil
}

func runMemoryReview(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	printJSON(eng.store.ToReview(userID()))
	return nil
}

func runMemoryConsolidate(cmd *cobra.Command, args []string) error {
	key, _ := cmd.Flags().GetString("key")
	if key == "" {
		return fmt.Errorf("--key is required")
	}

	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	result, err := eng.store.Consolidate(userID(), key)
	if err != nil {
		return err
	}
	printJSON(result)
	return nil
}

func runMemoryPurge(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	removed, err := eng.store.PurgeExpired()
	if err != nil {
		return err
	}
	printJSON(map[string]int{"purged": removed})
	return nil
}

func runMemoryFeedback(cmd *cobra.Command, args []string) error {
	negative, _ := cmd.Flags().GetBool("negative")

	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	rec, err := eng.store.RecordFeedback(args[0], !negative)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("no record with id %q", args[0])
	}
	printJSON(rec)
	return nil
}

func runMemoryImportance(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	imp := eng.store.Importance(args[0])
	if imp == nil {
		return fmt.Errorf("no record with id %q", args[0])
	}
	printJSON(imp)
	return nil
}

func runMemoryExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	outPath, _ := cmd.Flags().GetString("out")

	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	switch format {
	case "json":
		return eng.store.ExportJSON(out)
	case "csv":
		return eng.store.ExportCSV(out)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

func runMemoryImport(cmd *cobra.Command, args []string) error {
	index, _ := cmd.Flags().GetBool("index")
	if !cmd.Flags().Changed("index") {
		index = viper.GetBool("memory.index")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open import: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat import: %w", err)
	}

	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	bar := progressbar.DefaultBytes(info.Size(), "importing")
	reader := progressbar.NewReader(f, bar)
	n, err := eng.store.ImportJSON(cmd.Context(), &reader, index)
	if err != nil {
		return err
	}
	fmt.Println()
	printJSON(map[string]int{"imported": n})
	return nil
}

func runMemoryStats(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	vectors, err := eng.vectors.Count(cmd.Context())
	if err != nil {
		return err
	}
	printJSON(map[string]int{
		"records": eng.store.Count(),
		"vectors": vectors,
	})
	return nil
}
