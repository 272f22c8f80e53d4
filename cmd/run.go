package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shreedharv16/accesslint/agentloop"
	"github.com/shreedharv16/accesslint/findings"
	"github.com/shreedharv16/accesslint/internal/output"
	"github.com/shreedharv16/accesslint/internal/store"
	"github.com/shreedharv16/accesslint/llm"
	"github.com/shreedharv16/accesslint/observability"
)

// maxSnapshotFileBytes caps individual files loaded into the workspace.
const maxSnapshotFileBytes = 1 << 20 // 1MB

var (
	runFindingsPath string
	runNoApply      bool
)

var runCmd = &cobra.Command{
	Use:   "run [project-dir]",
	Short: "Run the remediation agent against a project",
	Long: `Run snapshots the project directory, composes a goal from the findings
report, and drives the agent until it completes, errs, or hits a limit.
Changes are applied back to disk after the session ends.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runFindingsPath, "findings", "f", "", "Findings report (JSON) to remediate")
	runCmd.Flags().BoolVar(&runNoApply, "no-apply", false, "Leave the project untouched; only report changes")
	_ = runCmd.MarkFlagRequired("findings")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	projectDir := args[0]
	ctx := cmd.Context()

	items, err := findings.LoadFile(runFindingsPath)
	if err != nil {
		return err
	}
	ui.Info("loaded %d finding(s): %s", len(items), severitySummary(findings.CountBySeverity(items)))

	files, err := snapshotDir(projectDir)
	if err != nil {
		return err
	}
	ui.VerboseLog("snapshotted %d file(s) from %s", len(files), projectDir)

	client, err := buildClient()
	if err != nil {
		return err
	}

	registry := agentloop.NewToolRegistry()
	agentloop.RegisterCoreTools(registry)

	policy := agentloop.DefaultPolicy()
	policy.Provider = viper.GetString("provider")
	policy.Model = viper.GetString("model")
	policy.MaxIterations = viper.GetInt("max_iterations")
	policy.Timeout = viper.GetDuration("timeout")
	policy.MaxTokens = viper.GetInt("max_tokens")
	policy.ContextBudgetChars = viper.GetInt("context_budget_chars")

	session := agentloop.NewSession(client, registry, agentloop.NewWorkspace(files), &policy)

	logger := observability.NewLogger(os.Stderr, verbose)
	var drained sync.WaitGroup
	drained.Add(1)
	go func() {
		defer drained.Done()
		observability.LogEvents(logger, session.Events())
	}()

	ui.Info("starting session %s with %s/%s", session.ID(), policy.Provider, policy.Model)
	startErr := session.Start(ctx, findings.ComposeGoal(items))
	drained.Wait()

	if err := persistSession(ctx, session, policy); err != nil {
		ui.Warning("could not persist session: %v", err)
	}

	renderSummary(session)

	if startErr != nil {
		return startErr
	}

	changes := session.Changes()
	if runNoApply {
		ui.Info("--no-apply set; project left untouched")
		return nil
	}
	if err := applyChanges(projectDir, changes); err != nil {
		return fmt.Errorf("applying changes: %w", err)
	}
	if len(changes) > 0 {
		ui.Success("applied %d change(s) to %s", len(changes), projectDir)
	}
	return nil
}

// severitySummary renders per-severity counts, severe first, colored.
func severitySummary(counts map[findings.Severity]int) string {
	order := []findings.Severity{
		findings.SeverityCritical,
		findings.SeveritySerious,
		findings.SeverityModerate,
		findings.SeverityMinor,
	}
	var parts []string
	for _, sev := range order {
		if n := counts[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, output.SeverityColor(sev)))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// buildClient assembles the completion client with every configured
// provider adapter registered.
func buildClient() (*llm.Client, error) {
	provider := viper.GetString("provider")
	model := viper.GetString("model")

	opts := []llm.ClientOption{llm.WithDefaultProvider(provider)}

	// An empty key defers to ANTHROPIC_API_KEY in the environment.
	if key := viper.GetString("anthropic.api_key"); key != "" || provider == "anthropic" {
		opts = append(opts, llm.WithProvider(llm.NewAnthropicAdapter(key, model)))
	}
	if provider != "anthropic" {
		adapter, err := llm.NewGollmAdapter(provider, model,
			llm.WithGollmAPIKey(viper.GetString("gollm.api_key")),
			llm.WithGollmMaxTokens(viper.GetInt("max_tokens")))
		if err != nil {
			return nil, fmt.Errorf("configuring %s provider: %w", provider, err)
		}
		opts = append(opts, llm.WithProvider(adapter))
	}

	client := llm.NewClient(opts...)
	if len(client.Providers()) == 0 {
		return nil, fmt.Errorf("no provider configured; set anthropic.api_key or gollm.api_key")
	}
	return client, nil
}

// snapshotDir loads the project's text files into an in-memory map keyed by
// path relative to root.
func snapshotDir(root string) (map[string]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	files := make(map[string]string)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if name == ".git" || name == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		if fi.Size() > maxSnapshotFileBytes {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if !isTextContent(data) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("snapshotting %s: %w", root, err)
	}
	return files, nil
}

// isTextContent is a cheap binary sniff: NUL bytes in the first KB mean the
// file is not editable text.
func isTextContent(data []byte) bool {
	probe := data
	if len(probe) > 1024 {
		probe = probe[:1024]
	}
	for _, b := range probe {
		if b == 0 {
			return false
		}
	}
	return true
}

// applyChanges replays the session's change log onto the real project.
func applyChanges(root string, changes []agentloop.FileChange) error {
	for _, change := range changes {
		target := filepath.Join(root, filepath.FromSlash(change.Path))
		if rel, err := filepath.Rel(root, target); err != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("change escapes project root: %s", change.Path)
		}
		switch change.Kind {
		case agentloop.FileCreate, agentloop.FileModify:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			if err := os.WriteFile(target, []byte(change.NewContent), 0644); err != nil {
				return err
			}
		case agentloop.FileDelete:
			if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}
	return nil
}

func persistSession(ctx context.Context, session *agentloop.Session, policy agentloop.Policy) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	rec := &store.SessionRecord{
		ID:         session.ID(),
		Goal:       session.Goal(),
		Status:     string(session.Status()),
		Reason:     session.TerminationReason(),
		Provider:   policy.Provider,
		Model:      policy.Model,
		Iterations: session.IterationCount(),
		StartedAt:  session.StartTime(),
		EndedAt:    session.EndTime(),
	}
	if err := s.SaveSession(ctx, rec); err != nil {
		return err
	}
	if err := s.SaveTranscript(ctx, session.ID(), session.Transcript()); err != nil {
		return err
	}
	return s.SaveChanges(ctx, session.ID(), session.Changes())
}

func renderSummary(session *agentloop.Session) {
	status := session.Status()
	elapsed := session.EndTime().Sub(session.StartTime()).Round(time.Millisecond)
	ui.Info("session %s: %s after %d iteration(s) in %s",
		session.ID(), output.StatusColor(status), session.IterationCount(), elapsed)
	if reason := session.TerminationReason(); reason != "" {
		ui.Info("reason: %s", reason)
	}

	changes := session.Changes()
	if len(changes) == 0 {
		ui.Info("no file changes")
		return
	}
	table := ui.Table([]string{"Change", "Path", "Bytes"})
	for _, c := range changes {
		table.Append([]string{
			output.ChangeColor(c.Kind),
			c.Path,
			fmt.Sprintf("%d", len(c.NewContent)),
		})
	}
	_ = table.Render()
}
