package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/chriserin/featsync/internal/annotate"
	"github.com/chriserin/featsync/internal/config"
	"github.com/chriserin/featsync/internal/db"
	"github.com/chriserin/featsync/internal/parser"
	"github.com/chriserin/featsync/internal/remote"
	"github.com/chriserin/featsync/internal/ui"
	"github.com/spf13/cobra"
)

// ErrMissingIDs is returned by --check-ids when any suite or test lacks an identifier.
var ErrMissingIDs = errors.New("missing identifiers")

// PushOptions are the flags of push and of the bare root command.
type PushOptions struct {
	Pattern       string
	Dir           string
	Exclude       []string
	CodeceptJS    bool
	Sync          bool
	UpdateIDs     bool
	CleanIDs      bool
	Purge         bool
	CheckIDs      bool
	Create        bool
	NoEmpty       bool
	KeepStructure bool
	NoDetached    bool
	Branch        string
	Journal       string
}

var pushFlags PushOptions

var pushCmd = &cobra.Command{
	Use:   "push [glob]",
	Short: "Push scenarios to the remote service and optionally annotate them with ids",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPushCommand(cmd, args)
	},
}

func init() {
	addPushFlags(pushCmd)
	rootCmd.AddCommand(pushCmd)
}

func addPushFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&pushFlags.Dir, "dir", "d", ".", "Directory to search for feature files")
	f.StringArrayVar(&pushFlags.Exclude, "exclude", nil, "Glob of files to skip (repeatable)")
	f.BoolVar(&pushFlags.CodeceptJS, "codeceptjs", false, "Report the framework as codeceptjs, with tags appended to titles")
	f.BoolVar(&pushFlags.Sync, "sync", false, "Ask the server to sync synchronously")
	f.BoolVarP(&pushFlags.UpdateIDs, "update-ids", "U", false, "Write @S/@T ids into feature files after pushing")
	f.BoolVar(&pushFlags.CleanIDs, "clean-ids", false, "Remove ids known to the server from feature files")
	f.BoolVar(&pushFlags.Purge, "unsafe-clean-ids", false, "Remove every @S/@T id from feature files")
	f.BoolVar(&pushFlags.Purge, "purge", false, "Alias for --unsafe-clean-ids")
	f.BoolVar(&pushFlags.CheckIDs, "check-ids", false, "Fail when any suite or test has no id; nothing is pushed")
	f.BoolVar(&pushFlags.Create, "create", false, "Create tests on the server that do not exist yet")
	f.BoolVar(&pushFlags.NoEmpty, "no-empty", false, "Remove empty suites on the server")
	f.BoolVar(&pushFlags.KeepStructure, "keep-structure", false, "Keep the local directory structure on the server")
	f.BoolVar(&pushFlags.NoDetached, "no-detached", false, "Do not mark missing tests as detached")
	f.StringVar(&pushFlags.Branch, "branch", "", "Branch to push to (overrides TESTOMATIO_BRANCH)")
	f.StringVar(&pushFlags.Journal, "journal", "", "Record this run in the sqlite journal at path")
}

func runPushCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts := pushFlags
	if len(args) > 0 {
		opts.Pattern = args[0]
	}
	return RunPush(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
}

// RunPush analyzes feature files below opts.Dir and, depending on opts,
// checks, cleans, pushes or annotates them.
func RunPush(ctx context.Context, w io.Writer, cfg *config.Config, opts PushOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.Branch == "" {
		opts.Branch = cfg.Branch
	}
	if opts.Journal == "" {
		opts.Journal = cfg.JournalPath
	}

	features, err := analyze(cfg, opts)
	if err != nil {
		return err
	}
	scenarios := printFeatures(w, features)
	if len(features) == 0 {
		ui.Warning(w, "no feature files found in %s", opts.Dir)
		return nil
	}

	if opts.CheckIDs {
		return checkIDs(w, features, opts.Dir)
	}

	sync := remote.SyncOptions{
		Branch:    opts.Branch,
		Sync:      opts.Sync,
		NoEmpty:   opts.NoEmpty,
		Suite:     cfg.Suite,
		NoDetach:  opts.NoDetached,
		Structure: opts.KeepStructure,
		Create:    opts.Create,
	}

	if opts.CleanIDs || opts.Purge {
		return cleanIDs(ctx, w, cfg, opts, features, sync)
	}

	if !cfg.HasAPIKey() {
		if cfg.OnMissingKey == config.OnMissingKeyFail {
			return config.ErrNoAPIKey
		}
		slog.Warn("no API key configured, skipping push")
		ui.Warning(w, "API key not provided, nothing pushed")
		return nil
	}

	paths := reportPaths(cfg)
	tests, files, err := remote.BuildTests(features, opts.Dir, paths)
	if err != nil {
		return err
	}

	client := newClient(cfg, opts.CodeceptJS)
	res, err := client.Push(ctx, tests, files, sync)
	if err != nil {
		return fmt.Errorf("pushing tests: %w", err)
	}
	if res.OK() {
		ui.SummaryLine(w, "pushed %d tests from %d files", len(tests), len(files))
	} else {
		ui.Warning(w, "server rejected push: HTTP %d", res.StatusCode)
	}

	run := db.Run{Command: "push", Tests: len(tests), Outcome: fmt.Sprintf("%d", res.StatusCode)}
	for path := range files {
		run.Files = append(run.Files, db.RunFile{Path: path, Action: db.ActionPushed})
	}

	if opts.UpdateIDs {
		written, err := updateIDs(ctx, w, cfg, opts, features, client, sync, paths)
		if err != nil {
			return err
		}
		for _, path := range written {
			run.Files = append(run.Files, db.RunFile{Path: path, Action: db.ActionAnnotated})
		}
	}

	slog.Debug("push finished", "features", len(features), "scenarios", scenarios)
	recordRun(opts.Journal, run)
	return nil
}

func analyze(cfg *config.Config, opts PushOptions) ([]parser.ParsedFeature, error) {
	features, err := parser.Analyze(opts.Pattern, opts.Dir, parser.Options{
		IncludeFeatureCode:    cfg.Code.Feature,
		IncludeRuleCode:       cfg.Code.Rule,
		IncludeBackgroundCode: cfg.Code.Background,
		TagsInTitle:           opts.CodeceptJS,
		Exclude:               opts.Exclude,
	})
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", opts.Dir, err)
	}
	return features, nil
}

// printFeatures lists what was parsed and returns the scenario count.
func printFeatures(w io.Writer, features []parser.ParsedFeature) int {
	scenarios := 0
	parsed := 0
	for _, f := range features {
		if f.HasError() {
			ui.ErrLine(w, f.Error)
			continue
		}
		parsed++
		scenarios += len(f.Scenarios)
		ui.FeatureLine(w, f.Title, f.File, len(f.Scenarios))
	}
	if len(features) > 0 {
		ui.SummaryLine(w, "found %d features, %d scenarios", parsed, scenarios)
	}
	return scenarios
}

func checkIDs(w io.Writer, features []parser.ParsedFeature, dir string) error {
	res := annotate.Check(features, dir)
	ui.MissingList(w, "suites without ids:", res.SuitesWithoutIDs)
	ui.MissingList(w, "tests without ids:", res.TestsWithoutIDs)
	if res.Missing() > 0 {
		return fmt.Errorf("%w: %d suites, %d tests in %d files", ErrMissingIDs, len(res.SuitesWithoutIDs), len(res.TestsWithoutIDs), len(res.CheckedFiles))
	}
	ui.SummaryLine(w, "all suites and tests in %d files have ids", len(res.CheckedFiles))
	return nil
}

func cleanIDs(ctx context.Context, w io.Writer, cfg *config.Config, opts PushOptions, features []parser.ParsedFeature, sync remote.SyncOptions) error {
	var ids annotate.IdentifierMap
	if !opts.Purge {
		if !cfg.HasAPIKey() {
			return fmt.Errorf("--clean-ids needs the server's ids: %w", config.ErrNoAPIKey)
		}
		var err error
		ids, err = newClient(cfg, opts.CodeceptJS).GetIdentifierMap(ctx, sync)
		if err != nil {
			return fmt.Errorf("fetching ids: %w", err)
		}
	}

	files, err := annotate.Remove(features, ids, opts.Dir, opts.Purge)
	for _, path := range files {
		ui.ClnLine(w, path)
	}
	if err != nil {
		return fmt.Errorf("removing ids: %w", err)
	}
	ui.SummaryLine(w, "removed ids from %d files", len(files))

	run := db.Run{Command: "clean"}
	if opts.Purge {
		run.Command = "purge"
	}
	for _, path := range files {
		run.Files = append(run.Files, db.RunFile{Path: path, Action: db.ActionCleaned})
	}
	recordRun(opts.Journal, run)
	return nil
}

func updateIDs(ctx context.Context, w io.Writer, cfg *config.Config, opts PushOptions, features []parser.ParsedFeature, client *remote.Client, sync remote.SyncOptions, paths remote.PathOptions) ([]string, error) {
	ids, err := client.GetIdentifierMap(ctx, sync)
	if err != nil {
		return nil, fmt.Errorf("fetching ids: %w", err)
	}

	res, err := annotate.Write(features, ids, opts.Dir, annotate.Options{
		TitleIDs: cfg.TitleIDs,
		FileKey:  func(file string) string { return paths.Report(opts.Dir, file) },
	})
	if res != nil {
		for _, path := range res.Files {
			ui.UpdLine(w, path)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("writing ids: %w", err)
	}
	ui.SummaryLine(w, "wrote %d suite and %d test ids to %d files", res.Suites, res.Tests, len(res.Files))

	if len(res.Conflicts) > 0 {
		conflicts := make([]string, 0, len(res.Conflicts))
		for _, c := range res.Conflicts {
			slog.Warn("id conflict", "node", c.String())
			conflicts = append(conflicts, c.String())
		}
		ui.MissingList(w, "left untouched, already carrying a different id:", conflicts)
		ui.Warning(w, "%d suites or tests already have ids from a different project and were left untouched; run with --purge first", len(res.Conflicts))
	}

	// files changed on disk, so verify against a fresh parse
	reparsed, err := analyze(cfg, opts)
	if err != nil {
		return res.Files, err
	}
	check := annotate.Check(reparsed, opts.Dir)
	ui.MissingList(w, "suites still without ids:", check.SuitesWithoutIDs)
	ui.MissingList(w, "tests still without ids:", check.TestsWithoutIDs)
	return res.Files, nil
}

func newClient(cfg *config.Config, codeceptjs bool) *remote.Client {
	framework := remote.FrameworkCucumber
	if codeceptjs {
		framework = remote.FrameworkCodeceptJS
	}
	return remote.New(remote.Config{
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.APIKey,
		Labels:    cfg.Labels,
		Framework: framework,
		Logger:    slog.Default(),
	})
}

func reportPaths(cfg *config.Config) remote.PathOptions {
	return remote.PathOptions{WorkDir: cfg.WorkDir, PrependDir: cfg.PrependDir}
}
