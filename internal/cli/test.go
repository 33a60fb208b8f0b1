package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-axe/axe/internal/history"
	"github.com/go-axe/axe/internal/model"
	"github.com/go-axe/axe/internal/runner"
	"github.com/go-axe/axe/internal/traceparser"
	apperrors "github.com/go-axe/axe/pkg/errors"
)

var (
	testGlobalClock      bool
	testIgnoreTimestamps bool
	testDir              string
	testWorkers          int
	testHistoryDB        string
	testReport           string
)

var testCmd = &cobra.Command{
	Use:   "test <MODEL> <TRACE-FILE> <ANSWER-FILE>",
	Short: "Check a trace against its expected verdicts",
	Long: `test checks one trace file's batches (or, with --dir, every *.trace/*.ans
pair in a directory) against their expected O (admitted) / N (rejected)
verdicts, one line per batch.`,
	Args: cobra.RangeArgs(1, 3),
	RunE: runTest,
}

func init() {
	rootCmd.AddCommand(testCmd)
	testCmd.Flags().BoolVarP(&testGlobalClock, "global-clock", "g", false, "assume a global clock domain (enables sync-time edges under POW)")
	testCmd.Flags().BoolVarP(&testIgnoreTimestamps, "ignore-timestamps", "i", false, "ignore begin/end timestamps")
	testCmd.Flags().StringVar(&testDir, "dir", "", "run every *.trace/*.ans pair under this directory concurrently, instead of a single TRACE-FILE/ANSWER-FILE pair")
	testCmd.Flags().IntVar(&testWorkers, "workers", 0, "concurrency for --dir batch mode (0 = automatic)")
	testCmd.Flags().StringVar(&testHistoryDB, "history-db", "", "SQLite database path recording check history (empty = history disabled)")
	testCmd.Flags().StringVar(&testReport, "report", "", "write a gzipped JSON summary of --dir batch mode to this path")
}

func runTest(cmd *cobra.Command, args []string) error {
	m, err := model.ParseModel(firstArg(args))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "unrecognized consistency model", err)
	}
	opts := model.Options{IgnoreTimestamps: testIgnoreTimestamps, GlobalClock: testGlobalClock}

	if testDir != "" {
		applyCheckerDefaults(cmd)
		return runTestDir(cmd, m, opts)
	}

	if len(args) != 3 {
		return fmt.Errorf("test requires <MODEL> <TRACE-FILE> <ANSWER-FILE> (or --dir <DIRECTORY>)")
	}
	return runTestFile(cmd, m, opts, args[1], args[2])
}

// applyCheckerDefaults fills in --workers and --history-db from the loaded
// config's Checker section wherever the user didn't pass the flag
// explicitly; flags always take precedence over config when both are set.
func applyCheckerDefaults(cmd *cobra.Command) {
	checker := GetConfig().Checker
	if !cmd.Flags().Changed("workers") && checker.Workers != 0 {
		testWorkers = checker.Workers
	}
	if !cmd.Flags().Changed("history-db") && checker.HistoryDBPath != "" {
		testHistoryDB = checker.HistoryDBPath
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func runTestFile(cmd *cobra.Command, m model.Model, opts model.Options, traceFile, answerFile string) error {
	tr, err := openTraceSource(traceFile)
	if err != nil {
		return err
	}

	batches, err := traceparser.New(traceparser.Options{IgnoreTimestamps: opts.IgnoreTimestamps}).Parse(tr)
	if err != nil {
		return err
	}

	ar, err := openTraceSource(answerFile)
	if err != nil {
		return err
	}

	wants, err := parseAnswerLines(ar)
	if err != nil {
		return err
	}
	if len(wants) != len(batches) {
		return fmt.Errorf("%s: %d expected verdicts for %d trace batches", answerFile, len(wants), len(batches))
	}

	allPassed := true
	for i, batch := range batches {
		got, err := model.Check(m, batch, opts)
		if err != nil {
			return err
		}
		if got == wants[i] {
			fmt.Fprintf(cmd.OutOrStdout(), "O %d: pass\n", i)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "N %d: expected %s, got %s\n", i, verdictStr(wants[i]), verdictStr(got))
			allPassed = false
		}
	}

	if !allPassed {
		return fmt.Errorf("one or more traces did not match their expected verdict")
	}
	return nil
}

func runTestDir(cmd *cobra.Command, m model.Model, opts model.Options) error {
	var hs *history.Store
	if testHistoryDB != "" {
		var err error
		hs, err = history.Open(testHistoryDB)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeDatabaseError, "could not open history database", err)
		}
		defer hs.Close()
	}

	r := runner.New(runner.Options{
		Model:      m,
		Opts:       opts,
		Workers:    testWorkers,
		History:    hs,
		ReportPath: testReport,
		Logger:     GetLogger(),
	})

	summary, err := r.Run(context.Background(), testDir)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d/%d passed (%d errored) in %s\n", summary.Passed, summary.Total, summary.Errored, summary.Elapsed)
	for _, res := range summary.Results {
		if res.Err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "N %s#%d: error: %v\n", res.Pair.TraceFile, res.Index, res.Err)
		} else if res.Mismatch {
			fmt.Fprintf(cmd.OutOrStdout(), "N %s#%d: expected %s, got %s\n", res.Pair.TraceFile, res.Index, verdictStr(res.Want), verdictStr(res.Got))
		}
	}

	if summary.Failed > 0 || summary.Errored > 0 {
		return fmt.Errorf("%d failed, %d errored", summary.Failed, summary.Errored)
	}
	return nil
}

func verdictStr(ok bool) string {
	if ok {
		return "OK"
	}
	return "NO"
}

// parseAnswerLines reads one O/N verdict per non-blank, non-comment line.
func parseAnswerLines(r io.Reader) ([]bool, error) {
	scanner := bufio.NewScanner(r)
	var wants []bool
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch strings.ToUpper(line)[0] {
		case 'O':
			wants = append(wants, true)
		case 'N':
			wants = append(wants, false)
		default:
			return nil, fmt.Errorf("malformed verdict line %q, want O or N", line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return wants, nil
}
