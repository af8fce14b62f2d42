package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ejdbq/jql/bindoc"
	"github.com/ejdbq/jql/internal/elog"
	"github.com/ejdbq/jql/internal/jsonutil"
	"github.com/ejdbq/jql/internal/metrics"
	"github.com/ejdbq/jql/jql"
)

var (
	queryFlag      string
	collectionFlag string
	inputPath      string
	outputPath     string
	logStyle       string
	logLevel       string
	bindStr        []string
	bindInt        []string
	bindJSON       []string
	bindRegex      []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a query against newline-delimited JSON documents",
	Long: `Run compiles a query and evaluates it against every document in a
newline-delimited JSON input, printing one JSON result line per input
document.

Examples:
  # Filter a file
  jqlcli run --collection docs --query '/[status = "active"]' --input docs.ndjson

  # Read from stdin, bind a placeholder, project a subset of fields
  cat docs.ndjson | jqlcli run --collection docs -q '/[id = :id] | /name + /email' --bind-int id=42
`,
	RunE: runQuery,
}

func init() {
	runCmd.Flags().StringVarP(&queryFlag, "query", "q", "", "query text (required)")
	runCmd.Flags().StringVarP(&collectionFlag, "collection", "c", "", "collection name, if the query has no @anchor")
	runCmd.Flags().StringVarP(&inputPath, "input", "i", "-", "NDJSON input file path, or - for stdin")
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "-", "NDJSON output file path, or - for stdout")
	runCmd.Flags().StringVar(&logStyle, "log-style", "terminal", "log encoding: terminal, json, logfmt, noop")
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	runCmd.Flags().StringArrayVar(&bindStr, "bind", nil, "bind a string placeholder, name=value")
	runCmd.Flags().StringArrayVar(&bindInt, "bind-int", nil, "bind an integer placeholder, name=value")
	runCmd.Flags().StringArrayVar(&bindJSON, "bind-json", nil, "bind a JSON placeholder, name=value")
	runCmd.Flags().StringArrayVar(&bindRegex, "bind-regex", nil, "bind a regex placeholder, name=pattern")

	_ = viper.BindPFlag("query", runCmd.Flags().Lookup("query"))
	_ = viper.BindPFlag("collection", runCmd.Flags().Lookup("collection"))
	viper.SetEnvPrefix("jqlcli")
	viper.AutomaticEnv()
}

// result is one NDJSON output line: the evaluated document alongside its
// match verdict and a synthetic per-line correlation id.
type result struct {
	ID      string `json:"_id"`
	Matched bool   `json:"matched"`
	Deleted bool   `json:"deleted,omitempty"`
	Doc     any    `json:"doc,omitempty"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	queryText := queryFlag
	if queryText == "" {
		queryText = viper.GetString("query")
	}
	if queryText == "" && len(args) > 0 {
		queryText = args[0]
	}
	if queryText == "" {
		return fmt.Errorf("jqlcli: no query given (--query, JQLCLI_QUERY, or a positional argument)")
	}
	collection := collectionFlag
	if collection == "" {
		collection = viper.GetString("collection")
	}

	logger, err := elog.New(&elog.Config{Style: elog.Style(logStyle), Level: logLevel})
	if err != nil {
		return fmt.Errorf("jqlcli: building logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	rec := metrics.New(nil)

	q, err := jql.Compile(collection, queryText, 0, logger, rec)
	if err != nil {
		return fmt.Errorf("jqlcli: compiling query: %w", err)
	}

	if err := bindPlaceholders(q); err != nil {
		return err
	}
	if unbound := q.Unbound(); len(unbound) > 0 {
		return fmt.Errorf("jqlcli: unbound placeholders: %s", strings.Join(unbound, ", "))
	}

	in, closeIn, err := openInput(inputPath)
	if err != nil {
		return err
	}
	defer closeIn()

	out, closeOut, err := openOutput(outputPath)
	if err != nil {
		return err
	}
	defer closeOut()

	return evaluateLines(q, in, out)
}

func bindPlaceholders(q *jql.Query) error {
	for _, kv := range bindStr {
		name, v, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("jqlcli: --bind expects name=value, got %q", kv)
		}
		if err := q.SetStr(name, v); err != nil {
			return fmt.Errorf("jqlcli: --bind %s: %w", name, err)
		}
	}
	for _, kv := range bindInt {
		name, v, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("jqlcli: --bind-int expects name=value, got %q", kv)
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("jqlcli: --bind-int %s: %w", name, err)
		}
		if err := q.SetInt(name, n); err != nil {
			return fmt.Errorf("jqlcli: --bind-int %s: %w", name, err)
		}
	}
	for _, kv := range bindJSON {
		name, v, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("jqlcli: --bind-json expects name=value, got %q", kv)
		}
		if err := q.SetJSONText(name, []byte(v)); err != nil {
			return fmt.Errorf("jqlcli: --bind-json %s: %w", name, err)
		}
	}
	for _, kv := range bindRegex {
		name, v, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("jqlcli: --bind-regex expects name=pattern, got %q", kv)
		}
		if err := q.SetRegex(name, v); err != nil {
			return fmt.Errorf("jqlcli: --bind-regex %s: %w", name, err)
		}
	}
	return nil
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" || path == "" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("jqlcli: opening input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "-" || path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("jqlcli: opening output: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func evaluateLines(q *jql.Query, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	w := bufio.NewWriter(out)
	defer w.Flush() //nolint:errcheck

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		res, err := evaluateLine(q, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jqlcli: line %d: %v\n", lineNo, err)
			continue
		}
		buf, err := jsonutil.Marshal(res)
		if err != nil {
			return fmt.Errorf("jqlcli: encoding result for line %d: %w", lineNo, err)
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func evaluateLine(q *jql.Query, line string) (*result, error) {
	buf, err := bindoc.EncodeJSON([]byte(line))
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	reader, err := bindoc.Open(buf, bindoc.AnyType)
	if err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}

	id := uuid.New().String()
	matched, err := q.Matched(reader)
	if err != nil {
		return nil, fmt.Errorf("matching document: %w", err)
	}
	if !matched {
		return &result{ID: id, Matched: false}, nil
	}

	applied, err := q.ApplyAndProject(reader)
	if err != nil {
		return nil, fmt.Errorf("applying/projecting document: %w", err)
	}
	if applied == nil {
		doc, err := bindoc.DecodeJSON(reader)
		if err != nil {
			return nil, fmt.Errorf("decoding matched document: %w", err)
		}
		return &result{ID: id, Matched: true, Doc: doc}, nil
	}
	if applied.Deleted {
		return &result{ID: id, Matched: true, Deleted: true}, nil
	}
	return &result{ID: id, Matched: true, Doc: applied.Doc}, nil
}
