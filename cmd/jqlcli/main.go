package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "jqlcli",
	Short: "jqlcli - query newline-delimited JSON documents",
	Long: `jqlcli compiles a query and runs it against newline-delimited JSON
documents, one query language shared with the embeddable library it
wraps.

It supports:
- Filtering documents by the query's match expression
- Binding named or positional placeholders from the command line
- Applying mutation clauses (apply json, apply patch, upsert, del) and
  projection clauses, printing the resulting document alongside the
  match verdict`,
	Version: version,
}

func init() {
	rootCmd.AddCommand(runCmd)
}
