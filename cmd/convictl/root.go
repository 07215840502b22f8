// convictl drives a conviction server from the terminal: submit
// research or stress-test jobs, check their status, and watch their
// progress streams live.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/convictionhq/conviction/internal/buildconfig"
)

var rootFlags struct {
	server string
}

var rootCmd = &cobra.Command{
	Use:   "convictl",
	Short: "CLI for the conviction diligence research engine",
	Long: "convictl submits research and stress-test jobs to a conviction\n" +
		"server, inspects their results, and streams their progress events.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.server, "server",
		"http://localhost:8080", "Base URL of the conviction server")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.Version = buildconfig.Version()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
