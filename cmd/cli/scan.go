package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/QTest-hq/apimap/pkg/model"
)

func scanCmd() *cobra.Command {
	var (
		target     targetFlags
		jsonOut    bool
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Extract the endpoints of a codebase",
		Long: `Scans a directory or a git repository for HTTP route declarations and
reports every endpoint with its parameters, auth, responses and analytics.

Example:
  apimap scan --dir ./services/shop
  apimap scan --repo https://github.com/acme/shop --json -o shop.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := target.extract(cmd.Context())
			if err != nil {
				return err
			}

			log.Debug().
				Int("files", res.Scan.FilesScanned).
				Int("endpoints", len(res.Endpoints)).
				Dur("took", res.Scan.Duration).
				Msg("scan complete")

			if jsonOut || outputFile != "" {
				data, err := json.MarshalIndent(res, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal result: %w", err)
				}
				if err := writeOutput(cmd, outputFile, append(data, '\n')); err != nil {
					return err
				}
				if outputFile != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d endpoints to %s\n", len(res.Endpoints), outputFile)
				}
				return nil
			}

			printSummary(cmd.OutOrStdout(), res)
			return nil
		},
	}

	target.register(cmd)
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the full result as JSON")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the JSON result to a file")

	return cmd
}

func detectCmd() *cobra.Command {
	var target targetFlags

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Print the detected web framework",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, release, err := target.resolve(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			eng, err := target.engine()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), eng.Detect(root))
			return nil
		},
	}
	target.register(cmd)

	return cmd
}

var methodColors = map[string]*color.Color{
	"GET":    color.New(color.FgGreen),
	"POST":   color.New(color.FgYellow),
	"PUT":    color.New(color.FgBlue),
	"PATCH":  color.New(color.FgCyan),
	"DELETE": color.New(color.FgRed),
}

func methodLabel(method string) string {
	label := fmt.Sprintf("%-7s", method)
	if c, ok := methodColors[method]; ok {
		return c.Sprint(label)
	}
	return label
}

func healthLabel(score int) string {
	switch {
	case score >= 80:
		return color.GreenString("%3d", score)
	case score >= 60:
		return color.CyanString("%3d", score)
	case score >= 40:
		return color.YellowString("%3d", score)
	}
	return color.RedString("%3d", score)
}

// printSummary writes the human readable report of a scan
func printSummary(w io.Writer, res *model.Result) {
	bold := color.New(color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Fprintf(w, "%s %s\n", cyan("▶"), bold(res.Root))
	fmt.Fprintf(w, "  framework: %s\n", res.Framework)
	fmt.Fprintf(w, "  files:     %d scanned, %d skipped\n", res.Scan.FilesScanned, res.Scan.FilesSkipped)
	fmt.Fprintf(w, "  endpoints: %d (%d duplicates dropped)\n", len(res.Endpoints), res.Scan.DuplicatesDropped)
	if res.Scan.Truncated {
		fmt.Fprintf(w, "  %s scan stopped early at a file or time limit\n", yellow("!"))
	}

	if len(res.Endpoints) == 0 {
		fmt.Fprintln(w, "\nNo endpoints found.")
		return
	}

	for _, g := range res.Groups {
		fmt.Fprintf(w, "\n%s\n", bold(g.Prefix))
		for _, ep := range g.Endpoints {
			line := fmt.Sprintf("  %s %s", methodLabel(ep.Method), ep.Path)
			if ep.Analytics != nil {
				line += "  health " + healthLabel(ep.Analytics.HealthScore)
			}
			if ep.Auth != nil {
				line += "  " + cyan("auth:"+string(ep.Auth.Type))
			}
			fmt.Fprintln(w, line)
			fmt.Fprintf(w, "          %s:%d\n", ep.SourceFile, ep.Line)
		}
	}

	s := res.Stats
	fmt.Fprintf(w, "\n%s\n", bold("Summary"))
	fmt.Fprintf(w, "  methods:       %s\n", formatCounts(s.ByMethod))
	fmt.Fprintf(w, "  health:        avg %.1f (excellent %d, good %d, fair %d, poor %d)\n",
		s.Health.Average, s.Health.Excellent, s.Health.Good, s.Health.Fair, s.Health.Poor)
	fmt.Fprintf(w, "  complexity:    avg %.1f (low %d, medium %d, high %d)\n",
		s.Complexity.Average, s.Complexity.Low, s.Complexity.Medium, s.Complexity.High)
	fmt.Fprintf(w, "  documentation: avg %.1f, %d fully documented\n",
		s.Documentation.Average, s.Documentation.FullyDocumented)
	fmt.Fprintf(w, "  without auth:  %d\n", s.Security.WithoutAuth)

	if critical := s.Security.IssuesBySeverity[string(model.SeverityCritical)]; critical > 0 {
		fmt.Fprintf(w, "  %s %d critical security issue(s)\n", red("✗"), critical)
	}
	if n := s.Similarity.PotentialDuplicates; n > 0 {
		fmt.Fprintf(w, "  %s %d endpoint(s) look like duplicates\n", yellow("!"), n)
	}
	if len(s.Dependencies.ExternalAPIs) > 0 {
		fmt.Fprintf(w, "  external APIs: %s\n", strings.Join(s.Dependencies.ExternalAPIs, ", "))
	}
}

// formatCounts renders a tally as "GET 3, POST 1" in key order
func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s %d", k, counts[k])
	}
	return strings.Join(parts, ", ")
}
