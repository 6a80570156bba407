package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/schoolboard/internal/probe"
	"github.com/okian/schoolboard/pkg/logger"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	url     string
	passKey string
	timeout time.Duration
	verbose bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "dashctl",
		Short:         "Query and probe a school dashboard server",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if g.verbose {
				return logger.SetLevelString("debug")
			}
			return nil
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.url, "url", envOr("DASHCTL_URL", probe.DefaultBaseURL), "base URL of the server")
	pf.StringVar(&g.passKey, "passkey", os.Getenv("DASHCTL_PASSKEY"), "passkey when the server requires one")
	pf.DurationVar(&g.timeout, "timeout", probe.DefaultTimeout, "HTTP request timeout")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(
		newYearsCmd(g),
		newPackageCmd(g),
		newJoinCmd(g),
		newConnectionsCmd(g),
		newCacheCmd(g),
		newProbeCmd(g),
	)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// client builds a logged-in API client.
func (g *globalFlags) client(cmd *cobra.Command) (*probe.Client, error) {
	c := probe.NewClient(strings.TrimRight(g.url, "/"), g.timeout)
	if err := c.Login(cmd.Context(), g.passKey); err != nil {
		return nil, err
	}
	return c, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func newYearsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "years",
		Short: "List the available periods of every domain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client(cmd)
			if err != nil {
				return err
			}
			var out map[string]any
			if err := c.Get(cmd.Context(), "/api/years", &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newPackageCmd(g *globalFlags) *cobra.Command {
	var (
		period  string
		summary bool
	)
	cmd := &cobra.Command{
		Use:   "package <type>",
		Short: "Fetch the data package of a dashboard type",
		Long: `Fetch the data package of a dashboard type: newbie, graduate,
examScore, stScore or currentStudent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client(cmd)
			if err != nil {
				return err
			}
			if !summary {
				q := url.Values{"type": {args[0]}, "period": {period}}
				var out map[string]any
				if err := c.Get(cmd.Context(), "/api/packages?"+q.Encode(), &out); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			}
			res, err := c.Package(cmd.Context(), period, args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "records=%d queries=%d cached=%t loadDuration=%dms\n",
				res.Metadata.TotalRecords, res.Metadata.Queries, res.Metadata.Cached, res.Metadata.LoadDuration)
			for name, sec := range res.Sections {
				count := 0
				if m, ok := sec.(map[string]any); ok {
					if n, ok := m["count"].(float64); ok {
						count = int(n)
					}
				}
				fmt.Fprintf(w, "  %s: %d\n", name, count)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&period, "period", "p", "latest", "period token: latest, a year or YYY-S")
	cmd.Flags().BoolVarP(&summary, "summary", "s", false, "print section counts instead of the package")
	return cmd
}

func newJoinCmd(g *globalFlags) *cobra.Command {
	var (
		targets []string
		file    string
	)
	cmd := &cobra.Command{
		Use:   "join <source-domain>",
		Short: "Join selected records of one domain against others",
		Long: `Join selected records of one domain against others. The selection is
a JSON array of records read from --file, or stdin when --file is "-".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("open selection: %w", err)
				}
				defer f.Close()
				in = f
			}
			var selected []map[string]any
			if err := json.NewDecoder(in).Decode(&selected); err != nil {
				return fmt.Errorf("decode selection: %w", err)
			}
			c, err := g.client(cmd)
			if err != nil {
				return err
			}
			out, err := c.Join(cmd.Context(), map[string]any{
				"source":   args[0],
				"selected": selected,
				"targets":  targets,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringSliceVarP(&targets, "targets", "t", nil, "target domains; default every other domain")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "selection file")
	return cmd
}

func newConnectionsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "connections",
		Short: "Test the configured workbooks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client(cmd)
			if err != nil {
				return err
			}
			var out []map[string]any
			if err := c.Get(cmd.Context(), "/api/connections", &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newCacheCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the server cache",
	}
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cache entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client(cmd)
			if err != nil {
				return err
			}
			var out []map[string]any
			if err := c.Get(cmd.Context(), "/api/cache", &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	clearCmd := &cobra.Command{
		Use:   "clear [key]",
		Short: "Drop one key, a prefix ending in *, or everything",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client(cmd)
			if err != nil {
				return err
			}
			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			var out map[string]any
			if err := c.Delete(cmd.Context(), "/api/cache?"+url.Values{"key": {key}}.Encode(), &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.AddCommand(listCmd, clearCmd)
	return cmd
}

func newProbeCmd(g *globalFlags) *cobra.Command {
	var (
		period  string
		rounds  int
		workers int
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Request every dashboard concurrently and verify repeated responses agree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := probe.Run(cmd.Context(), probe.Config{
				BaseURL: strings.TrimRight(g.url, "/"),
				PassKey: g.passKey,
				Period:  period,
				Rounds:  rounds,
				Workers: workers,
				Timeout: g.timeout,
				Verbose: g.verbose,
			})
			if stats != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "requests=%d failed=%d cached=%d mismatches=%d duration=%s\n",
					stats.Requests, stats.Failed, stats.Cached, stats.Mismatches, stats.Duration.Round(time.Millisecond))
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&period, "period", "p", "latest", "period token")
	cmd.Flags().IntVar(&rounds, "rounds", probe.DefaultRounds, "requests per dashboard type")
	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "concurrent requests")
	return cmd
}
