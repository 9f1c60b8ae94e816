package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/codecredx/internal/logger"
	"github.com/ravi-parthasarathy/codecredx/pkg/candidate"
	"github.com/ravi-parthasarathy/codecredx/pkg/runner"

	// Register all LLM providers via their init() functions.
	_ "github.com/ravi-parthasarathy/codecredx/pkg/llm/providers"
)

const app = "codecredx"

// Actual version can be specified in build command.
var version = "unknown"

func main() {
	if err := rootCmd(viper.New()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   app,
		Short: "CodeCredX scores a candidate from their resume and GitHub work",
		Long: `CodeCredX reads a resume, collects the GitHub repositories it and the
candidate's profile point to, summarizes and scores each one, and writes a
Markdown report with an overall score and a simulated Elo rating.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is codecredx.yaml in current directory)")
	root.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	root.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	root.PersistentFlags().String("graph", "", "DOT file replacing the default stage wiring")
	_ = v.BindPFlag("debug", root.PersistentFlags().Lookup("debug"))
	_ = v.BindPFlag("json", root.PersistentFlags().Lookup("json"))
	_ = v.BindPFlag("pipeline.graph", root.PersistentFlags().Lookup("graph"))

	root.AddCommand(runCmd(v, &cfgFile))
	root.AddCommand(graphCmd(v, &cfgFile))
	root.AddCommand(versionCmd())
	return root
}

// ─── run ──────────────────────────────────────────────────────────────────────

func runCmd(v *viper.Viper, cfgFile *string) *cobra.Command {
	var (
		resumePath  string
		profileURL  string
		dumpContext string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate one candidate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if resumePath == "" && profileURL == "" {
				return errors.New("nothing to evaluate: pass --resume, --github or both")
			}
			cfg, err := loadConfig(v, *cfgFile)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log.Format, cfg.Log.Level)
			if err != nil {
				return fmt.Errorf("creating a logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			r, err := cfg.newRunner(log)
			if err != nil {
				return err
			}
			log.Info("starting codecredx", zap.String("version", version))

			ctx, stop := signalContext(cmd.Context(), log)
			defer stop()
			res := r.Run(ctx, runner.Input{ResumePath: resumePath, ProfileURL: profileURL})

			if dumpContext != "" {
				last, _ := res.Trace.Last()
				if err := res.Context.WriteJSON(dumpContext, last.Stage); err != nil {
					log.Warn("dumping context", zap.Error(err))
				}
			}
			if err := printRecord(cmd.OutOrStdout(), res.Record); err != nil {
				return err
			}
			return res.Err
		},
	}

	cmd.Flags().StringVar(&resumePath, "resume", "", "resume file (.txt or .md)")
	cmd.Flags().StringVar(&profileURL, "github", "", "GitHub profile URL, e.g. https://github.com/octocat")
	cmd.Flags().String("report", "", "where to save the Markdown report (default logs/candidate_report.md)")
	cmd.Flags().StringVar(&dumpContext, "dump-context", "", "write the final pipeline context as JSON to this file")
	_ = v.BindPFlag("report.path", cmd.Flags().Lookup("report"))
	return cmd
}

func printRecord(w io.Writer, rec candidate.RunRecord) error {
	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run record: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// ─── graph ────────────────────────────────────────────────────────────────────

func graphCmd(v *viper.Viper, cfgFile *string) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the stage wiring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v, *cfgFile)
			if err != nil {
				return err
			}
			opts, err := cfg.runnerOptions()
			if err != nil {
				return err
			}
			r, err := runner.New(runner.Deps{}, opts)
			if err != nil {
				return err
			}

			p := r.Pipeline()
			switch strings.ToLower(format) {
			case "dot":
				fmt.Fprint(cmd.OutOrStdout(), p.DOT(app))
			case "text", "":
				fmt.Fprint(cmd.OutOrStdout(), p.Text(app))
			default:
				return fmt.Errorf("unknown format %q: use text or dot", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text or dot")
	return cmd
}

// ─── version ──────────────────────────────────────────────────────────────────

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version: %s\n", app, version)
		},
	}
}

// ─── helpers ──────────────────────────────────────────────────────────────────

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, log *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		select {
		case <-ch:
			log.Warn("interrupted, cancelling evaluation")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
