// Package memoriactl 实现 memoria 服务的命令行客户端。
package memoriactl

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/kart-io/version"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kart-io/memoria/internal/memoria/biz"
	"github.com/kart-io/memoria/internal/model"
	"github.com/kart-io/memoria/pkg/infra/app"
	"github.com/kart-io/memoria/pkg/utils/json"
)

const name = "memoriactl"

type globalOptions struct {
	server    string
	token     string
	output    string
	noSpinner bool
	timeout   time.Duration
}

// NewCommand 创建 memoriactl 根命令。
func NewCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           name,
		Short:         "Diagnose and improve grant documents through a memoria server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			version.PrintAndExitIfRequested()
			prefix := app.EnvPrefix(name)
			if !cmd.Flags().Changed("server") {
				if v, ok := os.LookupEnv(prefix + "_SERVER"); ok {
					opts.server = v
				}
			}
			if opts.token == "" {
				opts.token = os.Getenv(prefix + "_TOKEN")
			}
			return nil
		},
	}

	fs := cmd.PersistentFlags()
	fs.StringVar(&opts.server, "server", "http://localhost:8100", "memoria server URL (env MEMORIACTL_SERVER)")
	fs.StringVar(&opts.token, "token", "", "Bearer token (env MEMORIACTL_TOKEN)")
	fs.StringVarP(&opts.output, "output", "o", OutputHuman, "Output format: human, json, yaml")
	fs.BoolVar(&opts.noSpinner, "no-spinner", false, "Disable the progress spinner")
	fs.DurationVar(&opts.timeout, "timeout", 0, "Overall request timeout, 0 waits indefinitely")
	version.AddFlags(fs)

	cmd.AddCommand(newDiagnoseCommand(opts), newImproveCommand(opts))
	return cmd
}

func (o *globalOptions) client() *Client {
	return NewClient(o.server, o.token, o.timeout)
}

func (o *globalOptions) spin(w io.Writer, suffix string) func() {
	if o.noSpinner || o.output != OutputHuman {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + suffix
	s.Start()
	return s.Stop
}

func newDiagnoseCommand(opts *globalOptions) *cobra.Command {
	var (
		project string
		latest  bool
	)
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Score a project document, or show the latest diagnostic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c := opts.client()

			stop := opts.spin(cmd.ErrOrStderr(), "Diagnosing document...")
			var (
				d   *model.Diagnostic
				err error
			)
			if latest {
				d, err = c.Latest(ctx, project)
			} else {
				d, err = c.Diagnose(ctx, project)
			}
			stop()
			if err != nil {
				return err
			}
			return RenderDiagnostic(cmd.OutOrStdout(), d, opts.output)
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Project ID")
	cmd.Flags().BoolVar(&latest, "latest", false, "Show the latest stored diagnostic instead of running a new one")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newImproveCommand(opts *globalOptions) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "improve",
		Short: "Rewrite the weakest sections and stream progress until the re-diagnosis",
		Long: `Starts an automatic improvement run on the server and follows its progress stream.
The command exits non-zero when the run reports an error or the stream ends early.
With -o json or -o yaml every event is printed as one document.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			printer := NewEventPrinter(out)

			stop := opts.spin(cmd.ErrOrStderr(), "Waiting for the server...")
			stopped := false
			return opts.client().Improve(ctx, project, func(ev biz.Event) error {
				if !stopped {
					stop()
					stopped = true
				}
				return writeEvent(out, printer, ev, opts.output)
			})
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Project ID")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func writeEvent(w io.Writer, printer *EventPrinter, ev biz.Event, format string) error {
	switch format {
	case OutputJSON:
		b, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case OutputYAML:
		var generic any
		if err := roundTrip(ev, &generic); err != nil {
			return err
		}
		b, err := yaml.Marshal(generic)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "---\n%s", b)
		return err
	default:
		printer.Print(ev)
		return nil
	}
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewCommand().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
