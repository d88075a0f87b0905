package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	comms "github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/morezero/textcipher/internal/config"
	"github.com/morezero/textcipher/pkg/commsutil"
	"github.com/morezero/textcipher/pkg/dispatcher"
	"github.com/morezero/textcipher/pkg/events"
	"github.com/morezero/textcipher/pkg/executor"
	"github.com/morezero/textcipher/pkg/registry"
)

const logPrefix = "cipherctl:root"

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	remote  string
	url     string
	timeout time.Duration
	probe   bool
	verbose bool
}

// transformOptions holds the encode/decode flags.
type transformOptions struct {
	algorithm string
	shift     int
	key       string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "cipherctl",
		Short: "Encode and decode text through cipherd",
		Long: `cipherctl sends transform requests to cipherd over COMMS or HTTP.

When the server cannot be reached the same transform runs in-process, so
the output is identical either way. Business errors from the server
(bad input, wrong key, one-way algorithm) are reported as-is.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.remote, "remote", "", "remote transport: nats, http or none (default from CLIENT_REMOTE)")
	root.PersistentFlags().StringVar(&opts.url, "url", "", "COMMS URL for nats, base URL for http (default from COMMS_URL or CLIENT_URL)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "remote call timeout (default from REMOTE_TIMEOUT)")
	root.PersistentFlags().BoolVar(&opts.probe, "probe", false, "check remote health and API version before the first request")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log transport decisions to stderr")

	root.AddCommand(
		newTransformCmd(opts, registry.Encode),
		newTransformCmd(opts, registry.Decode),
		newHealthCmd(opts),
		newAlgorithmsCmd(),
	)
	return root
}

func newTransformCmd(root *rootOptions, dir registry.Direction) *cobra.Command {
	opts := &transformOptions{}
	cmd := &cobra.Command{
		Use:   string(dir) + " [text]",
		Short: fmt.Sprintf("%s text with the chosen algorithm", strings.ToUpper(string(dir[:1]))+string(dir[1:])),
		Long: fmt.Sprintf(`%s the given text. With no argument the text is read from stdin.

Algorithms: shift (caesar), base64, symmetric (aes), hash (sha256).`, strings.ToUpper(string(dir[:1]))+string(dir[1:])),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(cmd, args)
			if err != nil {
				return err
			}
			req := &registry.TransformRequest{Text: text, Algorithm: opts.algorithm}
			if cmd.Flags().Changed("shift") {
				req.Options = registry.WithShift(opts.shift)
			}
			req.Options.Key = opts.key

			c, err := newClient(cmd, root)
			if err != nil {
				return err
			}
			defer c.Close()

			res := c.exec.Execute(cmd.Context(), req, dir)
			if !res.Success {
				return errors.New(dispatcher.FormatWireError(res.ErrorKind, res.Message))
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.OutputText)
			if res.KeyDisclosure != "" {
				slog.Info(fmt.Sprintf("%s - key used: %s", logPrefix, res.KeyDisclosure))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.algorithm, "algorithm", "a", string(registry.AlgorithmShift), "transform algorithm")
	cmd.Flags().IntVarP(&opts.shift, "shift", "s", 0, "shift amount for the shift cipher (default from CIPHER_DEFAULT_SHIFT)")
	cmd.Flags().StringVarP(&opts.key, "key", "k", "", "passphrase for symmetric (default demo key)")
	return cmd
}

func newHealthCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check remote health and API compatibility",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(cmd, root)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.exec.Probe(cmd.Context()); err != nil {
				if errors.Is(err, executor.ErrNoRemote) {
					fmt.Fprintln(cmd.OutOrStdout(), "remote: none (local transforms only)")
					return nil
				}
				return fmt.Errorf("remote unavailable: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "remote: %s ok\n", c.mode)
			return nil
		},
	}
}

func newAlgorithmsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "algorithms",
		Short: "List the supported algorithms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			reg := registry.NewRegistry(registry.Config{DefaultKey: cfg.DefaultKey, DefaultShift: cfg.DefaultShift})
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(reg.Algorithms())
		},
	}
}

func inputText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// client is an executor plus the transport it owns.
type client struct {
	exec *executor.Executor
	mode string
	nc   *comms.Conn
}

func (c *client) Close() {
	if c.nc != nil {
		c.nc.Close()
	}
}

// newClient resolves config and flags into an executor. A broker that cannot
// be reached leaves the client local-only.
func newClient(cmd *cobra.Command, opts *rootOptions) (*client, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applyFlags(cfg, opts)
	if err := cfg.ValidateForClient(); err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

	c := &client{mode: cfg.ClientRemote}
	pubs := []events.EventPublisher{events.NewCallbackPublisher(logTransform)}

	var remote executor.Remote
	switch cfg.ClientRemote {
	case config.RemoteNATS:
		nc, err := commsutil.ConnectWithOptions(cfg.COMMSURL, "cipherctl", commsutil.ClientConnectOptions(cfg.RemoteTimeout))
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - COMMS unreachable, using local transforms: %v", logPrefix, err))
			c.mode = config.RemoteNone
			break
		}
		c.nc = nc
		remote = executor.NewCommsRemote(nc, &executor.CommsRemoteOpts{Subject: cfg.TransformSubject, Caller: "cipherctl"})
		if cfg.EventsEnabled {
			pubs = append(pubs, events.NewCommsPublisher(nc, &events.CommsPublisherOpts{Subject: cfg.EventsSubject}))
		}
	case config.RemoteHTTP:
		remote = executor.NewHTTPRemote(cfg.ClientURL, &http.Client{Timeout: cfg.RemoteTimeout})
	}

	local := dispatcher.NewDispatcher(registry.NewRegistry(registry.Config{
		DefaultKey:   cfg.DefaultKey,
		DefaultShift: cfg.DefaultShift,
	}))
	c.exec = executor.NewExecutor(executor.Params{
		Remote:         remote,
		Local:          local,
		RemoteTimeout:  cfg.RemoteTimeout,
		RemoteCooldown: cfg.RemoteCooldown,
		APIConstraint:  cfg.RemoteAPIConstraint,
		Publisher:      events.NewFanoutPublisher(pubs...),
	})

	if opts.probe && remote != nil && cmd.Name() != "health" {
		if err := c.exec.Probe(cmd.Context()); err != nil {
			slog.Warn(fmt.Sprintf("%s - remote probe failed, using local transforms: %v", logPrefix, err))
		}
	}
	return c, nil
}

func applyFlags(cfg *config.Config, opts *rootOptions) {
	if opts.remote != "" {
		cfg.ClientRemote = opts.remote
	}
	if opts.url != "" {
		if cfg.ClientRemote == config.RemoteNATS {
			cfg.COMMSURL = opts.url
		} else {
			cfg.ClientURL = opts.url
		}
	}
	if opts.timeout > 0 {
		cfg.RemoteTimeout = opts.timeout
	}
}

func logTransform(_ context.Context, ev *events.TransformedEvent) error {
	slog.Debug(fmt.Sprintf("%s - %s %s via %s (fallback=%v, %dms)",
		logPrefix, ev.Direction, ev.Algorithm, ev.Path, ev.Fallback, ev.DurationMs))
	return nil
}
