// Package client holds the CLI commands that talk to a running buffer server.
package client

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/ftbuffer/internal/conf"
	"github.com/tphakala/ftbuffer/pkg/fieldtrip"
	ftclient "github.com/tphakala/ftbuffer/pkg/fieldtrip/client"
)

// addConnectionFlags registers the server address flags shared by every
// client command.
func addConnectionFlags(cmd *cobra.Command, settings *conf.Settings) error {
	c := &settings.Client
	cmd.Flags().StringVar(&c.Host, "host", viper.GetString("client.host"), "Buffer server host")
	cmd.Flags().IntVarP(&c.Port, "port", "p", viper.GetInt("client.port"), "Buffer server port")
	cmd.Flags().DurationVar(&c.Timeout, "timeout", viper.GetDuration("client.timeout"), "Dial and request timeout")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

// withClient connects to the configured server, runs fn and disconnects.
func withClient(ctx context.Context, settings *conf.Settings, fn func(*ftclient.Client) error) error {
	c := ftclient.New(
		ftclient.WithDialTimeout(settings.Client.Timeout),
		ftclient.WithIOTimeout(settings.Client.Timeout),
	)
	if err := c.Connect(ctx, settings.Client.Host, settings.Client.Port); err != nil {
		return err
	}
	defer func() { _ = c.Disconnect() }()
	return fn(c)
}

// HeaderCommand prints the current header; its set subcommand replaces it.
func HeaderCommand(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "header",
		Short: "Print the buffer header",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), settings, func(c *ftclient.Client) error {
				h, err := c.GetHeader(cmd.Context())
				if err != nil {
					return err
				}
				printHeader(cmd.OutOrStdout(), h)
				return nil
			})
		},
	}
	mustSetup(addConnectionFlags(cmd, settings))
	cmd.AddCommand(headerSetCommand(settings))
	return cmd
}

func headerSetCommand(settings *conf.Settings) *cobra.Command {
	var (
		channels uint32
		fSample  float32
		dataType string
		labels   []string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Start a new buffer generation with the given header",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dt, err := fieldtrip.ParseDataType(dataType)
			if err != nil {
				return err
			}
			var opts []ftclient.PutOption
			if len(labels) > 0 {
				opts = append(opts, ftclient.WithLabels(labels...))
			}
			return withClient(cmd.Context(), settings, func(c *ftclient.Client) error {
				return c.PutHeader(cmd.Context(), channels, fSample, dt, opts...)
			})
		},
	}

	cmd.Flags().Uint32Var(&channels, "channels", 1, "Number of channels")
	cmd.Flags().Float32Var(&fSample, "fsample", 250, "Sampling rate in Hz")
	cmd.Flags().StringVar(&dataType, "type", fieldtrip.Float32.String(), "Sample data type")
	cmd.Flags().StringSliceVar(&labels, "labels", nil, "Channel labels, one per channel")
	mustSetup(addConnectionFlags(cmd, settings))
	return cmd
}

func printHeader(w io.Writer, h *fieldtrip.Header) {
	fmt.Fprintf(w, "channels:  %d\n", h.NChannels)
	fmt.Fprintf(w, "fsample:   %g\n", h.FSample)
	fmt.Fprintf(w, "datatype:  %s\n", h.DataType)
	fmt.Fprintf(w, "samples:   %d\n", h.NSamples)
	fmt.Fprintf(w, "events:    %d\n", h.NEvents)
	if len(h.Labels) > 0 {
		fmt.Fprintf(w, "labels:    %s\n", strings.Join(h.Labels, ", "))
	}
	types := make([]fieldtrip.ChunkType, 0, len(h.Chunks))
	for t := range h.Chunks {
		types = append(types, t)
	}
	slices.Sort(types)
	for _, t := range types {
		fmt.Fprintf(w, "chunk %d:   %d bytes\n", t, len(h.Chunks[t]))
	}
}

// PollCommand prints the sample and event counters.
func PollCommand(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Print the sample and event counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), settings, func(c *ftclient.Client) error {
				counts, err := c.Poll(cmd.Context())
				if err != nil {
					return err
				}
				printCounts(cmd.OutOrStdout(), counts)
				return nil
			})
		},
	}
	mustSetup(addConnectionFlags(cmd, settings))
	return cmd
}

// WaitCommand blocks until the counters pass the given thresholds.
func WaitCommand(settings *conf.Settings) *cobra.Command {
	var samples, events, timeoutMs uint32

	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Wait until the sample or event counter exceeds a threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), settings, func(c *ftclient.Client) error {
				counts, err := c.Wait(cmd.Context(), samples, events, timeoutMs)
				if err != nil {
					return err
				}
				printCounts(cmd.OutOrStdout(), counts)
				return nil
			})
		},
	}

	cmd.Flags().Uint32Var(&samples, "samples", 0, "Sample count threshold, 0 for none")
	cmd.Flags().Uint32Var(&events, "events", 0, "Event count threshold, 0 for none")
	cmd.Flags().Uint32Var(&timeoutMs, "wait-ms", 1000, "Server side wait timeout in milliseconds")
	mustSetup(addConnectionFlags(cmd, settings))
	return cmd
}

func printCounts(w io.Writer, c fieldtrip.Counts) {
	fmt.Fprintf(w, "samples=%d events=%d\n", c.NSamples, c.NEvents)
}

// FlushCommand removes the header, the samples or the events.
func FlushCommand(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "flush {header|data|events}",
		Short:     "Flush header, data or events from the buffer",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"header", "data", "events"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), settings, func(c *ftclient.Client) error {
				switch args[0] {
				case "header":
					return c.FlushHeader(cmd.Context())
				case "data":
					return c.FlushData(cmd.Context())
				default:
					return c.FlushEvents(cmd.Context())
				}
			})
		},
	}
	mustSetup(addConnectionFlags(cmd, settings))
	return cmd
}

func mustSetup(err error) {
	if err != nil {
		panic(err)
	}
}
