package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/solution-connector/assistant/internal/config"
	"github.com/zhouzirui/solution-connector/assistant/internal/logging"
	"github.com/zhouzirui/solution-connector/assistant/internal/service/answer"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置加载失败: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log)

	rootCmd := &cobra.Command{
		Use:   "asktester",
		Short: "Exercise the answering service from the command line",
	}
	rootCmd.AddCommand(newAskCommand(cfg.Answer), newDecodeCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newAskCommand(cfg config.AnswerConfig) *cobra.Command {
	var (
		endpoint string
		timeout  time.Duration
		final    bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Send a question and print every decoded answer event",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			client := answer.NewClient(endpoint, nil)
			stream, err := client.Ask(ctx, strings.Join(args, " "))
			if err != nil {
				return errors.Wrap(err, "ask")
			}
			defer stream.Close()

			log.Debug().Str("request_id", stream.RequestID).Msg("answer stream opened")
			start := time.Now()
			return printEvents(cmd.OutOrStdout(), stream, final, start)
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", cfg.Endpoint, "answering service URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "overall request timeout")
	cmd.Flags().BoolVar(&final, "final", false, "print only the last event")
	return cmd
}

func newDecodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decode [file]",
		Short: "Decode a captured event stream (stdin when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return errors.Wrap(err, "open capture")
				}
				defer f.Close()
				in = f
			}

			dec := answer.NewDecoder(in)
			if err := printEvents(cmd.OutOrStdout(), dec, false, time.Now()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "dropped=%d\n", dec.Dropped())
			return nil
		},
	}
}

func printEvents(out io.Writer, events answer.EventStream, finalOnly bool, start time.Time) error {
	var (
		last  answer.AnswerEvent
		count int
	)
	for {
		event, err := events.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return errors.Wrap(err, "read answer")
		}
		count++
		last = event
		if !finalOnly {
			fmt.Fprintf(out, "[%6s] final=%-5t %s\n", time.Since(start).Round(time.Millisecond), event.IsFinal, event.AnswerText)
		}
	}

	if finalOnly && count > 0 {
		fmt.Fprintln(out, last.AnswerText)
	}
	log.Info().Int("events", count).Bool("final", last.IsFinal).Dur("elapsed", time.Since(start)).Msg("done")
	return nil
}
