package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/modelchat/internal/model"
	"github.com/capitalize-ai/modelchat/internal/service"
)

var clearAll bool

var sendCmd = &cobra.Command{
	Use:   "send <text>",
	Short: "Send a message to the selected model and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			res, err := a.chat.Send(ctx, strings.Join(args, " "))
			return printExchange(cmd.OutOrStdout(), res, err)
		})
	},
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "Discard the last reply and ask again",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			res, err := a.chat.Regenerate(ctx)
			return printExchange(cmd.OutOrStdout(), res, err)
		})
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models, their configuration state and message counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(_ context.Context, a *app) error {
			return printModels(cmd.OutOrStdout(), a.chat.Models())
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the selected model's conversation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(_ context.Context, a *app) error {
			printHistory(cmd.OutOrStdout(), a.store.CurrentMessages())
			return nil
		})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the selected model's conversation, or all of them with --all",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if clearAll {
				if err := a.store.ClearAllConversations(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All conversations cleared.")
				return nil
			}
			if err := a.store.ClearCurrentConversation(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Conversation with %s cleared.\n", a.store.CurrentModel())
			return nil
		})
	},
}

func init() {
	clearCmd.Flags().BoolVar(&clearAll, "all", false, "clear every model's conversation")
}

func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func printExchange(w io.Writer, res *service.SendResult, err error) error {
	if res == nil {
		if errors.Is(err, service.ErrModelNotConfigured) {
			return fmt.Errorf("%w: set the provider API key in the environment or .env", err)
		}
		return err
	}

	// A failed exchange is reported once, by cobra, on stderr.
	if !res.Result.Success {
		failure := errors.New(strings.TrimPrefix(res.Message.Content, "Error: "))
		if err != nil {
			return errors.Join(failure, fmt.Errorf("reply not saved: %w", err))
		}
		return failure
	}
	fmt.Fprintln(w, res.Message.Content)
	if err != nil {
		return fmt.Errorf("reply received but not saved: %w", err)
	}
	return nil
}

func printModels(w io.Writer, resp model.ListModelsResponse) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tNAME\tPROVIDER\tCONFIGURED\tMESSAGES")
	for _, m := range resp.Models {
		marker := ""
		if m.Current {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%d\n", marker, m.ID, m.Name, m.Provider, m.Configured, m.MessageCount)
	}
	return tw.Flush()
}

func printHistory(w io.Writer, msgs []model.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, "No messages yet.")
		return
	}
	for _, m := range msgs {
		prefix := string(m.Role)
		if m.IsError {
			prefix += " (error)"
		}
		fmt.Fprintf(w, "[%s] %s\n", prefix, m.Content)
	}
}
