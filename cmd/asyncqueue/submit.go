package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kubev2v/asyncqueue/pkg/client"
)

func newSubmitCmd(v *viper.Viper) *cobra.Command {
	var (
		agentURL string
		token    string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "submit KEY [PAYLOAD]",
		Short: "Submit a task to a running agent and print the outcome",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, flush, err := loadConfig(v)
			if err != nil {
				return err
			}
			defer flush()

			payload := ""
			if len(args) == 2 {
				payload = args[1]
			}

			c, err := client.NewClient(agentURL, token, nil)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			result, err := c.SubmitTask(ctx, args[0], payload)
			if err != nil {
				color.Red("%s: %v", args[0], err)
				return err
			}

			color.Green("%s: %s", result.Key, result.Digest)
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringVar(&agentURL, "agent-url", "http://localhost:8000", "Agent API base url")
	cmd.Flags().StringVar(&token, "token", os.Getenv("ASYNCQUEUE_TOKEN"), "Bearer token for the agent API")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for the outcome")

	return cmd
}
