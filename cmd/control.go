package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/camsrc/internal/nats"
)

// CreateControlCmd creates the control command.
func CreateControlCmd() *cobra.Command {
	var url string
	var element string
	var reason string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "control <unlock|unlock-stop|state> [null|ready|streaming]",
		Short: "Send a control request to a running element over NATS",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(c *cobra.Command, args []string) error {
			msg := nats.ControlMessage{Action: args[0], Reason: reason}
			if msg.Action == nats.ActionState {
				if len(args) != 2 {
					return fmt.Errorf("state action needs a target state")
				}
				msg.State = args[1]
			}

			client, err := nats.Dial(url, timeout)
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer client.Close()

			reply, err := client.Control(element, msg)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "%s: %s\n", element, reply.State)
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "nats", "nats://127.0.0.1:4222", "NATS server URL")
	cmd.Flags().StringVarP(&element, "element", "e", "camsrc0", "Element name")
	cmd.Flags().StringVar(&reason, "reason", "cli", "Reason recorded in the element log")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "Reply timeout")
	return cmd
}
