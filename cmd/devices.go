package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List video capture devices",
		RunE: func(c *cobra.Command, _ []string) error {
			devices, err := ListDevices()
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(c.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(devices)
			}
			if len(devices) == 0 {
				fmt.Fprintln(c.OutOrStdout(), "No capture devices found")
				return nil
			}
			for _, d := range devices {
				fmt.Fprintf(c.OutOrStdout(), "%s\t%s\t%s\n", d.DevicePath, d.DeviceName, d.DeviceID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
