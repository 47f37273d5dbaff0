package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/camsrc/internal/camsrc"
)

// CreateFormatsCmd creates the formats command.
func CreateFormatsCmd() *cobra.Command {
	var src SourceOptions
	var showTemplate bool

	cmd := &cobra.Command{
		Use:   "formats",
		Short: "List the formats a capture device can negotiate",
		Long: `Opens the device, builds its format catalog and prints one caps structure per ` +
			`supported entry. Entries in encodings the element cannot produce are skipped.`,
		RunE: func(c *cobra.Command, _ []string) error {
			if showTemplate {
				for _, s := range camsrc.TemplateCaps() {
					fmt.Fprintln(c.OutOrStdout(), s.String())
				}
				return nil
			}

			initLogging("warn", false)
			ctx, cancel := context.WithCancel(c.Context())
			defer cancel()

			opener, err := NewOpener(ctx, src)
			if err != nil {
				return err
			}
			e := camsrc.New(opener, camsrc.WithName("formats"))
			if err := e.SetState(camsrc.StateReady); err != nil {
				return err
			}
			defer func() { _ = e.SetState(camsrc.StateNull) }()

			formats := e.Formats()
			if len(formats) == 0 {
				fmt.Fprintln(c.OutOrStdout(), "No supported formats")
				return nil
			}
			for _, f := range formats {
				fmt.Fprintf(c.OutOrStdout(), "[%d] %s\n", f.Index, f.Structure())
			}
			return nil
		},
	}

	addSourceFlags(cmd, &src)
	cmd.Flags().BoolVar(&showTemplate, "template", false, "Print the static template caps without opening a device")
	return cmd
}
