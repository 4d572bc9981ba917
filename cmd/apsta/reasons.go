package main

import (
	"github.com/spf13/cobra"

	"github.com/muurk/apsta/internal/radio"
	"github.com/muurk/apsta/internal/ui"
	"github.com/muurk/apsta/internal/wifi"
)

func init() {
	rootCmd.AddCommand(reasonsCmd)
}

// reasonsCmd prints the disconnect reason and auth mode tables
var reasonsCmd = &cobra.Command{
	Use:   "reasons",
	Short: "List disconnect reasons and auth modes",
	Long: `Print every disconnect reason code the radio reports, marking the ones
retried by default, followed by the access point authentication modes.

Reason labels are accepted by the reconnect.retryable setting and the
--retryable flag.`,
	Run: func(cmd *cobra.Command, args []string) {
		p := ui.NewPrinter(cmd.OutOrStdout())
		retryable := wifi.DefaultRetryableReasons()

		p.Println(ui.HeaderTitleStyle.Render("DISCONNECT REASONS"))
		for _, r := range radio.Reasons() {
			marker := " "
			if retryable.Contains(r) {
				marker = ui.SuccessMarker
			}
			p.Printf("  %s %4d  %s\n", marker, uint16(r), r)
		}
		p.Printf("\n  %s retried by default\n\n", ui.SuccessMarker)

		p.Println(ui.HeaderTitleStyle.Render("AUTH MODES"))
		for _, m := range radio.AuthModes() {
			p.Printf("    %4d  %s\n", int(m), m)
		}
	},
}
