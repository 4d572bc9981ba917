// Package ui renders terminal output for the apsta CLI.
//
// Most commands run once and exit. They print a Header naming the operation
// and its parameters, then a Result box describing what happened. Failure
// results carry the troubleshooting hint attached to radio stack errors.
//
//	p := ui.NewPrinter(os.Stdout)
//	p.PrintHeader("Station Connect", "apsta connect",
//	    ui.Param{Key: "SSID", Value: "uplink"})
//	p.PrintSuccess("Connected",
//	    ui.Param{Key: "Address", Value: "192.168.4.2"})
//
// The monitor command is interactive: MonitorModel is a Bubble Tea model
// that loads a status snapshot from a running apsta status server, then
// follows its event stream, resuming from the last sequence number after a
// dropped connection.
//
// Logging is controlled by the APSTA_LOG_LEVEL environment variable. When
// it is unset zap stays silent so the styled output is not interleaved with
// log lines.
package ui
