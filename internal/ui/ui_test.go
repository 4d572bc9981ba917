package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestHeader_Render(t *testing.T) {
	h := NewHeader("Station Connect", "apsta connect",
		Param{Key: "SSID", Value: "uplink"},
		Param{Key: "Timeout", Value: "10s"},
	).SetWidth(80)

	out := h.String()
	for _, want := range []string{"STATION CONNECT", "apsta connect", "SSID:", "uplink", "10s"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q", want)
		}
	}
}

func TestResult_Render(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   []string
	}{
		{
			name:   "success",
			result: NewSuccessResult("Connected", Param{Key: "Address", Value: "192.168.4.2"}),
			want:   []string{SuccessMarker, "SUCCESS", "Connected", "Address:", "192.168.4.2"},
		},
		{
			name:   "warning",
			result: NewWarningResult("Disconnected").AddDetail("Attempts", "5"),
			want:   []string{WarningMarker, "WARNING", "Attempts:", "5"},
		},
		{
			name:   "failure",
			result: NewFailureResult("Access point failed", errors.New("driver fault"), []string{"Restart the radio"}),
			want:   []string{FailureMarker, "FAILED", "Error: driver fault", "Troubleshooting:", "Restart the radio"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.result.SetWidth(80).Render()
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("Render() missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestTroubleshootingLines(t *testing.T) {
	tests := []struct {
		name string
		hint string
		want []string
	}{
		{"empty", "", nil},
		{"plain", "Check the radio driver", []string{"Check the radio driver"}},
		{
			name: "bullets",
			hint: "Troubleshooting:\n  • Check the SSID\n  • Move closer to the access point\n",
			want: []string{"Check the SSID", "Move closer to the access point"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TroubleshootingLines(tt.hint)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("TroubleshootingLines() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf).SetWidth(70)
	if p.Width() != 70 {
		t.Errorf("Width() = %d, want 70", p.Width())
	}

	p.PrintHeader("Access Point", "apsta ap", Param{Key: "SSID", Value: "apsta-setup"})
	p.PrintSuccess("Access point running")
	p.Printf("%d clients\n", 2)

	out := buf.String()
	for _, want := range []string{"ACCESS POINT", "apsta-setup", "Access point running", "2 clients"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}
