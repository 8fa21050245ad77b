package protodoc

import "testing"

func TestInfluxEscapeCoversDelimiters(t *testing.T) {
	want := map[byte]byte{',': 'C', '=': 'E', ' ': 'S'}
	for b, esc := range want {
		if InfluxEscape[b] != esc {
			t.Errorf("InfluxEscape[%q] = %q, want %q", b, InfluxEscape[b], esc)
		}
	}
}

func TestExitCodesMatchDocumentedValues(t *testing.T) {
	cases := map[ExitCode]int{
		ExitOK:                   0,
		ExitBadConfig:            1,
		ExitBadTCPPort:           2,
		ExitBadUDPPort:           3,
		ExitInitializationFailed: 9,
	}
	for code, want := range cases {
		if int(code) != want {
			t.Errorf("got %d, want %d", code, want)
		}
	}
}
