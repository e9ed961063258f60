package common

import (
	"strings"
	"testing"
)

func TestProgramVersion(t *testing.T) {
	v := ProgramVersion{Version: "1.2.3", CommitHash: "abc", BuildTime: "today", GoVersion: "go1.24"}
	if got := v.Short(); got != "v1.2.3-abc-today" {
		t.Errorf("Short() = %q", got)
	}
	for _, want := range []string{"v1.2.3", "abc", "today", "go1.24"} {
		if !strings.Contains(v.String(), want) {
			t.Errorf("String() missing %q", want)
		}
	}
	if PV.GoVersion == "" {
		t.Errorf("PV.GoVersion should be set at init")
	}
}
