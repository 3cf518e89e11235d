package version

import (
	"strings"
	"testing"
)

func TestString_Defaults(t *testing.T) {
	t.Parallel()

	got := String()
	for _, want := range []string{"docqa dev", "commit: unknown", "built: unknown"} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, missing %q", got, want)
		}
	}
}
