// cmd/aiplay/main_test.go
package main

import "testing"

func TestMainWiring(t *testing.T) {
	origSetVersion := setVersionInfo
	origExecute := executeCmd
	t.Cleanup(func() {
		setVersionInfo = origSetVersion
		executeCmd = origExecute
	})

	var calls []string
	setVersionInfo = func(v, c, d string) {
		calls = append(calls, "version")
		if v == "" || c == "" || d == "" {
			t.Fatalf("expected version info to be set")
		}
	}
	executeCmd = func() {
		calls = append(calls, "execute")
	}

	main()

	if len(calls) != 2 || calls[0] != "version" || calls[1] != "execute" {
		t.Fatalf("unexpected call order %v", calls)
	}
}
