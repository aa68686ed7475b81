package monitoring

import "testing"

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) { got = format })
	Logf("rejected %s")
	if got != "rejected %s" {
		t.Errorf("custom logger not invoked, got %q", got)
	}

	// nil installs a no-op that must not call the previous logger
	got = ""
	SetLogger(nil)
	Logf("should be dropped")
	if got != "" {
		t.Errorf("no-op logger still forwarded %q", got)
	}
}

func TestLogfDefault(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf must never be nil")
	}
}
