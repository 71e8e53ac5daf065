package version

import "testing"

func TestGet(t *testing.T) {
	orig := Commit
	defer func() { Commit = orig }()

	Commit = "abc1234"
	b := Get()
	if b.Version != Version {
		t.Errorf("Version = %q, want %q", b.Version, Version)
	}
	if b.Commit != "abc1234" {
		t.Errorf("Commit = %q, want ldflags value", b.Commit)
	}
	if got, want := String(), Version+" (abc1234)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
