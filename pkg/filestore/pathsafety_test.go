package filestore

import "testing"

func TestIsSafeRelativePath(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"", true},
		{"a/b/c.json", true},
		{"a.b/c", true},
		{"/abs/path", false},
		{"a//b", false},
		{"..", false},
		{"../escape", false},
		{"a/../b", false},
		{"a/.", false},
		{"a/b\ncarriage", false},
		{"a/b\x00null", false},
	}
	for _, c := range cases {
		if got := IsSafeRelativePath(c.path); got != c.want {
			t.Errorf("IsSafeRelativePath(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestAlwaysRestricted(t *testing.T) {
	if !AlwaysRestricted("a/b/POTCAR") {
		t.Error("expected POTCAR to be always-restricted")
	}
	if AlwaysRestricted("a/b/POTCAR.stripped") {
		t.Error("expected .stripped counterpart to not be restricted")
	}
	if AlwaysRestricted("a/b/other.json") {
		t.Error("expected unrelated file to not be restricted")
	}
}
