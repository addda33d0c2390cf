package chunkeval

import "testing"

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in   string
		want Version
	}{
		{"3.10.5", Version{3, 10, 5}},
		{"3.10", Version{3, 10, -1}},
		{"3", Version{3, -1, -1}},
		{"2.1.0-beta", Version{2, 1, 0}},
	}
	for _, tt := range tests {
		got, err := ParseVersion(tt.in)
		if err != nil {
			t.Errorf("ParseVersion(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseVersion(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseVersionInvalid(t *testing.T) {
	if _, err := ParseVersion("not a version"); err == nil {
		t.Error("Expected error for unparseable version")
	}
}

func TestParsePythonVersion(t *testing.T) {
	v, err := ParsePythonVersion("Python 3.11.2")
	if err != nil {
		t.Fatalf("ParsePythonVersion failed: %v", err)
	}
	if v.Major != 3 || v.Minor != 11 || v.Patch != 2 {
		t.Errorf("Unexpected version: %v", v)
	}

	if _, err := ParsePythonVersion("Ruby 3.1"); err == nil {
		t.Error("Expected error for non-Python version string")
	}
}

func TestParsePipVersion(t *testing.T) {
	v, err := ParsePipVersion("pip 23.0.1 from /usr/lib/python3/dist-packages/pip (python 3.11)")
	if err != nil {
		t.Fatalf("ParsePipVersion failed: %v", err)
	}
	if v.Major != 23 || v.Minor != 0 || v.Patch != 1 {
		t.Errorf("Unexpected version: %v", v)
	}
}

func TestVersionCompare(t *testing.T) {
	a := Version{3, 8, 0}
	b := Version{3, 10, 5}
	if a.Compare(b) != -1 {
		t.Error("Expected 3.8.0 < 3.10.5")
	}
	if b.Compare(a) != 1 {
		t.Error("Expected 3.10.5 > 3.8.0")
	}
	if a.Compare(a) != 0 {
		t.Error("Expected equal versions to compare 0")
	}
}

func TestVersionString(t *testing.T) {
	tests := []struct {
		v    Version
		want string
	}{
		{Version{3, 10, 5}, "3.10.5"},
		{Version{3, 10, -1}, "3.10"},
		{Version{3, -1, -1}, "3"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
