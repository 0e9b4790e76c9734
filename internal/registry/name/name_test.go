package name

import "testing"

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		valid bool
	}{
		{"foo", true},
		{"foo-bar", true},
		{"foo_bar", true},
		{"F00", true},
		{"", false},
		{"1abc", false},
		{"has space", false},
		{"nul", false},
		{"NUL", false},
	}
	for _, c := range cases {
		env := Validate(c.name)
		gotValid := env.Code == ""
		if gotValid != c.valid {
			t.Errorf("Validate(%q) valid=%v, want %v (env=%v)", c.name, gotValid, c.valid, env)
		}
	}
}

func TestPathForLengths(t *testing.T) {
	cases := map[string]string{
		"a":    "1",
		"ab":   "2",
		"abc":  "3/a",
		"abcd": "ab/cd",
		"abcde": "ab/cd",
	}
	for in, want := range cases {
		if got := PathFor(in); got != want {
			t.Errorf("PathFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPathForIsCaseInsensitive(t *testing.T) {
	if PathFor("Foo") != PathFor("foo") {
		t.Error("PathFor should be case-insensitive")
	}
}

func TestFileFor(t *testing.T) {
	if got, want := FileFor("foo"), "3/f/foo"; got != want {
		t.Errorf("FileFor(foo) = %q, want %q", got, want)
	}
}

func TestCanonicalFoldsDashUnderscore(t *testing.T) {
	if Canonical("Foo_Bar") != Canonical("foo-bar") {
		t.Error("Canonical should treat - and _ as equivalent")
	}
}
