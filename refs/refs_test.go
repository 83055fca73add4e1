package refs

import "testing"

func TestValid(t *testing.T) {
	cases := map[string]bool{
		"main":            true,
		"heads/main":      true,
		"a/b/c":           true,
		"":                false,
		"/leading":        false,
		"trailing/":       false,
		"a//b":            false,
		"-leading-dash":   false,
		"valid_name.tag":  true,
		"org.example.foo": true,
	}
	for name, want := range cases {
		if got := Valid(name); got != want {
			t.Errorf("Valid(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestParseRefspec(t *testing.T) {
	spec, err := ParseRefspec("origin:heads/main")
	if err != nil {
		t.Fatal(err)
	}
	if spec.Remote != "origin" || spec.Ref != "heads/main" {
		t.Errorf("got %+v", spec)
	}
	if spec.String() != "origin:heads/main" {
		t.Errorf("String() = %q", spec.String())
	}

	bare, err := ParseRefspec("heads/main")
	if err != nil {
		t.Fatal(err)
	}
	if bare.HasRemote() {
		t.Error("bare refspec should have no remote")
	}
}

func TestParseRefspecInvalid(t *testing.T) {
	if _, err := ParseRefspec(":main"); err == nil {
		t.Error("expected error for empty remote")
	}
	if _, err := ParseRefspec("a/b:main"); err == nil {
		t.Error("expected error for multi-fragment remote")
	}
	if _, err := ParseRefspec("remote:/bad"); err == nil {
		t.Error("expected error for invalid ref")
	}
}
