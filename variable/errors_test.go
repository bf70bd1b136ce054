package variable

import (
	"errors"
	"fmt"
	"testing"
)

func TestRecoverable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "break", err: Breakf("unsupported api %s", "save"), want: true},
		{name: "wrapped break", err: fmt.Errorf("inline f: %w", Breakf("no")), want: true},
		{name: "break with cause", err: &BreakGraphError{Reason: "inline failed", Cause: errors.New("boom")}, want: true},
		{name: "internal", err: Internalf("registry broken"), want: false},
		{name: "wrapped internal", err: fmt.Errorf("trace: %w", Internalf("registry broken")), want: false},
		{name: "plain", err: errors.New("boom"), want: false},
		{name: "nil", err: nil, want: false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Recoverable(c.err); got != c.want {
				t.Errorf("Recoverable(%v) = %t, want %t", c.err, got, c.want)
			}
		})
	}
}

func TestErrorStrings(t *testing.T) {
	bg := &BreakGraphError{Reason: "call to unsupported api save"}
	if want := "break graph: call to unsupported api save"; bg.Error() != want {
		t.Errorf("got %q, want %q", bg.Error(), want)
	}

	cause := errors.New("bad shape")
	withCause := &BreakGraphError{Reason: "inline of f failed", Cause: cause}
	if want := "break graph: inline of f failed: bad shape"; withCause.Error() != want {
		t.Errorf("got %q, want %q", withCause.Error(), want)
	}
	if !errors.Is(withCause, cause) {
		t.Error("cause must be reachable through Unwrap")
	}

	internal := Internalf("no constructor matched %s", "FUNCTION")
	if want := "internal: no constructor matched FUNCTION"; internal.Error() != want {
		t.Errorf("got %q, want %q", internal.Error(), want)
	}
}
