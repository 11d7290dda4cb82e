package commands

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestValidateToken(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "rt-abc\n", want: "rt-abc"},
		{in: "  rt-abc  ", want: "rt-abc"},
		{in: "", wantErr: true},
		{in: " \n", wantErr: true},
		{in: "two words", wantErr: true},
		{in: "line1\nline2", wantErr: true},
	}
	for _, tt := range tests {
		got, err := validateToken(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("validateToken(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestReadTokenFromPipe(t *testing.T) {
	var prompt bytes.Buffer
	got, err := readToken(strings.NewReader("rt-piped\n"), &prompt)
	if err != nil {
		t.Fatal(err)
	}
	if got != "rt-piped" {
		t.Errorf("readToken() = %q", got)
	}
	if prompt.Len() != 0 {
		t.Errorf("prompt shown for piped input: %q", prompt.String())
	}
}

// run executes the CLI with the given stdin and returns stdout.
func run(t *testing.T, stdin string, args ...string) string {
	t.Helper()

	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var out, errOut bytes.Buffer
	cmd := rootCommand()
	cmd.Reader = strings.NewReader(stdin)
	cmd.Writer = &out
	cmd.ErrWriter = &errOut

	if err := cmd.Run(context.Background(), append([]string{"ex30link"}, args...)); err != nil {
		t.Fatalf("ex30link %s: %v (stderr %q)", strings.Join(args, " "), err, errOut.String())
	}
	return out.String()
}

func TestTokenCommands(t *testing.T) {
	t.Setenv("EX30LINK_VOLVO__CLIENT_ID", "client")
	t.Setenv("EX30LINK_VOLVO__CLIENT_SECRET", "secret")
	t.Setenv("EX30LINK_LOG_LEVEL", "error")

	flags := []string{"--vehicle--vin", testVIN, "--storage--dir", t.TempDir()}
	cmd := func(sub ...string) []string { return append(append([]string(nil), flags...), sub...) }

	if out := run(t, "", cmd("token", "show")...); !strings.Contains(out, "No refresh token stored") {
		t.Errorf("show before import = %q", out)
	}

	if out := run(t, "rt-imported-0123456789\n", cmd("token", "import")...); !strings.Contains(out, "rt-imp...") {
		t.Errorf("import = %q", out)
	}

	out := run(t, "", cmd("token", "show")...)
	if !strings.Contains(out, "rt-imp...") || !strings.Contains(out, "source:   import") || strings.Contains(out, "rt-imported-0123456789") {
		t.Errorf("show = %q", out)
	}

	if out := run(t, "", cmd("token", "show", "--reveal")...); !strings.Contains(out, "rt-imported-0123456789") {
		t.Errorf("show --reveal = %q", out)
	}

	run(t, "", cmd("token", "clear")...)
	if out := run(t, "", cmd("token", "show")...); !strings.Contains(out, "No refresh token stored") {
		t.Errorf("show after clear = %q", out)
	}
}
