package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/ex30link/internal/volvoid"
)

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "manage the stored refresh token",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "show the stored refresh token",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "reveal",
						Usage: "print the full token instead of a prefix",
					},
				},
				Action: tokenShowAction,
			},
			{
				Name:   "clear",
				Usage:  "delete the stored refresh token",
				Action: tokenClearAction,
			},
			{
				Name:   "import",
				Usage:  "store a refresh token read from stdin",
				Action: tokenImportAction,
			},
		},
	}
}

func tokenShowAction(ctx context.Context, cmd *cli.Command) error {
	application, shutdown, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	out := cmd.Root().Writer
	record, ok := application.StoredToken(ctx)
	if !ok {
		fmt.Fprintln(out, "No refresh token stored.")
		return nil
	}

	token := volvoid.Redact(record.RefreshToken)
	if cmd.Bool("reveal") {
		token = record.RefreshToken
	}
	fmt.Fprintf(out, "vin:      %s\n", record.VIN)
	fmt.Fprintf(out, "token:    %s\n", token)
	fmt.Fprintf(out, "source:   %s\n", record.Source)
	fmt.Fprintf(out, "updated:  %s\n", record.UpdatedAt.Format(time.RFC3339))
	return nil
}

func tokenClearAction(ctx context.Context, cmd *cli.Command) error {
	application, shutdown, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	application.ClearToken(ctx)
	fmt.Fprintln(cmd.Root().Writer, "Stored refresh token removed.")
	return nil
}

func tokenImportAction(ctx context.Context, cmd *cli.Command) error {
	application, shutdown, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	token, err := readToken(cmd.Root().Reader, cmd.Root().ErrWriter)
	if err != nil {
		return err
	}
	if err := application.ImportToken(ctx, token); err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Fprintf(cmd.Root().Writer, "Refresh token %s stored.\n", volvoid.Redact(token))
	return nil
}

// readToken reads one token from r. Input from a terminal is not echoed.
func readToken(r io.Reader, prompt io.Writer) (string, error) {
	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Refresh token: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("reading token: %w", err)
		}
		return validateToken(string(b))
	}

	b, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return validateToken(string(b))
}

func validateToken(raw string) (string, error) {
	token := strings.TrimSpace(raw)
	if token == "" {
		return "", errors.New("no token given")
	}
	if strings.ContainsAny(token, " \t\r\n") {
		return "", errors.New("token must be a single line without spaces")
	}
	return token, nil
}
