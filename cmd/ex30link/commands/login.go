package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/ex30link/internal/volvoid"
)

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "authorize the vehicle with Volvo ID and store the refresh token",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "authorization--callback-timeout",
				Usage: "how long to wait for the browser redirect",
			},
		},
		Action: loginAction,
	}
}

func loginAction(ctx context.Context, cmd *cli.Command) error {
	application, shutdown, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	out := cmd.Root().Writer
	tokens, err := application.Login(ctx, func(authorizationURL string) {
		fmt.Fprintln(out, "Open this URL in a browser and sign in with your Volvo ID:")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "  "+authorizationURL)
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Waiting for the redirect...")
	})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Fprintf(out, "Authorized. Refresh token %s stored.\n", volvoid.Redact(tokens.RefreshToken))
	return nil
}
