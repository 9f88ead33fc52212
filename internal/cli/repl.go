package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"did_alerts/internal/app"

	"github.com/rs/zerolog/log"
)

const prompt = "did> "

// REPL reads commands from in until quit, end of input or a connection
// failure. Other command errors are printed and the loop continues.
func REPL(ctx context.Context, svc Services, in io.Reader, out io.Writer) error {
	fmt.Fprint(out, Menu())

	state := State{}
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		next, output, err := Dispatch(ctx, svc, state, scanner.Text())
		state = next
		if output != "" {
			fmt.Fprint(out, output)
		}
		if err != nil {
			var connErr *app.ConnectionError
			if errors.As(err, &connErr) {
				return err
			}
			log.Debug().Err(err).Str("input", scanner.Text()).Msg("Command failed")
			fmt.Fprintf(out, "Error: %v\n", err)
		}
		if state.Quit {
			return nil
		}
	}
}
