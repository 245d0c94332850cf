package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// shell reads commands line by line until EOF, "exit" or "quit". Errors are
// printed and the loop continues. The unlocked key is kept for the session.
// Lines are read straight from a.reader so prompts inside commands share it.
func (a *App) shell(ctx context.Context) error {
	fmt.Fprintln(a.out, "wakectl shell (type 'help' for commands)")

	for {
		fmt.Fprint(a.out, "wake> ")
		line, err := a.reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			fmt.Fprintln(a.out)
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "exit", "quit":
			fmt.Fprintln(a.out, "Bye!")
			return nil
		case "shell":
			fmt.Fprintln(a.out, "already in the shell")
			continue
		}

		if err := a.dispatch(ctx, parts); err != nil {
			fmt.Fprintln(a.out, "error:", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
