package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"sort"
)

var errUsage = errors.New("usage")

type command struct {
	summary string
	run     func(a *App, ctx context.Context, fs *flag.FlagSet, args []string) error
}

var commands = map[string]command{
	"keygen":       {"create a new encrypted key file", (*App).keygen},
	"address":      {"print the address of the key file", (*App).address},
	"init":         {"create the user profile", (*App).initProfile},
	"create":       {"create an alarm and lock its deposit", (*App).create},
	"ack":          {"acknowledge waking up", (*App).ack},
	"ack-attested": {"acknowledge with a permit from an attestation key", (*App).ackAttested},
	"claim":        {"take back the deposit after acknowledging", (*App).claim},
	"snooze":       {"push the alarm back for a fee", (*App).snooze},
	"slash":        {"settle a missed alarm to its penalty recipient", (*App).slash},
	"refund":       {"cancel an alarm before it rings, paying a penalty", (*App).refund},
	"sweep":        {"close an acknowledged alarm the owner never claimed", (*App).sweep},
	"show":         {"show one alarm", (*App).show},
	"balance":      {"show an account balance", (*App).balance},
	"list":         {"list alarms from the local book", (*App).list},
	"airdrop":      {"request lamports from the development faucet", (*App).airdrop},
}

func (a *App) usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(a.out, "Usage: wakectl [global flags] <command> [flags]")
	fmt.Fprintln(a.out, "Commands:")
	for _, name := range names {
		fmt.Fprintf(a.out, "  %-13s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(a.out, "  %-13s %s\n", "shell", "read commands interactively")
}

func (a *App) dispatch(ctx context.Context, args []string) error {
	if args[0] == "help" {
		a.usage()
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		a.usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(a.out)
	return cmd.run(a, ctx, fs, args[1:])
}

// IsUsage reports whether err only means the command line was incomplete;
// usage has already been printed.
func IsUsage(err error) bool {
	return errors.Is(err, errUsage)
}
