package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/dmitrijs2005/wakevault/internal/client/repositories/book"
	"github.com/dmitrijs2005/wakevault/internal/common"
	"github.com/dmitrijs2005/wakevault/internal/escrow"
)

// show prints an alarm from the server, falling back to the local book when
// the server cannot be reached.
func (a *App) show(ctx context.Context, fs *flag.FlagSet, args []string) error {
	ref := alarmFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	addr, err := a.resolve(ctx, ref)
	if err != nil {
		return err
	}

	al, err := a.fetchAlarm(ctx, addr)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return err
		}
		e, bookErr := a.book.Get(ctx, addr)
		if bookErr != nil {
			return err
		}
		fmt.Fprintf(a.out, "(cached, server unavailable: %v)\n", err)
		a.printAlarm(&e.Alarm, e.Label)
		return nil
	}

	var label string
	if e, err := a.book.Get(ctx, addr); err == nil {
		label = e.Label
	}
	a.printAlarm(al, label)
	if err := a.book.Upsert(ctx, &book.Entry{Alarm: *al, UpdatedAt: a.now().Unix()}); err != nil {
		fmt.Fprintf(a.out, "warning: could not update local book: %v\n", err)
	}

	if al.Status.Open() {
		pid, err := a.programID(ctx)
		if err != nil {
			return err
		}
		rctx, cancel := a.remote(ctx)
		defer cancel()
		if v, err := a.client.Vault(rctx, escrow.VaultAddress(pid, addr)); err == nil {
			fmt.Fprintf(a.out, "Vault:       %s (%d lamports)\n", v.Address, v.Lamports)
		}
	}
	return nil
}

func (a *App) balance(ctx context.Context, fs *flag.FlagSet, args []string) error {
	of := fs.String("of", "", "account address (default: the key file's address)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	addr, err := a.addressOrOwn(*of)
	if err != nil {
		return err
	}

	ctx, cancel := a.remote(ctx)
	defer cancel()
	lamports, err := a.client.Balance(ctx, addr)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %d lamports\n", addr, lamports)
	return nil
}

func (a *App) airdrop(ctx context.Context, fs *flag.FlagSet, args []string) error {
	to := fs.String("to", "", "recipient (default: the key file's address)")
	amount := fs.Uint64("amount", 10_000_000, "lamports to request")
	if err := fs.Parse(args); err != nil {
		return err
	}
	addr, err := a.addressOrOwn(*to)
	if err != nil {
		return err
	}

	ctx, cancel := a.remote(ctx)
	defer cancel()
	lamports, err := a.client.Airdrop(ctx, addr, *amount)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %d lamports\n", addr, lamports)
	return nil
}

// list prints the owner's alarms from the book. With -refresh every entry
// is reloaded from the server first.
func (a *App) list(ctx context.Context, fs *flag.FlagSet, args []string) error {
	ownerFlag := fs.String("owner", "", "alarm owner (default: the key file's address)")
	refresh := fs.Bool("refresh", false, "reload entries from the server")
	if err := fs.Parse(args); err != nil {
		return err
	}
	owner, err := a.addressOrOwn(*ownerFlag)
	if err != nil {
		return err
	}

	entries, err := a.book.List(ctx, owner)
	if err != nil {
		return err
	}
	if *refresh {
		for _, e := range entries {
			a.remember(ctx, e.Alarm.Address, "")
		}
		if entries, err = a.book.List(ctx, owner); err != nil {
			return err
		}
	}

	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No alarms")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tALARM TIME\tDEADLINE\tSTATUS\tREMAINING\tSNOOZES\tLABEL")
	for _, e := range entries {
		al := e.Alarm
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%s\n",
			al.AlarmID, formatTime(al.AlarmTime), formatTime(al.Deadline), al.Status,
			al.RemainingAmount, al.SnoozeCount, e.Label)
	}
	return w.Flush()
}

func (a *App) addressOrOwn(s string) (escrow.Address, error) {
	if s != "" {
		return escrow.ParseAddress(s)
	}
	return a.ownerAddress()
}
