package cli

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/wakevault/internal/escrow"
	"github.com/dmitrijs2005/wakevault/internal/rpc"
)

func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}

func (a *App) printEvents(resp *rpc.Receipt) {
	fmt.Fprintf(a.out, "OK %s\n", resp.Op)
	for _, e := range resp.Events {
		fmt.Fprintf(a.out, "  %s", e.Kind)
		if e.Amount != 0 {
			fmt.Fprintf(a.out, " amount=%d", e.Amount)
		}
		if e.Penalty != 0 {
			fmt.Fprintf(a.out, " penalty=%d", e.Penalty)
		}
		if e.Remaining != 0 {
			fmt.Fprintf(a.out, " remaining=%d", e.Remaining)
		}
		if e.Recipient != nil {
			fmt.Fprintf(a.out, " to=%s", e.Recipient)
		}
		if e.Kind == escrow.EventAlarmSnoozed {
			fmt.Fprintf(a.out, " snoozes=%d alarm_time=%s", e.SnoozeCount, formatTime(e.AlarmTime))
		}
		fmt.Fprintln(a.out)
	}
}

func (a *App) printAlarm(al *escrow.Alarm, label string) {
	fmt.Fprintf(a.out, "Alarm:       %s\n", al.Address)
	fmt.Fprintf(a.out, "Owner:       %s\n", al.Owner)
	fmt.Fprintf(a.out, "ID:          %d\n", al.AlarmID)
	if label != "" {
		fmt.Fprintf(a.out, "Label:       %s\n", label)
	}
	fmt.Fprintf(a.out, "Status:      %s\n", al.Status)
	fmt.Fprintf(a.out, "Alarm time:  %s\n", formatTime(al.AlarmTime))
	fmt.Fprintf(a.out, "Deadline:    %s\n", formatTime(al.Deadline))
	fmt.Fprintf(a.out, "Deposit:     %d (remaining %d)\n", al.InitialAmount, al.RemainingAmount)
	fmt.Fprintf(a.out, "Snoozes:     %d\n", al.SnoozeCount)
	fmt.Fprintf(a.out, "Penalty:     %s", al.PenaltyRoute)
	if al.PenaltyDestination != nil {
		fmt.Fprintf(a.out, " -> %s", al.PenaltyDestination)
	}
	fmt.Fprintln(a.out)
}
