package cli

import (
	"context"
	"crypto/sha256"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/wakevault/internal/client/repositories/book"
	"github.com/dmitrijs2005/wakevault/internal/common"
	"github.com/dmitrijs2005/wakevault/internal/cryptox"
	"github.com/dmitrijs2005/wakevault/internal/escrow"
	"github.com/dmitrijs2005/wakevault/internal/rpc"
	"github.com/dmitrijs2005/wakevault/internal/wire"
)

var errAlarmRequired = errors.New("pass -alarm <address> or -id <alarm id>")

// alarmRef holds the flags that pick an alarm: either its address, or an
// alarm id of an owner (the key file's address by default).
type alarmRef struct {
	addr  *string
	id    *string
	owner *string
}

func alarmFlags(fs *flag.FlagSet) *alarmRef {
	return &alarmRef{
		addr:  fs.String("alarm", "", "alarm address"),
		id:    fs.String("id", "", "alarm id, resolved against -owner"),
		owner: fs.String("owner", "", "alarm owner (default: the key file's address)"),
	}
}

// ownerAddress is the address stored in the key file; no passphrase needed.
func (a *App) ownerAddress() (escrow.Address, error) {
	kf, err := cryptox.ReadKeyFile(a.config.KeyFile)
	if err != nil {
		return escrow.Address{}, err
	}
	return kf.Address, nil
}

func (a *App) resolve(ctx context.Context, ref *alarmRef) (escrow.Address, error) {
	if *ref.addr != "" {
		return escrow.ParseAddress(*ref.addr)
	}
	if *ref.id == "" {
		return escrow.Address{}, errAlarmRequired
	}
	id, err := strconv.ParseUint(*ref.id, 10, 64)
	if err != nil {
		return escrow.Address{}, fmt.Errorf("alarm id: %w", err)
	}

	var owner escrow.Address
	if *ref.owner != "" {
		owner, err = escrow.ParseAddress(*ref.owner)
	} else {
		owner, err = a.ownerAddress()
	}
	if err != nil {
		return escrow.Address{}, err
	}

	pid, err := a.programID(ctx)
	if err != nil {
		return escrow.Address{}, err
	}
	return escrow.AlarmAddress(pid, owner, id), nil
}

func (a *App) fetchAlarm(ctx context.Context, addr escrow.Address) (*escrow.Alarm, error) {
	ctx, cancel := a.remote(ctx)
	defer cancel()
	return a.client.Alarm(ctx, addr)
}

// submit signs ins with the user's key and sends it.
func (a *App) submit(ctx context.Context, ins escrow.Instruction, accounts []escrow.Address, att *wire.Attestation) (*rpc.Receipt, error) {
	key, _, err := a.signer()
	if err != nil {
		return nil, err
	}
	env, err := wire.Sign(key, ins, accounts)
	if err != nil {
		return nil, err
	}
	env.Attestation = att

	ctx, cancel := a.remote(ctx)
	defer cancel()
	resp, err := a.client.Submit(ctx, env)
	if err != nil {
		return nil, err
	}
	a.printEvents(resp)
	return resp, nil
}

// remember refreshes the book entry of addr from the server. A failure here
// does not fail the command that already went through.
func (a *App) remember(ctx context.Context, addr escrow.Address, label string) {
	al, err := a.fetchAlarm(ctx, addr)
	if err != nil {
		fmt.Fprintf(a.out, "warning: could not refresh %s: %v\n", addr, err)
		return
	}
	if err := a.book.Upsert(ctx, &book.Entry{Alarm: *al, Label: label, UpdatedAt: a.now().Unix()}); err != nil {
		fmt.Fprintf(a.out, "warning: could not update local book: %v\n", err)
	}
}

// parseWhen reads an absolute time (RFC 3339 or unix seconds) or an offset
// from now written as "+8h".
func parseWhen(s string, now int64) (int64, error) {
	if rest, ok := strings.CutPrefix(s, "+"); ok {
		d, err := time.ParseDuration(rest)
		if err != nil {
			return 0, err
		}
		return now + int64(d/time.Second), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Unix(), nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func (a *App) initProfile(ctx context.Context, fs *flag.FlagSet, args []string) error {
	tag := fs.String("tag", "", "optional public tag; only its hash is stored")
	if err := fs.Parse(args); err != nil {
		return err
	}
	_, owner, err := a.signer()
	if err != nil {
		return err
	}
	pid, err := a.programID(ctx)
	if err != nil {
		return err
	}

	ins := escrow.Initialize{}
	if *tag != "" {
		h := sha256.Sum256([]byte(*tag))
		ins.TagHash = &h
	}
	_, err = a.submit(ctx, ins, []escrow.Address{escrow.ProfileAddress(pid, owner), owner}, nil)
	return err
}

func (a *App) create(ctx context.Context, fs *flag.FlagSet, args []string) error {
	idFlag := fs.String("id", "", "alarm id (default: random)")
	at := fs.String("at", "", "alarm time: RFC 3339, unix seconds or +duration from now")
	window := fs.Duration("window", 30*time.Minute, "how long after the alarm time an acknowledgement counts")
	deposit := fs.Uint64("deposit", escrow.DefaultParams().MinDeposit, "lamports to lock")
	routeName := fs.String("route", escrow.RouteBurn.String(), "penalty route: burn, donate or buddy")
	dest := fs.String("dest", "", "penalty destination for donate and buddy")
	label := fs.String("label", "", "local note kept in the book")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *at == "" {
		return errors.New("-at is required")
	}
	if *window <= 0 {
		return errors.New("-window must be positive")
	}

	var route escrow.Route
	if err := route.UnmarshalText([]byte(*routeName)); err != nil {
		return err
	}
	ins := escrow.CreateAlarm{Deposit: *deposit, Route: uint8(route)}
	if *dest != "" {
		d, err := escrow.ParseAddress(*dest)
		if err != nil {
			return fmt.Errorf("dest: %w", err)
		}
		ins.Destination = &d
	}

	var err error
	if *idFlag == "" {
		ins.AlarmID, err = common.RandomUint64()
	} else {
		ins.AlarmID, err = strconv.ParseUint(*idFlag, 10, 64)
	}
	if err != nil {
		return fmt.Errorf("alarm id: %w", err)
	}

	now, err := a.serverNow(ctx)
	if err != nil {
		return err
	}
	if ins.AlarmTime, err = parseWhen(*at, now); err != nil {
		return fmt.Errorf("alarm time: %w", err)
	}
	ins.Deadline = ins.AlarmTime + int64(*window/time.Second)

	_, owner, err := a.signer()
	if err != nil {
		return err
	}
	pid, err := a.programID(ctx)
	if err != nil {
		return err
	}
	alarm := escrow.AlarmAddress(pid, owner, ins.AlarmID)
	vault := escrow.VaultAddress(pid, alarm)

	if _, err := a.submit(ctx, ins, []escrow.Address{alarm, vault, owner}, nil); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Alarm %s (id %d)\n", alarm, ins.AlarmID)
	a.remember(ctx, alarm, *label)
	return nil
}

func (a *App) ack(ctx context.Context, fs *flag.FlagSet, args []string) error {
	ref := alarmFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	alarm, err := a.resolve(ctx, ref)
	if err != nil {
		return err
	}
	_, owner, err := a.signer()
	if err != nil {
		return err
	}
	if _, err := a.submit(ctx, escrow.Acknowledge{}, []escrow.Address{alarm, owner}, nil); err != nil {
		return err
	}
	a.remember(ctx, alarm, "")
	return nil
}

func (a *App) ackAttested(ctx context.Context, fs *flag.FlagSet, args []string) error {
	ref := alarmFlags(fs)
	attestor := fs.String("attestor", "", "key file of the attestation key")
	proofFile := fs.String("proof-file", "", "file whose SHA-256 is the proof hash")
	proof := fs.String("proof", "", "text whose SHA-256 is the proof hash")
	proofType := fs.Uint("proof-type", 1, "proof type")
	ttl := fs.Duration("ttl", 5*time.Minute, "permit lifetime")
	nonceFlag := fs.String("nonce", "", "permit nonce (default: random)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *attestor == "" {
		return errors.New("-attestor is required")
	}
	if *proofType > 255 {
		return errors.New("-proof-type must fit in a byte")
	}

	p := escrow.Permit{ProofType: uint8(*proofType)}
	switch {
	case *proofFile != "":
		data, err := os.ReadFile(*proofFile)
		if err != nil {
			return err
		}
		p.ProofHash = sha256.Sum256(data)
	case *proof != "":
		p.ProofHash = sha256.Sum256([]byte(*proof))
	default:
		return errors.New("pass -proof or -proof-file")
	}

	var err error
	if *nonceFlag == "" {
		p.Nonce, err = common.RandomUint64()
	} else {
		p.Nonce, err = strconv.ParseUint(*nonceFlag, 10, 64)
	}
	if err != nil {
		return fmt.Errorf("nonce: %w", err)
	}

	alarm, err := a.resolve(ctx, ref)
	if err != nil {
		return err
	}
	_, owner, err := a.signer()
	if err != nil {
		return err
	}
	now, err := a.serverNow(ctx)
	if err != nil {
		return err
	}
	p.Expiry = now + int64(*ttl/time.Second)

	attKey, err := a.unlock(*attestor, "Attestor passphrase")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(attKey)

	info, err := a.info(ctx)
	if err != nil {
		return err
	}
	d := escrow.Deployment{Cluster: info.Cluster, ProgramID: info.ProgramID, AttestationDomain: info.AttestationDomain}
	att := wire.Attest(attKey, escrow.PermitMessage(d, alarm, owner, p))

	accounts := []escrow.Address{alarm, owner, escrow.PermitNonceAddress(info.ProgramID, alarm, p.Nonce)}
	if _, err := a.submit(ctx, escrow.AcknowledgeAttested{Permit: p}, accounts, att); err != nil {
		return err
	}
	a.remember(ctx, alarm, "")
	return nil
}

func (a *App) claim(ctx context.Context, fs *flag.FlagSet, args []string) error {
	ref := alarmFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	alarm, err := a.resolve(ctx, ref)
	if err != nil {
		return err
	}
	_, owner, err := a.signer()
	if err != nil {
		return err
	}
	pid, err := a.programID(ctx)
	if err != nil {
		return err
	}
	accounts := []escrow.Address{alarm, escrow.VaultAddress(pid, alarm), owner}
	if _, err := a.submit(ctx, escrow.Claim{}, accounts, nil); err != nil {
		return err
	}
	a.remember(ctx, alarm, "")
	return nil
}

func (a *App) snooze(ctx context.Context, fs *flag.FlagSet, args []string) error {
	ref := alarmFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	alarm, err := a.resolve(ctx, ref)
	if err != nil {
		return err
	}
	current, err := a.fetchAlarm(ctx, alarm)
	if err != nil {
		return err
	}
	_, owner, err := a.signer()
	if err != nil {
		return err
	}
	pid, err := a.programID(ctx)
	if err != nil {
		return err
	}

	ins := escrow.Snooze{ExpectedSnoozeCount: current.SnoozeCount}
	accounts := []escrow.Address{alarm, escrow.VaultAddress(pid, alarm), escrow.BurnSink, owner}
	if _, err := a.submit(ctx, ins, accounts, nil); err != nil {
		return err
	}
	a.remember(ctx, alarm, "")
	return nil
}

func (a *App) refund(ctx context.Context, fs *flag.FlagSet, args []string) error {
	ref := alarmFlags(fs)
	yes := fs.Bool("yes", false, "do not ask for confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	alarm, err := a.resolve(ctx, ref)
	if err != nil {
		return err
	}
	if !*yes {
		ok, err := Confirm(a.reader, "Cancel "+alarm.String()+" and pay the emergency penalty?", a.out)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(a.out, "Aborted")
			return nil
		}
	}
	_, owner, err := a.signer()
	if err != nil {
		return err
	}
	pid, err := a.programID(ctx)
	if err != nil {
		return err
	}
	accounts := []escrow.Address{alarm, escrow.VaultAddress(pid, alarm), escrow.BurnSink, owner}
	if _, err := a.submit(ctx, escrow.EmergencyRefund{}, accounts, nil); err != nil {
		return err
	}
	a.remember(ctx, alarm, "")
	return nil
}

// penaltyRecipient is where a slash of al pays out.
func penaltyRecipient(al *escrow.Alarm) (escrow.Address, error) {
	if al.PenaltyRoute == escrow.RouteBurn {
		return escrow.BurnSink, nil
	}
	if al.PenaltyDestination == nil {
		return escrow.Address{}, escrow.ErrPenaltyDestinationRequired
	}
	return *al.PenaltyDestination, nil
}

func (a *App) slash(ctx context.Context, fs *flag.FlagSet, args []string) error {
	ref := alarmFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	alarm, err := a.resolve(ctx, ref)
	if err != nil {
		return err
	}
	current, err := a.fetchAlarm(ctx, alarm)
	if err != nil {
		return err
	}
	recipient, err := penaltyRecipient(current)
	if err != nil {
		return err
	}
	_, caller, err := a.signer()
	if err != nil {
		return err
	}
	pid, err := a.programID(ctx)
	if err != nil {
		return err
	}
	accounts := []escrow.Address{alarm, escrow.VaultAddress(pid, alarm), recipient, caller}
	if _, err := a.submit(ctx, escrow.Slash{}, accounts, nil); err != nil {
		return err
	}
	a.remember(ctx, alarm, "")
	return nil
}

func (a *App) sweep(ctx context.Context, fs *flag.FlagSet, args []string) error {
	ref := alarmFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	alarm, err := a.resolve(ctx, ref)
	if err != nil {
		return err
	}
	current, err := a.fetchAlarm(ctx, alarm)
	if err != nil {
		return err
	}
	_, caller, err := a.signer()
	if err != nil {
		return err
	}
	pid, err := a.programID(ctx)
	if err != nil {
		return err
	}
	accounts := []escrow.Address{alarm, escrow.VaultAddress(pid, alarm), current.Owner, caller}
	if _, err := a.submit(ctx, escrow.Sweep{}, accounts, nil); err != nil {
		return err
	}
	a.remember(ctx, alarm, "")
	return nil
}
