package rpc

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dmitrijs2005/wakevault/internal/escrow"
	"github.com/dmitrijs2005/wakevault/internal/wire"
)

// Receipt is the outcome of a committed Submit.
type Receipt struct {
	Op     string
	Events []escrow.Event
}

// Info describes the deployment a server runs. Clients use it to build
// addresses and permit messages without separate configuration.
type Info struct {
	Status            string
	Cluster           string
	ProgramID         escrow.Address
	AttestationDomain string
	Now               int64
}

var ErrMissingField = errors.New("missing field")

func EncodeEnvelope(env *wire.Envelope) (*wrapperspb.BytesValue, error) {
	b, err := env.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return wrapperspb.Bytes(b), nil
}

func DecodeEnvelope(v *wrapperspb.BytesValue) (*wire.Envelope, error) {
	env := &wire.Envelope{}
	if err := env.UnmarshalBinary(v.GetValue()); err != nil {
		return nil, err
	}
	return env, nil
}

func EncodeAddress(a escrow.Address) *wrapperspb.BytesValue {
	return wrapperspb.Bytes(a[:])
}

func DecodeAddress(v *wrapperspb.BytesValue) (escrow.Address, error) {
	return escrow.AddressFromBytes(v.GetValue())
}

// Integers that may exceed 2^53 travel as decimal strings; structpb numbers
// are doubles.

type fields map[string]*structpb.Value

func (f fields) str(k, v string)                 { f[k] = structpb.NewStringValue(v) }
func (f fields) u64(k string, v uint64)          { f.str(k, strconv.FormatUint(v, 10)) }
func (f fields) i64(k string, v int64)           { f.str(k, strconv.FormatInt(v, 10)) }
func (f fields) small(k string, v uint8)         { f[k] = structpb.NewNumberValue(float64(v)) }
func (f fields) addr(k string, a escrow.Address) { f.str(k, a.String()) }

func (f fields) optAddr(k string, a *escrow.Address) {
	if a != nil {
		f.addr(k, *a)
	}
}

func (f fields) text(k string, m interface{ MarshalText() ([]byte, error) }) {
	b, _ := m.MarshalText()
	f.str(k, string(b))
}

func (f fields) build() *structpb.Struct {
	return &structpb.Struct{Fields: f}
}

// reader collects the first decoding error so callers check once.
type reader struct {
	s   *structpb.Struct
	err error
}

func (r *reader) fail(k string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("field %q: %w", k, err)
	}
}

func (r *reader) value(k string) (*structpb.Value, bool) {
	v, ok := r.s.GetFields()[k]
	return v, ok && v != nil
}

func (r *reader) str(k string) string {
	v, ok := r.value(k)
	if !ok {
		r.fail(k, ErrMissingField)
		return ""
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		r.fail(k, errors.New("not a string"))
		return ""
	}
	return sv.StringValue
}

func (r *reader) has(k string) bool {
	_, ok := r.value(k)
	return ok
}

func (r *reader) u64(k string) uint64 {
	s := r.str(k)
	if r.err != nil {
		return 0
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		r.fail(k, err)
	}
	return n
}

func (r *reader) i64(k string) int64 {
	s := r.str(k)
	if r.err != nil {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		r.fail(k, err)
	}
	return n
}

func (r *reader) small(k string) uint8 {
	v, ok := r.value(k)
	if !ok {
		r.fail(k, ErrMissingField)
		return 0
	}
	nv, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || nv.NumberValue < 0 || nv.NumberValue > math.MaxUint8 || nv.NumberValue != math.Trunc(nv.NumberValue) {
		r.fail(k, errors.New("not a small integer"))
		return 0
	}
	return uint8(nv.NumberValue)
}

func (r *reader) addr(k string) escrow.Address {
	s := r.str(k)
	if r.err != nil {
		return escrow.Address{}
	}
	a, err := escrow.ParseAddress(s)
	if err != nil {
		r.fail(k, err)
	}
	return a
}

func (r *reader) optAddr(k string) *escrow.Address {
	if !r.has(k) {
		return nil
	}
	a := r.addr(k)
	return &a
}

func (r *reader) text(k string, u interface{ UnmarshalText([]byte) error }) {
	s := r.str(k)
	if r.err != nil {
		return
	}
	if err := u.UnmarshalText([]byte(s)); err != nil {
		r.fail(k, err)
	}
}

func (r *reader) list(k string) []*structpb.Value {
	v, ok := r.value(k)
	if !ok {
		return nil
	}
	lv, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		r.fail(k, errors.New("not a list"))
		return nil
	}
	return lv.ListValue.GetValues()
}

func (r *reader) done(what string) error {
	if r.err != nil {
		return fmt.Errorf("decode %s: %w", what, r.err)
	}
	return nil
}

func EncodeAlarm(a *escrow.Alarm) *structpb.Struct {
	f := fields{}
	f.addr("address", a.Address)
	f.addr("owner", a.Owner)
	f.u64("alarm_id", a.AlarmID)
	f.i64("alarm_time", a.AlarmTime)
	f.i64("deadline", a.Deadline)
	f.u64("initial_amount", a.InitialAmount)
	f.u64("remaining_amount", a.RemainingAmount)
	f.text("penalty_route", a.PenaltyRoute)
	f.optAddr("penalty_destination", a.PenaltyDestination)
	f.small("snooze_count", a.SnoozeCount)
	f.text("status", a.Status)
	return f.build()
}

func DecodeAlarm(s *structpb.Struct) (*escrow.Alarm, error) {
	r := &reader{s: s}
	a := &escrow.Alarm{
		Address:            r.addr("address"),
		Owner:              r.addr("owner"),
		AlarmID:            r.u64("alarm_id"),
		AlarmTime:          r.i64("alarm_time"),
		Deadline:           r.i64("deadline"),
		InitialAmount:      r.u64("initial_amount"),
		RemainingAmount:    r.u64("remaining_amount"),
		PenaltyDestination: r.optAddr("penalty_destination"),
		SnoozeCount:        r.small("snooze_count"),
	}
	r.text("penalty_route", &a.PenaltyRoute)
	r.text("status", &a.Status)
	if err := r.done("alarm"); err != nil {
		return nil, err
	}
	return a, nil
}

func EncodeVault(v *escrow.Vault) *structpb.Struct {
	f := fields{}
	f.addr("address", v.Address)
	f.addr("alarm", v.Alarm)
	f.addr("owner", v.Owner)
	f.u64("lamports", v.Lamports)
	return f.build()
}

func DecodeVault(s *structpb.Struct) (*escrow.Vault, error) {
	r := &reader{s: s}
	v := &escrow.Vault{
		Address:  r.addr("address"),
		Alarm:    r.addr("alarm"),
		Owner:    r.addr("owner"),
		Lamports: r.u64("lamports"),
	}
	if err := r.done("vault"); err != nil {
		return nil, err
	}
	return v, nil
}

func encodeTransfer(t escrow.Transfer) *structpb.Value {
	f := fields{}
	f.addr("from", t.From)
	f.addr("to", t.To)
	f.u64("amount", t.Amount)
	f.str("reason", t.Reason)
	return structpb.NewStructValue(f.build())
}

func decodeTransfer(r *reader, v *structpb.Value) escrow.Transfer {
	tr := &reader{s: v.GetStructValue()}
	t := escrow.Transfer{
		From:   tr.addr("from"),
		To:     tr.addr("to"),
		Amount: tr.u64("amount"),
		Reason: tr.str("reason"),
	}
	if tr.err != nil {
		r.fail("transfers", tr.err)
	}
	return t
}

func encodeEvent(e escrow.Event) *structpb.Value {
	f := fields{}
	f.str("kind", string(e.Kind))
	f.i64("timestamp", e.Timestamp)
	f.addr("owner", e.Owner)
	f.addr("account", e.Account)
	f.u64("alarm_id", e.AlarmID)
	f.optAddr("caller", e.Caller)
	f.optAddr("recipient", e.Recipient)
	f.u64("amount", e.Amount)
	f.u64("penalty", e.Penalty)
	f.u64("remaining", e.Remaining)
	f.small("snooze_count", e.SnoozeCount)
	f.i64("alarm_time", e.AlarmTime)
	f.i64("deadline", e.Deadline)
	if e.Route != nil {
		f.text("route", *e.Route)
	}
	if len(e.Transfers) > 0 {
		ts := make([]*structpb.Value, len(e.Transfers))
		for i, t := range e.Transfers {
			ts[i] = encodeTransfer(t)
		}
		f["transfers"] = structpb.NewListValue(&structpb.ListValue{Values: ts})
	}
	return structpb.NewStructValue(f.build())
}

func decodeEvent(r *reader, v *structpb.Value) escrow.Event {
	er := &reader{s: v.GetStructValue()}
	e := escrow.Event{
		Kind:        escrow.EventKind(er.str("kind")),
		Timestamp:   er.i64("timestamp"),
		Owner:       er.addr("owner"),
		Account:     er.addr("account"),
		AlarmID:     er.u64("alarm_id"),
		Caller:      er.optAddr("caller"),
		Recipient:   er.optAddr("recipient"),
		Amount:      er.u64("amount"),
		Penalty:     er.u64("penalty"),
		Remaining:   er.u64("remaining"),
		SnoozeCount: er.small("snooze_count"),
		AlarmTime:   er.i64("alarm_time"),
		Deadline:    er.i64("deadline"),
	}
	if er.has("route") {
		var route escrow.Route
		er.text("route", &route)
		e.Route = &route
	}
	for _, t := range er.list("transfers") {
		e.Transfers = append(e.Transfers, decodeTransfer(er, t))
	}
	if er.err != nil {
		r.fail("events", er.err)
	}
	return e
}

func EncodeReceipt(rc *Receipt) *structpb.Struct {
	f := fields{}
	f.str("op", rc.Op)
	if len(rc.Events) > 0 {
		evs := make([]*structpb.Value, len(rc.Events))
		for i, e := range rc.Events {
			evs[i] = encodeEvent(e)
		}
		f["events"] = structpb.NewListValue(&structpb.ListValue{Values: evs})
	}
	return f.build()
}

func DecodeReceipt(s *structpb.Struct) (*Receipt, error) {
	r := &reader{s: s}
	rc := &Receipt{Op: r.str("op")}
	for _, v := range r.list("events") {
		rc.Events = append(rc.Events, decodeEvent(r, v))
	}
	if err := r.done("receipt"); err != nil {
		return nil, err
	}
	return rc, nil
}

func EncodeInfo(in *Info) *structpb.Struct {
	f := fields{}
	f.str("status", in.Status)
	f.str("cluster", in.Cluster)
	f.addr("program_id", in.ProgramID)
	f.str("attestation_domain", in.AttestationDomain)
	f.i64("now", in.Now)
	return f.build()
}

func DecodeInfo(s *structpb.Struct) (*Info, error) {
	r := &reader{s: s}
	in := &Info{
		Status:            r.str("status"),
		Cluster:           r.str("cluster"),
		ProgramID:         r.addr("program_id"),
		AttestationDomain: r.str("attestation_domain"),
		Now:               r.i64("now"),
	}
	if err := r.done("info"); err != nil {
		return nil, err
	}
	return in, nil
}

func EncodeAirdrop(to escrow.Address, lamports uint64) *structpb.Struct {
	f := fields{}
	f.addr("address", to)
	f.u64("lamports", lamports)
	return f.build()
}

func DecodeAirdrop(s *structpb.Struct) (escrow.Address, uint64, error) {
	r := &reader{s: s}
	to := r.addr("address")
	lamports := r.u64("lamports")
	if err := r.done("airdrop"); err != nil {
		return escrow.Address{}, 0, err
	}
	return to, lamports, nil
}
