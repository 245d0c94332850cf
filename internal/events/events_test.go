package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/wakevault/internal/escrow"
	"github.com/dmitrijs2005/wakevault/internal/logging"
)

type logLine struct {
	msg  string
	args []any
}

type recLogger struct {
	mu    sync.Mutex
	lines *[]logLine
}

func newRecLogger() *recLogger {
	return &recLogger{lines: &[]logLine{}}
}

func (l *recLogger) add(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.lines = append(*l.lines, logLine{msg: msg, args: args})
}

func (l *recLogger) Info(_ context.Context, msg string, args ...any)  { l.add(msg, args...) }
func (l *recLogger) Warn(_ context.Context, msg string, args ...any)  { l.add(msg, args...) }
func (l *recLogger) Error(_ context.Context, msg string, args ...any) { l.add(msg, args...) }
func (l *recLogger) With(args ...any) logging.Logger                  { return l }

func sampleEvents() []escrow.Event {
	return []escrow.Event{
		{Kind: escrow.EventAlarmCreated, AlarmID: 1, Amount: 5, Transfers: []escrow.Transfer{{Amount: 5, Reason: escrow.ReasonDeposit}}},
		{Kind: escrow.EventAlarmClaimed, AlarmID: 1, Amount: 5},
	}
}

func TestLogPublisher(t *testing.T) {
	l := newRecLogger()
	p := NewLogPublisher(l)
	require.NoError(t, p.Publish(context.Background(), sampleEvents()))

	lines := *l.lines
	require.Len(t, lines, 3)
	assert.Equal(t, "event", lines[0].msg)
	assert.Equal(t, "transfer", lines[1].msg)
	assert.Equal(t, "event", lines[2].msg)
}

type fakeStream struct {
	args []*redis.XAddArgs
	err  error
}

func (f *fakeStream) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.args = append(f.args, a)
	return redis.NewStringResult("1-0", f.err)
}

func TestRedisPublisher(t *testing.T) {
	f := &fakeStream{}
	p := NewRedisPublisher(f, "wakevault:events", 1000)
	require.NoError(t, p.Publish(context.Background(), sampleEvents()))

	require.Len(t, f.args, 2)
	a := f.args[0]
	assert.Equal(t, "wakevault:events", a.Stream)
	assert.Equal(t, int64(1000), a.MaxLen)
	assert.True(t, a.Approx)

	values := a.Values.(map[string]interface{})
	assert.Equal(t, "AlarmCreated", values["kind"])
	var decoded escrow.Event
	require.NoError(t, json.Unmarshal([]byte(values["data"].(string)), &decoded))
	assert.Equal(t, sampleEvents()[0], decoded)
}

func TestRedisPublisher_Error(t *testing.T) {
	f := &fakeStream{err: errors.New("down")}
	p := NewRedisPublisher(f, "s", 0)
	err := p.Publish(context.Background(), sampleEvents())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xadd s")
	assert.Len(t, f.args, 1)
}

type fakePutter struct {
	keys   []string
	bodies []string
	err    error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.keys = append(f.keys, *in.Key)
	f.bodies = append(f.bodies, string(b))
	return &s3.PutObjectOutput{}, nil
}

func TestArchive_FlushWritesJSONLines(t *testing.T) {
	f := &fakePutter{}
	a := NewArchive(f, "bucket", "events/", 0, newRecLogger())
	a.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }
	ctx := context.Background()

	require.NoError(t, a.Publish(ctx, sampleEvents()))
	assert.Equal(t, 2, a.Pending())
	assert.Empty(t, f.keys)

	require.NoError(t, a.Flush(ctx))
	assert.Zero(t, a.Pending())
	require.Len(t, f.keys, 1)
	assert.True(t, strings.HasPrefix(f.keys[0], "events/2026/03/04/"))
	assert.True(t, strings.HasSuffix(f.keys[0], ".jsonl"))

	lines := strings.Split(strings.TrimSpace(f.bodies[0]), "\n")
	require.Len(t, lines, 2)
	var e escrow.Event
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &e))
	assert.Equal(t, escrow.EventAlarmClaimed, e.Kind)

	require.NoError(t, a.Flush(ctx))
	assert.Len(t, f.keys, 1, "empty flush writes nothing")
}

func TestArchive_FlushAtLimit(t *testing.T) {
	f := &fakePutter{}
	a := NewArchive(f, "bucket", "", 2, newRecLogger())
	require.NoError(t, a.Publish(context.Background(), sampleEvents()))
	assert.Len(t, f.keys, 1)
	assert.Zero(t, a.Pending())
}

func TestArchive_FlushErrorKeepsEvents(t *testing.T) {
	f := &fakePutter{err: errors.New("no bucket")}
	a := NewArchive(f, "bucket", "", 0, newRecLogger())
	ctx := context.Background()
	require.NoError(t, a.Publish(ctx, sampleEvents()))

	require.Error(t, a.Flush(ctx))
	assert.Equal(t, 2, a.Pending())

	f.err = nil
	require.NoError(t, a.Flush(ctx))
	assert.Zero(t, a.Pending())
}

func TestArchive_EncodeErrorKeepsEvents(t *testing.T) {
	f := &fakePutter{}
	a := NewArchive(f, "bucket", "", 0, newRecLogger())
	a.encode = func(*bytes.Buffer, escrow.Event) error { return errors.New("bad event") }
	ctx := context.Background()
	require.NoError(t, a.Publish(ctx, sampleEvents()))

	require.Error(t, a.Flush(ctx))
	assert.Equal(t, 2, a.Pending())
	assert.Empty(t, f.keys)

	a.encode = encodeLine
	require.NoError(t, a.Flush(ctx))
	assert.Zero(t, a.Pending())
	require.Len(t, f.keys, 1)
	assert.Len(t, strings.Split(strings.TrimSpace(f.bodies[0]), "\n"), 2)
}

type errPublisher struct{ err error }

func (p errPublisher) Publish(context.Context, []escrow.Event) error { return p.err }

func TestMulti(t *testing.T) {
	f := &fakeStream{}
	e1 := errors.New("one")
	m := Multi{errPublisher{err: e1}, NewRedisPublisher(f, "s", 0), Discard{}}

	err := m.Publish(context.Background(), sampleEvents())
	require.ErrorIs(t, err, e1)
	assert.Len(t, f.args, 2, "later publishers still run")

	assert.NoError(t, Multi{Discard{}}.Publish(context.Background(), nil))
}
