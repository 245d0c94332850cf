package server

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/wakevault/internal/events"
	"github.com/dmitrijs2005/wakevault/internal/server/config"
)

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.EndpointAddrGRPC = "127.0.0.1:0"
	c.EndpointAddrHTTP = "127.0.0.1:0"
	c.ShutdownTimeout = time.Second
	return c
}

func TestNewApp_Memory(t *testing.T) {
	var out bytes.Buffer
	c := testConfig()
	c.KeeperEnabled = true

	app, err := NewApp(context.Background(), c, &out)
	require.NoError(t, err)
	defer app.Close()

	require.NotNil(t, app.runtime)
	require.NotNil(t, app.keeper)
	assert.Nil(t, app.archive)
	assert.Contains(t, out.String(), "keeper enabled")
}

func TestNewApp_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"log backend", func(c *config.Config) { c.LogBackend = "syslog" }},
		{"program id", func(c *config.Config) { c.ProgramID = "!!" }},
		{"store", func(c *config.Config) { c.Store = "bolt" }},
		{"keeper seed", func(c *config.Config) { c.KeeperEnabled = true; c.KeeperSeed = "abcd" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testConfig()
			tt.mutate(c)
			_, err := NewApp(context.Background(), c, &bytes.Buffer{})
			require.Error(t, err)
		})
	}
}

func TestNewPublisher_Archive(t *testing.T) {
	c := testConfig()
	c.S3Bucket = "events"
	c.S3AccessKey = "key"
	c.S3SecretKey = "secret"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"

	app, err := NewApp(context.Background(), c, &bytes.Buffer{})
	require.NoError(t, err)
	defer app.Close()

	require.NotNil(t, app.archive)
	pub, err := app.newPublisher(context.Background())
	require.NoError(t, err)
	assert.Len(t, pub.(events.Multi), 2)
}

func TestKeeperKey(t *testing.T) {
	seed := strings.Repeat("01", ed25519.SeedSize)
	a, err := keeperKey(seed)
	require.NoError(t, err)
	b, err := keeperKey(seed)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	r1, err := keeperKey("")
	require.NoError(t, err)
	r2, err := keeperKey("")
	require.NoError(t, err)
	assert.NotEqual(t, r1, r2)

	_, err = keeperKey("zz")
	require.Error(t, err)
	_, err = keeperKey("0102")
	require.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	c := testConfig()
	c.KeeperEnabled = true
	app, err := NewApp(context.Background(), c, io.Discard)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestRun_BadSchedule(t *testing.T) {
	c := testConfig()
	c.KeeperEnabled = true
	c.KeeperSchedule = "every tuesday"
	app, err := NewApp(context.Background(), c, io.Discard)
	require.NoError(t, err)

	require.Error(t, app.Run(context.Background()))
}
