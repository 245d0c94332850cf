package cli

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/wakevault/internal/client/client"
	"github.com/dmitrijs2005/wakevault/internal/client/config"
	"github.com/dmitrijs2005/wakevault/internal/client/repositories/book"
	"github.com/dmitrijs2005/wakevault/internal/common"
	"github.com/dmitrijs2005/wakevault/internal/cryptox"
	"github.com/dmitrijs2005/wakevault/internal/escrow"
	"github.com/dmitrijs2005/wakevault/internal/filex"
	"github.com/dmitrijs2005/wakevault/internal/rpc"
)

type App struct {
	config *config.Config
	client client.Client
	book   book.Repository
	close  func() error

	reader *bufio.Reader
	out    io.Writer
	kdf    cryptox.KDFParams
	now    func() time.Time

	key        ed25519.PrivateKey
	deployment *rpc.Info
}

// NewApp opens the local book and prepares the server connection. The
// connection is lazy; nothing is dialed until the first remote command.
func NewApp(ctx context.Context, c *config.Config, in io.Reader, out io.Writer) (*App, error) {
	if err := filex.EnsureParentDir(c.BookPath); err != nil {
		return nil, fmt.Errorf("book directory: %w", err)
	}
	repos, err := client.InitDatabase(ctx, c.BookPath)
	if err != nil {
		return nil, fmt.Errorf("error initializing book: %w", err)
	}

	apiClient, err := client.NewVaultClientService(c.ServerEndpointAddr)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}

	a := newApp(c, apiClient, repos.Book, in, out)
	a.close = func() error {
		return errors.Join(apiClient.Close(), repos.Close())
	}
	return a, nil
}

func newApp(c *config.Config, cl client.Client, b book.Repository, in io.Reader, out io.Writer) *App {
	return &App{
		config: c,
		client: cl,
		book:   b,
		reader: bufio.NewReader(in),
		out:    out,
		kdf:    cryptox.DefaultKDF,
		now:    time.Now,
	}
}

func (a *App) Close() error {
	common.WipeByteArray(a.key)
	if a.close == nil {
		return nil
	}
	return a.close()
}

// Run executes one command line: args[0] is the command name.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.usage()
		return errUsage
	}
	if args[0] == "shell" {
		return a.shell(ctx)
	}
	return a.dispatch(ctx, args)
}

// remote bounds a server call by the configured timeout.
func (a *App) remote(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.config.Timeout)
}

// info returns the deployment identity, asking the server once.
func (a *App) info(ctx context.Context) (*rpc.Info, error) {
	if a.deployment != nil {
		return a.deployment, nil
	}
	ctx, cancel := a.remote(ctx)
	defer cancel()
	p, err := a.client.Ping(ctx)
	if err != nil {
		return nil, err
	}
	a.deployment = p
	return p, nil
}

// serverNow is the server's clock, which is what the escrow windows use.
func (a *App) serverNow(ctx context.Context) (int64, error) {
	ctx, cancel := a.remote(ctx)
	defer cancel()
	p, err := a.client.Ping(ctx)
	if err != nil {
		return 0, err
	}
	if a.deployment == nil {
		a.deployment = p
	}
	return p.Now, nil
}

func (a *App) programID(ctx context.Context) (escrow.Address, error) {
	p, err := a.info(ctx)
	if err != nil {
		return escrow.Address{}, err
	}
	return p.ProgramID, nil
}
