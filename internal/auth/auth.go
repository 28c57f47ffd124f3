package auth

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/term"

	"github.com/GriffinCanCode/orchard/internal/api"
)

const (
	firstPrompt = "Orchard username: "
	retryPrompt = "Username: "

	expiredMessage = "Oh dear, looks like your API token has expired. We'll need to log you in again."
	retryMessage   = "Sorry, that doesn't look right. Try again?"
)

// ErrNoCredentials is returned when the input ends before a username and
// password were read.
var ErrNoCredentials = errors.New("no credentials entered")

// Options configures an Authenticator.
type Options struct {
	// TokenDir holds one token file per API base URL.
	TokenDir string
	Client   *api.Orchard

	// Input supplies the username and password, os.Stdin by default. The
	// password is read without echo when Input is a terminal.
	Input  io.Reader
	Output io.Writer
	Logger *zap.Logger
}

// Authenticator keeps an Orchard client signed in, persisting its token
// between runs.
type Authenticator struct {
	client    *api.Orchard
	tokenFile string
	input     io.Reader
	reader    *bufio.Reader
	output    io.Writer
	logger    *zap.Logger
}

// New creates an Authenticator, creating the token directory if needed.
func New(opts Options) (*Authenticator, error) {
	if opts.Client == nil {
		return nil, errors.New("auth: client is required")
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	if err := os.MkdirAll(opts.TokenDir, 0o700); err != nil {
		return nil, fmt.Errorf("create token directory: %w", err)
	}

	return &Authenticator{
		client:    opts.Client,
		tokenFile: filepath.Join(opts.TokenDir, TokenFileName(opts.Client.BaseURL())),
		input:     opts.Input,
		reader:    bufio.NewReader(opts.Input),
		output:    opts.Output,
		logger:    opts.Logger,
	}, nil
}

// TokenFileName is the hex BLAKE2b-256 digest of the API base URL, so
// tokens for different API endpoints never collide.
func TokenFileName(baseURL string) string {
	sum := blake2b.Sum256([]byte(baseURL))
	return hex.EncodeToString(sum[:])
}

// TokenFile returns the path the token is stored at.
func (a *Authenticator) TokenFile() string {
	return a.tokenFile
}

// Authenticate signs the client in, reusing the stored token while the API
// still accepts it and prompting for credentials otherwise.
func (a *Authenticator) Authenticate(ctx context.Context) error {
	token, err := a.LoadToken()
	if err != nil {
		return err
	}

	if token != "" {
		a.client.SetToken(token)
		_, err := a.client.CustomerData(ctx)
		if err == nil {
			return nil
		}
		if !api.IsUnauthorized(err) {
			return err
		}
		a.client.SetToken("")
		a.logger.Error(expiredMessage)
	}

	return a.Login(ctx)
}

// Login prompts until the credentials are accepted and stores the new
// token.
func (a *Authenticator) Login(ctx context.Context) error {
	prompt := firstPrompt
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		username, err := a.readLine(prompt)
		if err != nil {
			return err
		}
		password, err := a.readPassword("Password: ")
		if err != nil {
			return err
		}

		token, err := a.client.SignIn(ctx, username, password)
		if errors.Is(err, api.ErrAuthenticationFailed) {
			a.logger.Error(retryMessage)
			prompt = retryPrompt
			continue
		}
		if err != nil {
			return err
		}

		a.logger.Debug("signed in", zap.String("username", username))
		return a.StoreToken(token)
	}
}

// Logout forgets the stored token.
func (a *Authenticator) Logout() error {
	a.client.SetToken("")
	if err := os.Remove(a.tokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

// LoadToken returns the stored token, or "" if there is none.
func (a *Authenticator) LoadToken() (string, error) {
	data, err := os.ReadFile(a.tokenFile)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// StoreToken writes the token readable only by the current user.
func (a *Authenticator) StoreToken(token string) error {
	if err := os.WriteFile(a.tokenFile, []byte(token), 0o600); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(a.tokenFile, 0o600); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

func (a *Authenticator) readLine(prompt string) (string, error) {
	fmt.Fprint(a.output, prompt)
	line, err := a.reader.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		if errors.Is(err, io.EOF) {
			return "", ErrNoCredentials
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *Authenticator) readPassword(prompt string) (string, error) {
	f, ok := a.input.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return a.readLine(prompt)
	}

	fmt.Fprint(a.output, prompt)
	password, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(a.output)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(password), nil
}
