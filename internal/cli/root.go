// Package cli implements the coartistry command line client.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"coartistry-backend/internal/logging"
)

// options 모든 하위 명령이 공유하는 전역 플래그
type options struct {
	server      string
	token       string
	sessionPath string
	timeout     time.Duration
	verbose     bool
}

func (o *options) api() api {
	return api{server: o.server, timeout: o.timeout}
}

// credential returns the --token flag or the saved session token.
func (o *options) credential() (string, error) {
	if o.token != "" {
		return o.token, nil
	}
	s, err := LoadSession(o.sessionPath)
	if err != nil {
		return "", err
	}
	return s.Token, nil
}

func (o *options) logger() *zap.Logger {
	level := "warn"
	if o.verbose {
		level = "debug"
	}
	log, err := logging.New(level, "console")
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	o := &options{}

	rootCmd := &cobra.Command{
		Use:   "coartistry",
		Short: "CoArtistry collaborative canvas client",
		Long: `coartistry talks to a CoArtistry backend: it manages accounts and rooms
over HTTP and joins the real-time relay to draw on or mirror a shared canvas.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	server := os.Getenv("COARTISTRY_SERVER")
	if server == "" {
		server = "http://localhost:3000"
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&o.server, "server", server, "backend base URL (env COARTISTRY_SERVER)")
	flags.StringVar(&o.token, "token", "", "access token (defaults to the saved session)")
	flags.StringVar(&o.sessionPath, "session", DefaultSessionPath(), "session file path")
	flags.DurationVar(&o.timeout, "timeout", 10*time.Second, "request timeout")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(
		newRegisterCmd(o),
		newLoginCmd(o),
		newLogoutCmd(o),
		newCreateRoomCmd(o),
		newJoinRoomCmd(o),
		newDrawCmd(o),
		newUndoCmd(o),
		newWatchCmd(o),
	)
	return rootCmd
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// readPassword 터미널이면 마스킹 입력, 아니면 한 줄 읽기
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", fmt.Errorf("empty password")
	}
	return pw, nil
}
