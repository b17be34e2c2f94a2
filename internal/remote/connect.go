package remote

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/filepulse/sftp-mcp-server/internal/config"
	"github.com/filepulse/sftp-mcp-server/internal/errs"
	"github.com/filepulse/sftp-mcp-server/internal/logging"
)

// Connect dials the server, authenticates with the static password and
// starts the sftp subsystem.
//
// The returned Session is never nil. On failure it is disconnected, records
// the ConnectionError that is also returned, and reports that error to every
// later operation.
func Connect(ctx context.Context, cfg config.SFTP) (*Session, error) {
	addr := cfg.Addr()
	logger := logging.WithContext(ctx).With(
		zap.String("addr", addr),
		zap.String("user", cfg.Username),
		zap.String("host_key_policy", string(cfg.HostKeyPolicy)))

	hostKeyCB, err := HostKeyCallback(cfg)
	if err != nil {
		return failed(logger, err)
	}
	if cfg.HostKeyPolicy == config.HostKeyAcceptAll {
		logger.Warn("host key verification disabled; any server identity is accepted")
	}

	sshCfg := &ssh.ClientConfig{
		User: cfg.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(cfg.Password),
			ssh.KeyboardInteractive(passwordChallenge(cfg.Password)),
		},
		HostKeyCallback: hostKeyCB,
		Timeout:         cfg.DialTimeout,
	}

	sshClient, err := dial(ctx, addr, sshCfg)
	if err != nil {
		return failed(logger, err)
	}

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return failed(logger, fmt.Errorf("start sftp subsystem: %w", err))
	}

	logger.Info("sftp session established")
	return New(client, sshClient), nil
}

func failed(logger *zap.Logger, cause error) (*Session, error) {
	err := errs.Connection(cause)
	logger.Error("sftp connection failed", zap.Error(err))
	return Disconnected(err), err
}

// dial opens the TCP connection with ctx and bounds the SSH handshake by
// the configured timeout.
func dial(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	d := net.Dialer{Timeout: cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	if cfg.Timeout > 0 {
		conn.SetDeadline(time.Now().Add(cfg.Timeout))
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetDeadline(time.Time{})

	return ssh.NewClient(c, chans, reqs), nil
}

// passwordChallenge answers every keyboard-interactive question with the
// password, which is what servers that disable plain password auth ask for.
func passwordChallenge(password string) ssh.KeyboardInteractiveChallenge {
	return func(_, _ string, questions []string, _ []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range answers {
			answers[i] = password
		}
		return answers, nil
	}
}

// HostKeyCallback builds the host key check selected by cfg.HostKeyPolicy.
func HostKeyCallback(cfg config.SFTP) (ssh.HostKeyCallback, error) {
	switch cfg.HostKeyPolicy {
	case config.HostKeyAcceptAll:
		return ssh.InsecureIgnoreHostKey(), nil
	case config.HostKeyFingerprint:
		want := strings.TrimPrefix(strings.TrimSpace(cfg.HostKeyFingerprint), "SHA256:")
		if want == "" {
			return nil, fmt.Errorf("host key fingerprint is empty")
		}
		return func(hostname string, _ net.Addr, key ssh.PublicKey) error {
			got := ssh.FingerprintSHA256(key)
			if strings.TrimPrefix(got, "SHA256:") != want {
				return fmt.Errorf("host key fingerprint mismatch for %s: server presented %s", hostname, got)
			}
			return nil
		}, nil
	case config.HostKeyKnownHosts, "":
		cb, err := knownhosts.New(cfg.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("load known hosts %s: %w", cfg.KnownHostsFile, err)
		}
		return cb, nil
	default:
		return nil, fmt.Errorf("unknown host key policy %q", cfg.HostKeyPolicy)
	}
}
