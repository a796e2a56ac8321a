package fsops

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTP v3 status codes (draft-ietf-secsh-filexfer-02, section 7)
const (
	sftpNoSuchFile       = 2
	sftpPermissionDenied = 3
	sftpFailure          = 4
)

var errSFTPIsDirectory = errors.New("is a directory")

// SFTPFS implements FS on top of an SFTP session
type SFTPFS struct {
	client    *sftp.Client
	sshClient *ssh.Client
}

// SFTPOptions describes how to reach a remote SFTP server
type SFTPOptions struct {
	Address               string
	User                  string
	Password              string
	PrivateKeyPath        string
	KnownHostsPath        string
	InsecureIgnoreHostKey bool
	Timeout               time.Duration
}

// NewSFTPFS wraps an existing SFTP client. Close does not close the client.
func NewSFTPFS(client *sftp.Client) *SFTPFS {
	return &SFTPFS{client: client}
}

// DialSFTP opens an SSH connection and an SFTP session on it
func DialSFTP(opts SFTPOptions) (*SFTPFS, error) {
	auth, err := sshAuth(opts)
	if err != nil {
		return nil, err
	}
	hostKeyCallback, err := hostKeyCallback(opts)
	if err != nil {
		return nil, err
	}

	addr := opts.Address
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}

	sshClient, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            opts.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         opts.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("start sftp session: %w", err)
	}
	return &SFTPFS{client: client, sshClient: sshClient}, nil
}

func sshAuth(opts SFTPOptions) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if opts.PrivateKeyPath != "" {
		key, err := os.ReadFile(opts.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if opts.Password != "" {
		methods = append(methods, ssh.Password(opts.Password))
	}
	if len(methods) == 0 {
		return nil, errors.New("sftp: no authentication method configured")
	}
	return methods, nil
}

func hostKeyCallback(opts SFTPOptions) (ssh.HostKeyCallback, error) {
	if opts.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	path := opts.KnownHostsPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locate known_hosts: %w", err)
		}
		path = home + "/.ssh/known_hosts"
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts %s: %w", path, err)
	}
	return cb, nil
}

// Close ends the SFTP session and the SSH connection if DialSFTP opened them
func (s *SFTPFS) Close() error {
	if s.sshClient == nil {
		return nil
	}
	err := s.client.Close()
	if cerr := s.sshClient.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *SFTPFS) Stat(_ context.Context, name string) (Status, error) {
	fi, err := s.client.Stat(name)
	if err != nil {
		return Status{}, wrapSFTP("stat", name, err)
	}
	return StatusFromFileInfo(fi), nil
}

func (s *SFTPFS) Lstat(_ context.Context, name string) (Status, error) {
	fi, err := s.client.Lstat(name)
	if err != nil {
		return Status{}, wrapSFTP("lstat", name, err)
	}
	return StatusFromFileInfo(fi), nil
}

func (s *SFTPFS) ReadDir(_ context.Context, name string) ([]string, error) {
	infos, err := s.client.ReadDir(name)
	if err != nil {
		return nil, wrapSFTP("readdir", name, err)
	}
	names := make([]string, 0, len(infos))
	for _, fi := range infos {
		names = append(names, fi.Name())
	}
	return names, nil
}

// Unlink removes a non-directory entry. The client's Remove retries as rmdir
// when the server refuses the file removal, so directories are refused here
// before any removal request is sent.
func (s *SFTPFS) Unlink(_ context.Context, name string) error {
	fi, err := s.client.Lstat(name)
	if err != nil {
		return wrapSFTP("unlink", name, err)
	}
	if fi.IsDir() {
		return &Error{Op: "unlink", Path: name, Kind: KindOther, Err: errSFTPIsDirectory}
	}
	return wrapSFTP("unlink", name, s.client.Remove(name))
}

func (s *SFTPFS) Rmdir(_ context.Context, name string) error {
	return wrapSFTP("rmdir", name, s.client.RemoveDirectory(name))
}

func wrapSFTP(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Path: path, Kind: classifySFTP(op, err), Err: err}
}

// classifySFTP maps SFTP status codes to a Kind. Protocol v3 has no
// "directory not empty" code; servers answer a failed rmdir with FAILURE.
func classifySFTP(op string, err error) Kind {
	var se *sftp.StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case sftpNoSuchFile:
			return KindNotFound
		case sftpPermissionDenied:
			return KindPermission
		case sftpFailure:
			if op == "rmdir" {
				return KindNotEmpty
			}
			return KindOther
		}
	}
	return Classify(err)
}
