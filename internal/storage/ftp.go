package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/textproto"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/Deven-0012/Cloud-281/internal/conf"
	"github.com/Deven-0012/Cloud-281/internal/errors"
)

// FTPStore fetches and stores audio captures on a remote FTP server. Each
// operation dials a fresh connection; upload volume per vehicle is low enough
// that pooling is not worth the bookkeeping.
type FTPStore struct {
	host     string
	username string
	password string
	basePath string
	timeout  time.Duration
}

// NewFTPStore creates a store for the configured FTP backend.
func NewFTPStore(settings *conf.StorageSettings) *FTPStore {
	port := settings.FTP.Port
	if port == 0 {
		port = 21
	}
	timeout := settings.FTP.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FTPStore{
		host:     fmt.Sprintf("%s:%d", settings.FTP.Host, port),
		username: settings.FTP.Username,
		password: settings.FTP.Password,
		basePath: settings.FTP.BasePath,
		timeout:  timeout,
	}
}

// Fetch downloads the bytes for locator.
func (s *FTPStore) Fetch(ctx context.Context, locator string) ([]byte, error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Quit() //nolint:errcheck // connection is discarded either way

	resp, err := conn.Retr(path.Join(s.basePath, locator))
	if err != nil {
		if isNotFoundReply(err) {
			return nil, errors.Newf("audio object %s not found", locator).
				Component("storage").
				Category(errors.CategoryNotFound).
				Build()
		}
		return nil, errors.New(err).
			Component("storage").
			Category(errors.CategoryStorage).
			Context("locator", locator).
			Build()
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, errors.New(err).
			Component("storage").
			Category(errors.CategoryStorage).
			Context("locator", locator).
			Build()
	}
	return data, nil
}

// Put uploads data under locator, creating remote directories as needed.
func (s *FTPStore) Put(ctx context.Context, locator string, data []byte) error {
	conn, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Quit() //nolint:errcheck

	remote := path.Join(s.basePath, locator)
	if dir := path.Dir(remote); dir != "." && dir != "/" {
		// MakeDir fails if the directory exists; that's fine.
		s.makeDirAll(conn, dir)
	}

	if err := conn.Stor(remote, bytes.NewReader(data)); err != nil {
		return errors.New(err).
			Component("storage").
			Category(errors.CategoryStorage).
			Context("locator", locator).
			Build()
	}
	return nil
}

func (s *FTPStore) connect(ctx context.Context) (*ftp.ServerConn, error) {
	conn, err := ftp.Dial(s.host,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(s.timeout),
	)
	if err != nil {
		return nil, errors.New(err).
			Component("storage").
			Category(errors.CategoryNetwork).
			Context("host", s.host).
			Build()
	}
	if err := conn.Login(s.username, s.password); err != nil {
		conn.Quit() //nolint:errcheck
		return nil, errors.New(err).
			Component("storage").
			Category(errors.CategoryNetwork).
			Context("host", s.host).
			Build()
	}
	return conn, nil
}

func (s *FTPStore) makeDirAll(conn *ftp.ServerConn, dir string) {
	parts := strings.Split(strings.Trim(dir, "/"), "/")
	current := ""
	for _, part := range parts {
		current = current + "/" + part
		conn.MakeDir(current) //nolint:errcheck // exists already or Stor will fail
	}
}

// isNotFoundReply reports whether err is an FTP 550 reply (file unavailable).
func isNotFoundReply(err error) bool {
	var proto *textproto.Error
	if errors.As(err, &proto) {
		return proto.Code == ftp.StatusFileUnavailable
	}
	return strings.Contains(err.Error(), "550")
}
