package writerbackends

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"path"
	"time"

	"vidshape/logger"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

const sftpDialTimeout = 10 * time.Second

// sftpTarget is the parsed form of an SFTP accessInfo map.
type sftpTarget struct {
	addr       string
	remotePath string
	config     *ssh.ClientConfig
}

// parseSFTPTarget reads host, port (default 22), user, password or privateKey
// (base64 or raw PEM), an optional pinned hostKey in authorized_keys format,
// remoteDir, folder and filename.
func parseSFTPTarget(accessInfo map[string]string) (*sftpTarget, error) {
	host, user := accessInfo["host"], accessInfo["user"]
	if host == "" || user == "" || accessInfo["filename"] == "" {
		return nil, errors.New("sftp: host, user and filename are required")
	}
	port := accessInfo["port"]
	if port == "" {
		port = "22"
	}

	auth, err := sftpAuth(accessInfo["privateKey"], accessInfo["password"])
	if err != nil {
		return nil, err
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if pinned := accessInfo["hostKey"]; pinned != "" {
		pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(pinned))
		if err != nil {
			return nil, fmt.Errorf("sftp: parse host key: %w", err)
		}
		hostKeyCallback = ssh.FixedHostKey(pub)
	}

	return &sftpTarget{
		addr:       net.JoinHostPort(host, port),
		remotePath: path.Join(accessInfo["remoteDir"], objectKey(accessInfo)),
		config: &ssh.ClientConfig{
			User:            user,
			Auth:            []ssh.AuthMethod{auth},
			HostKeyCallback: hostKeyCallback,
			Timeout:         sftpDialTimeout,
		},
	}, nil
}

// sftpAuth prefers key auth over password auth.
func sftpAuth(privateKey, password string) (ssh.AuthMethod, error) {
	switch {
	case privateKey != "":
		pem, err := base64.StdEncoding.DecodeString(privateKey)
		if err != nil {
			pem = []byte(privateKey)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("sftp: parse private key: %w", err)
		}
		return ssh.PublicKeys(signer), nil
	case password != "":
		return ssh.Password(password), nil
	}
	return nil, errors.New("sftp: set password or privateKey")
}

// dial opens an SSH connection honouring ctx and starts an SFTP session on it.
// Closing the returned client also closes the SSH connection.
func (t *sftpTarget) dial(ctx context.Context) (*sftp.Client, func(), error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return nil, nil, fmt.Errorf("sftp: dial %s: %w", t.addr, err)
	}
	clientConn, chans, reqs, err := ssh.NewClientConn(conn, t.addr, t.config)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("sftp: handshake with %s: %w", t.addr, err)
	}
	sshClient := ssh.NewClient(clientConn, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, nil, fmt.Errorf("sftp: start session: %w", err)
	}
	return client, func() {
		client.Close()
		sshClient.Close()
	}, nil
}

// UploadToSFTPWithCreds uploads content to remoteDir/folder/filename over SFTP.
func UploadToSFTPWithCreds(ctx context.Context, accessInfo map[string]string, reader io.Reader) error {
	target, err := parseSFTPTarget(accessInfo)
	if err != nil {
		return err
	}
	client, closeAll, err := target.dial(ctx)
	if err != nil {
		return err
	}
	defer closeAll()

	if err := mkdirAllSFTP(client, path.Dir(target.remotePath)); err != nil {
		return err
	}

	f, err := client.Create(target.remotePath)
	if err != nil {
		return fmt.Errorf("sftp: create %s: %w", target.remotePath, err)
	}
	if _, err := io.Copy(f, reader); err != nil {
		f.Close()
		return fmt.Errorf("sftp: write %s: %w", target.remotePath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("sftp: close %s: %w", target.remotePath, err)
	}

	logger.Debugf("Uploaded %s to %s", target.remotePath, target.addr)
	return nil
}

// mkdirAllSFTP creates dir and any missing parents.
func mkdirAllSFTP(client *sftp.Client, dir string) error {
	if dir == "" || dir == "." || dir == "/" {
		return nil
	}
	info, err := client.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		return fmt.Errorf("sftp: %s exists and is not a directory", dir)
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("sftp: stat %s: %w", dir, err)
	}
	if err := mkdirAllSFTP(client, path.Dir(dir)); err != nil {
		return err
	}
	if err := client.Mkdir(dir); err != nil {
		return fmt.Errorf("sftp: mkdir %s: %w", dir, err)
	}
	return nil
}
