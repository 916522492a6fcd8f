package nfsmount

import (
	"errors"
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	nfs "github.com/willscott/go-nfs"
	nfshelper "github.com/willscott/go-nfs/helpers"
)

// handleCacheSize bounds the file handles go-nfs keeps for a PageFS.
const handleCacheSize = 4096

// Server serves a PageFS over NFSv3 until closed.
type Server struct {
	listener net.Listener
	port     int
	done     chan error
}

// NewServer listens on addr and serves fs. An empty addr picks an ephemeral
// port on all interfaces.
func NewServer(fs billy.Filesystem, addr string) (*Server, error) {
	if addr == "" {
		addr = ":0"
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("nfs listen on %s: %w", addr, err)
	}

	handler := nfshelper.NewCachingHandler(nfshelper.NewNullAuthHandler(fs), handleCacheSize)
	s := &Server{
		listener: listener,
		port:     listener.Addr().(*net.TCPAddr).Port,
		done:     make(chan error, 1),
	}
	go func() { s.done <- nfs.Serve(listener, handler) }()
	return s, nil
}

func (s *Server) Port() int { return s.port }

// Close stops accepting connections and waits for the serve loop to exit.
func (s *Server) Close() error {
	if err := s.listener.Close(); err != nil {
		return err
	}
	if err := <-s.done; err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("nfs serve: %w", err)
	}
	return nil
}

// mountArgs is the mount(8) invocation for the local server on goos. The
// page tree has no write path, so the mount is always read-only and never
// takes NFS locks.
func mountArgs(goos string, port int, mountpoint string) ([]string, error) {
	opts := []string{
		fmt.Sprintf("port=%d", port),
		fmt.Sprintf("mountport=%d", port),
		"vers=3",
		"tcp",
	}
	switch goos {
	case "darwin":
		opts = append(opts, "locallocks", "noresvport", "rdonly")
	case "linux":
		opts = append(opts, "local_lock=all", "nolock", "ro")
	default:
		return nil, fmt.Errorf("mounting is not supported on %s", goos)
	}
	return []string{"mount", "-t", "nfs", "-o", strings.Join(opts, ","), "localhost:/", mountpoint}, nil
}

// Mount mounts the server on port at mountpoint through sudo.
func Mount(port int, mountpoint string) error {
	args, err := mountArgs(runtime.GOOS, port, mountpoint)
	if err != nil {
		return err
	}
	if out, err := exec.Command("sudo", args...).CombinedOutput(); err != nil {
		return fmt.Errorf("mount %s: %w\n%s", mountpoint, err, out)
	}
	return nil
}

// Unmount releases mountpoint. On macOS diskutil is tried first since it
// needs no sudo for user NFS mounts.
func Unmount(mountpoint string) error {
	if runtime.GOOS == "darwin" {
		if err := exec.Command("diskutil", "unmount", mountpoint).Run(); err == nil {
			return nil
		}
	}
	if out, err := exec.Command("sudo", "umount", mountpoint).CombinedOutput(); err != nil {
		return fmt.Errorf("unmount %s: %w\n%s", mountpoint, err, out)
	}
	return nil
}
