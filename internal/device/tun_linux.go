//go:build linux

package device

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

const tunCloneDevice = "/dev/net/tun"

// linuxTUN implements NetworkDevice for Linux TUN.
type linuxTUN struct {
	name   string
	mtu    int
	fd     *os.File
	closed bool
	mu     sync.Mutex
}

// createPlatformTUN creates a TUN device on Linux.
func createPlatformTUN(cfg Config) (NetworkDevice, error) {
	fd, err := os.OpenFile(tunCloneDevice, os.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		if os.IsPermission(err) {
			return nil, ErrPermissionDenied
		}
		return nil, &DeviceError{Op: "open", Err: err}
	}

	ifr, err := unix.NewIfreq(cfg.Name)
	if err != nil {
		fd.Close()
		return nil, &DeviceError{Op: "ifreq", Err: err}
	}

	// TUN mode, no packet info header
	ifr.SetUint16(unix.IFF_TUN | unix.IFF_NO_PI)

	if err := ioctlIfreq(fd, unix.TUNSETIFF, ifr); err != nil {
		fd.Close()
		switch {
		case errors.Is(err, unix.EPERM):
			return nil, ErrPermissionDenied
		case errors.Is(err, unix.EBUSY):
			return nil, fmt.Errorf("%w: %s", ErrDeviceAlreadyExists, cfg.Name)
		}
		return nil, &DeviceError{Op: "ioctl TUNSETIFF", Err: err}
	}

	tun := &linuxTUN{
		name: ifr.Name(),
		mtu:  cfg.MTU,
		fd:   fd,
	}

	if err := tun.configure(cfg); err != nil {
		tun.Close()
		return nil, err
	}

	return tun, nil
}

// ioctlIfreq runs an ifreq ioctl without calling f.Fd, which would switch
// the descriptor to blocking mode and stop Close from interrupting Read.
func ioctlIfreq(f *os.File, req uint, ifr *unix.Ifreq) error {
	rc, err := f.SyscallConn()
	if err != nil {
		return err
	}
	var ioctlErr error
	if err := rc.Control(func(fd uintptr) {
		ioctlErr = unix.IoctlIfreq(int(fd), req, ifr)
	}); err != nil {
		return err
	}
	return ioctlErr
}

// configure sets MTU and address and brings the link up.
func (t *linuxTUN) configure(cfg Config) error {
	link, err := netlink.LinkByName(t.name)
	if err != nil {
		return &DeviceError{Op: "get link", Err: err}
	}

	if err := netlink.LinkSetMTU(link, cfg.MTU); err != nil {
		return &DeviceError{Op: "set MTU", Err: err}
	}

	if cfg.Address != "" {
		addr, err := netlink.ParseAddr(cfg.Address)
		if err != nil {
			return &DeviceError{Op: "parse address", Err: err}
		}
		if err := netlink.AddrAdd(link, addr); err != nil && !errors.Is(err, unix.EEXIST) {
			return &DeviceError{Op: "set address", Err: err}
		}
	}

	if err := netlink.LinkSetUp(link); err != nil {
		return &DeviceError{Op: "set up", Err: err}
	}

	return nil
}

// Name returns the interface name.
func (t *linuxTUN) Name() string {
	return t.name
}

// Read reads a packet from the TUN device.
func (t *linuxTUN) Read(buf []byte) (int, error) {
	fd, err := t.file()
	if err != nil {
		return 0, err
	}

	n, err := fd.Read(buf)
	if err != nil {
		return 0, &DeviceError{Op: "read", Err: err}
	}
	return n, nil
}

// Write writes a packet to the TUN device.
func (t *linuxTUN) Write(buf []byte) (int, error) {
	fd, err := t.file()
	if err != nil {
		return 0, err
	}

	n, err := fd.Write(buf)
	if err != nil {
		return 0, &DeviceError{Op: "write", Err: err}
	}
	return n, nil
}

func (t *linuxTUN) file() (*os.File, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrDeviceClosed
	}
	return t.fd, nil
}

// Close closes the TUN device. A blocked Read returns once the descriptor
// is closed.
func (t *linuxTUN) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	if t.fd != nil {
		return t.fd.Close()
	}
	return nil
}

// MTU returns the MTU of the interface.
func (t *linuxTUN) MTU() int {
	return t.mtu
}
