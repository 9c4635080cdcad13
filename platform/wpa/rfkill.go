package wpa

import (
	"encoding/binary"

	"github.com/go-errors/errors"
	"golang.org/x/sys/unix"
)

// rfkill event layout and constants from linux/rfkill.h.
const (
	rfkillEventSize = 8

	rfkillTypeAll  = 0
	rfkillTypeWlan = 1

	rfkillOpAdd       = 0
	rfkillOpDel       = 1
	rfkillOpChange    = 2
	rfkillOpChangeAll = 3
)

type rfkillEvent struct {
	Idx  uint32
	Type uint8
	Op   uint8
	Soft bool
	Hard bool
}

func (e rfkillEvent) marshal() []byte {
	b := make([]byte, rfkillEventSize)
	binary.LittleEndian.PutUint32(b[0:4], e.Idx)
	b[4] = e.Type
	b[5] = e.Op
	if e.Soft {
		b[6] = 1
	}
	if e.Hard {
		b[7] = 1
	}

	return b
}

func parseRfkillEvent(b []byte) (rfkillEvent, error) {
	if len(b) < rfkillEventSize {
		return rfkillEvent{}, errors.Errorf("short rfkill event of %d bytes", len(b))
	}

	return rfkillEvent{
		Idx:  binary.LittleEndian.Uint32(b[0:4]),
		Type: b[4],
		Op:   b[5],
		Soft: b[6] != 0,
		Hard: b[7] != 0,
	}, nil
}

// wlanDevices tracks the block state of every wlan rfkill device.
type wlanDevices map[uint32]rfkillEvent

// apply folds an event into the device set and reports whether it
// concerned a wlan device.
func (d wlanDevices) apply(e rfkillEvent) bool {
	if e.Type != rfkillTypeWlan && e.Type != rfkillTypeAll {
		return false
	}

	switch e.Op {
	case rfkillOpAdd, rfkillOpChange:
		if e.Type != rfkillTypeWlan {
			return false
		}
		d[e.Idx] = e
	case rfkillOpDel:
		delete(d, e.Idx)
	case rfkillOpChangeAll:
		for idx, dev := range d {
			dev.Soft = e.Soft
			d[idx] = dev
		}
	default:
		return false
	}

	return true
}

// enabled reports whether any wlan device is unblocked.
func (d wlanDevices) enabled() bool {
	for _, dev := range d {
		if !dev.Soft && !dev.Hard {
			return true
		}
	}

	return false
}

type rfkill struct {
	path string
}

// devices reads the current state of every wlan device. Opening the rfkill
// device replays one add event per device.
func (r *rfkill) devices() (wlanDevices, error) {
	fd, err := unix.Open(r.path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Errorf("could not open %v: %v", r.path, err)
	}
	defer unix.Close(fd)

	devices := wlanDevices{}
	buf := make([]byte, rfkillEventSize)

	for {
		n, err := unix.Read(fd, buf)
		if err == unix.EAGAIN {
			return devices, nil
		}
		if err != nil {
			return nil, errors.Errorf("could not read %v: %v", r.path, err)
		}
		if n == 0 {
			return devices, nil
		}

		e, err := parseRfkillEvent(buf[:n])
		if err != nil {
			return nil, err
		}

		devices.apply(e)
	}
}

func (r *rfkill) Enabled() (bool, error) {
	devices, err := r.devices()
	if err != nil {
		return false, err
	}

	return devices.enabled(), nil
}

// SetEnabled soft blocks or unblocks every wlan device.
func (r *rfkill) SetEnabled(enabled bool) error {
	fd, err := unix.Open(r.path, unix.O_WRONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return errors.Errorf("could not open %v: %v", r.path, err)
	}
	defer unix.Close(fd)

	e := rfkillEvent{Type: rfkillTypeWlan, Op: rfkillOpChangeAll, Soft: !enabled}

	_, err = unix.Write(fd, e.marshal())
	if err != nil {
		return errors.Errorf("could not write %v: %v", r.path, err)
	}

	return nil
}

// watch calls changed with the radio state whenever it flips, until done is
// closed.
func (r *rfkill) watch(done <-chan struct{}, changed func(enabled bool)) error {
	fd, err := unix.Open(r.path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return errors.Errorf("could not open %v: %v", r.path, err)
	}

	go func() {
		defer unix.Close(fd)

		devices := wlanDevices{}
		buf := make([]byte, rfkillEventSize)
		primed := false
		last := false

		for {
			select {
			case <-done:
				return
			default:
			}

			fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
			n, err := unix.Poll(fds, 500)
			if err != nil && err != unix.EINTR {
				return
			}

			if n > 0 {
				for {
					m, err := unix.Read(fd, buf)
					if err != nil || m == 0 {
						break
					}

					e, err := parseRfkillEvent(buf[:m])
					if err != nil {
						continue
					}

					devices.apply(e)
				}
			}

			// the initial replay only establishes the baseline
			enabled := devices.enabled()
			if primed && enabled != last {
				changed(enabled)
			}

			primed = true
			last = enabled
		}
	}()

	return nil
}
