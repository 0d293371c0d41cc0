// Package device identifies the current machine and maps aliases to device ids.
package device

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/denisbrodbeck/machineid"

	gsberrors "git.home.luguber.info/inful/gsb/internal/errors"
	"git.home.luguber.info/inful/gsb/internal/logfields"
)

// AppID keys the HMAC applied to the OS machine id so the raw value never
// ends up in a shared repository.
const AppID = "gsb"

// Unknown is the id used when the machine id cannot be read. It matches no
// alias or ignore entry, so only default sources apply.
const Unknown = ""

// Reader reads a machine-level unique identifier.
type Reader interface {
	ReadMachineID() (string, error)
}

// MachineReader reads the OS machine id through machineid.
type MachineReader struct {
	AppID string
}

func (r MachineReader) ReadMachineID() (string, error) {
	return machineid.ProtectedID(r.AppID)
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func() (string, error)

func (f ReaderFunc) ReadMachineID() (string, error) { return f() }

// Identity derives the device id once and returns the same result afterwards.
type Identity struct {
	load func() (string, error)
}

// NewIdentity builds an Identity over r. r is consulted at most once.
func NewIdentity(r Reader) *Identity {
	return &Identity{load: sync.OnceValues(func() (string, error) {
		id, err := r.ReadMachineID()
		if err != nil {
			return Unknown, gsberrors.IdentityUnavailable(err)
		}
		id = strings.TrimSpace(id)
		if id == "" {
			return Unknown, gsberrors.IdentityUnavailable(errors.New("machine id is empty"))
		}
		return id, nil
	})}
}

// ID returns the device id or an IdentityUnavailable error.
func (i *Identity) ID() (string, error) {
	return i.load()
}

// IDOrUnknown returns the device id, falling back to Unknown with a warning.
func (i *Identity) IDOrUnknown(logger *slog.Logger) string {
	id, err := i.ID()
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("Device identity unavailable, only default sources apply", logfields.Error(err))
		return Unknown
	}
	return id
}

var processIdentity = sync.OnceValue(func() *Identity {
	return NewIdentity(MachineReader{AppID: AppID})
})

// Current returns the process-wide identity backed by the OS machine id.
func Current() *Identity {
	return processIdentity()
}

// CurrentID returns the id of the machine this process runs on.
func CurrentID() (string, error) {
	return Current().ID()
}
