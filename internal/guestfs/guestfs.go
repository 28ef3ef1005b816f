// Package guestfs describes the operations the boot loader inspection code
// needs from a guest filesystem handle.
//
// The interface mirrors the subset of libguestfs used during inspection.
// Implementations are not required to be safe for concurrent use.
package guestfs

import "fmt"

// Handle gives access to one inspected guest image.
type Handle interface {
	// Exists reports whether path exists in the guest filesystem.
	Exists(path string) (bool, error)
	// Command runs argv inside the guest and returns its stdout.
	Command(argv []string) (string, error)
	// CommandLines runs argv inside the guest and returns stdout split into lines.
	CommandLines(argv []string) ([]string, error)
	// GlobExpand expands a shell glob pattern. Results are returned in
	// filesystem order, not sorted.
	GlobExpand(pattern string) ([]string, error)
	// ListDevices returns the block devices attached to the handle.
	ListDevices() ([]string, error)
	// PartGetGPTType returns the GPT partition type GUID of partition partnum
	// on device. It fails if the device does not carry a GPT.
	PartGetGPTType(device string, partnum int) (string, error)
	// Mountpoints maps mounted devices and partitions to their mount path.
	Mountpoints() (map[string]string, error)
	// Find lists every entry below directory recursively, relative to it.
	Find(directory string) ([]string, error)
	// InspectGetMountpoints maps the mount paths of an inspected root to
	// the devices mounted there.
	InspectGetMountpoints(root string) (map[string]string, error)
	// AugMatch returns all config tree paths matching path.
	AugMatch(path string) ([]string, error)
	// AugGet returns the value of the single config tree node at path.
	AugGet(path string) (string, error)
}

// Error is returned by handle implementations when an operation fails.
type Error struct {
	Op  string
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError returns an *Error for the operation op.
func NewError(op, format string, args ...interface{}) *Error {
	return &Error{Op: op, Msg: fmt.Sprintf(format, args...)}
}
