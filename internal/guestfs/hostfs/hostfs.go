// Package hostfs implements guestfs.Handle on top of a guest filesystem tree
// that is already mounted somewhere on the host, e.g. by guestmount(1) or a
// loop mount.
//
// The partition layout is not read from the disk: it is described by the
// caller, usually from a manifest file. Commands run inside the tree through
// chroot(8).
package hostfs

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/guestconv/internal/augeas"
	"github.com/osbuild/guestconv/internal/guestfs"
)

// Partition describes one partition of a guest block device.
type Partition struct {
	Number int
	// GPT partition type GUID. Empty for partitions on an MBR disk.
	Type string
}

// Device describes one guest block device.
type Device struct {
	Name       string
	Partitions []Partition
}

type Options struct {
	// Dir is the host directory the guest root is mounted on.
	Dir string
	// Root is the device of the inspected root filesystem.
	Root string
	// Mounts maps guest mount paths to the devices mounted there.
	Mounts map[string]string
	// Devices lists the guest block devices.
	Devices []Device
	// ChrootCommand is the command used to enter Dir. It receives Dir
	// followed by the guest argv. Defaults to chroot.
	ChrootCommand []string
}

// Handle is a guestfs.Handle for a host mounted guest tree. It is not safe
// for concurrent use.
type Handle struct {
	opts   Options
	logger logrus.FieldLogger
	tree   *augeas.Tree
	// files the config tree failed to parse
	broken []string
}

var _ guestfs.Handle = (*Handle)(nil)

// New returns a Handle for opts.
func New(opts Options, logger logrus.FieldLogger) (*Handle, error) {
	if opts.Dir == "" {
		return nil, errors.New("hostfs: no guest directory given")
	}
	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("hostfs: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("hostfs: %s is not a directory", opts.Dir)
	}
	if len(opts.ChrootCommand) == 0 {
		opts.ChrootCommand = []string{"chroot"}
	}
	return &Handle{opts: opts, logger: logger}, nil
}

// hostPath maps an absolute guest path to the host.
func (h *Handle) hostPath(p string) string {
	return filepath.Join(h.opts.Dir, filepath.FromSlash(path.Clean("/"+p)))
}

// guestPath maps a host path below Dir back to the guest.
func (h *Handle) guestPath(p string) (string, error) {
	rel, err := filepath.Rel(h.opts.Dir, p)
	if err != nil {
		return "", err
	}
	return path.Clean("/" + filepath.ToSlash(rel)), nil
}

func (h *Handle) Exists(p string) (bool, error) {
	_, err := os.Lstat(h.hostPath(p))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, &guestfs.Error{Op: "exists", Msg: p, Err: err}
}

func (h *Handle) Command(argv []string) (string, error) {
	if len(argv) == 0 {
		return "", guestfs.NewError("command", "empty argument list")
	}

	args := append([]string{}, h.opts.ChrootCommand[1:]...)
	args = append(args, h.opts.Dir)
	args = append(args, argv...)

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(h.opts.ChrootCommand[0], args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	h.logger.WithField("argv", strings.Join(argv, " ")).Debug("running command in guest")
	if err := cmd.Run(); err != nil {
		return "", &guestfs.Error{
			Op:  "command",
			Msg: fmt.Sprintf("%s: %s", argv[0], strings.TrimSpace(stderr.String())),
			Err: err,
		}
	}
	return stdout.String(), nil
}

func (h *Handle) CommandLines(argv []string) ([]string, error) {
	out, err := h.Command(argv)
	if err != nil {
		return nil, err
	}
	out = strings.TrimSuffix(out, "\n")
	if out == "" {
		return []string{}, nil
	}
	return strings.Split(out, "\n"), nil
}

func (h *Handle) GlobExpand(pattern string) ([]string, error) {
	matches, err := filepath.Glob(h.hostPath(pattern))
	if err != nil {
		return nil, &guestfs.Error{Op: "glob_expand", Msg: pattern, Err: err}
	}
	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		p, err := h.guestPath(m)
		if err != nil {
			return nil, &guestfs.Error{Op: "glob_expand", Msg: pattern, Err: err}
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func (h *Handle) ListDevices() ([]string, error) {
	devices := make([]string, 0, len(h.opts.Devices))
	for _, d := range h.opts.Devices {
		devices = append(devices, d.Name)
	}
	return devices, nil
}

func (h *Handle) PartGetGPTType(device string, partnum int) (string, error) {
	for _, d := range h.opts.Devices {
		if d.Name != device {
			continue
		}
		for _, p := range d.Partitions {
			if p.Number != partnum {
				continue
			}
			if p.Type == "" {
				return "", guestfs.NewError("part_get_gpt_type", "%s: not a GPT partition table", device)
			}
			return p.Type, nil
		}
		return "", guestfs.NewError("part_get_gpt_type", "%s: partition %d not found", device, partnum)
	}
	return "", guestfs.NewError("part_get_gpt_type", "%s: no such device", device)
}

func (h *Handle) Mountpoints() (map[string]string, error) {
	mps := make(map[string]string, len(h.opts.Mounts))
	for mp, dev := range h.opts.Mounts {
		mps[dev] = mp
	}
	return mps, nil
}

func (h *Handle) Find(directory string) ([]string, error) {
	base := h.hostPath(directory)
	var paths []string
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == base {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, &guestfs.Error{Op: "find", Msg: directory, Err: err}
	}
	return paths, nil
}

func (h *Handle) InspectGetMountpoints(root string) (map[string]string, error) {
	if root != h.opts.Root {
		return nil, guestfs.NewError("inspect_get_mountpoints", "%s: not an inspected root", root)
	}
	mounts := make(map[string]string, len(h.opts.Mounts))
	for mp, dev := range h.opts.Mounts {
		mounts[mp] = dev
	}
	return mounts, nil
}

// checkParsed fails queries below the tree of a file that did not parse.
// The error details stay readable below /augeas/files.
func (h *Handle) checkParsed(op, p string) error {
	for _, file := range h.broken {
		base := "/files" + file
		if p == base || strings.HasPrefix(p, base+"/") || strings.HasPrefix(p, base+"[") {
			return &guestfs.Error{Op: op, Msg: p, Err: fmt.Errorf("%s: %w", file, augeas.ErrParseFailed)}
		}
	}
	return nil
}

func (h *Handle) AugMatch(p string) ([]string, error) {
	tree, err := h.augeasTree()
	if err != nil {
		return nil, err
	}
	if err := h.checkParsed("aug_match", p); err != nil {
		return nil, err
	}
	paths, err := tree.Match(p)
	if err != nil {
		return nil, &guestfs.Error{Op: "aug_match", Msg: p, Err: err}
	}
	return paths, nil
}

func (h *Handle) AugGet(p string) (string, error) {
	tree, err := h.augeasTree()
	if err != nil {
		return "", err
	}
	if err := h.checkParsed("aug_get", p); err != nil {
		return "", err
	}
	v, err := tree.Get(p)
	if err != nil {
		return "", &guestfs.Error{Op: "aug_get", Msg: p, Err: err}
	}
	return v, nil
}

// augeasTree loads every file covered by a known lens on first use.
func (h *Handle) augeasTree() (*augeas.Tree, error) {
	if h.tree != nil {
		return h.tree, nil
	}

	tree := augeas.NewTree()
	for _, lens := range augeas.Lenses() {
		for _, file := range lens.Includes {
			data, err := os.ReadFile(h.hostPath(file))
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, &guestfs.Error{Op: "aug_load", Msg: file, Err: err}
			}
			if err := tree.Load(file, data, lens); err != nil {
				return nil, &guestfs.Error{Op: "aug_load", Msg: file, Err: err}
			}
			logger := h.logger.WithFields(logrus.Fields{
				"file": file,
				"lens": lens.Name,
			})
			if tree.ParseFailed(file) {
				h.broken = append(h.broken, file)
				logger.Debug("file failed to parse")
				continue
			}
			logger.Debug("loaded file into config tree")
		}
	}
	h.tree = tree
	return tree, nil
}
