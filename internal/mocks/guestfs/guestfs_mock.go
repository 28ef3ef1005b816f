package guestfs_mock

import (
	"strings"

	"github.com/gobwas/glob"

	"github.com/osbuild/guestconv/internal/augeas"
	"github.com/osbuild/guestconv/internal/disk"
	"github.com/osbuild/guestconv/internal/guestfs"
)

type Command struct {
	Output string
	Err    error
}

// Fixture describes the guest seen through the mock.
type Fixture struct {
	// Files lists the existing guest files in filesystem order. Parent
	// directories exist implicitly.
	Files []string
	// Commands maps the space separated argv to its result.
	Commands map[string]Command
	Devices  []string
	// GPTTypes maps partition names, e.g. /dev/sda1, to their type GUID.
	GPTTypes map[string]string
	// Mountpoints maps devices to mount paths.
	Mountpoints map[string]string
	// InspectMountpoints maps an inspected root to its mount table.
	InspectMountpoints map[string]map[string]string
	Tree               *augeas.Tree
	// Errors injects failures. Keys are "<op> <argument>", for example
	// "aug_match /augeas/files//error".
	Errors map[string]error
}

// GuestfsMock implements guestfs.Handle from a Fixture and records every
// call it receives.
type GuestfsMock struct {
	Fixture Fixture
	Calls   []string
}

var _ guestfs.Handle = (*GuestfsMock)(nil)

func NewGuestfsMock(fixture Fixture) *GuestfsMock {
	if fixture.Tree == nil {
		fixture.Tree = augeas.NewTree()
	}
	return &GuestfsMock{Fixture: fixture}
}

// Called reports whether a call with the given "<op> <argument>" key was made.
func (m *GuestfsMock) Called(key string) bool {
	for _, c := range m.Calls {
		if c == key {
			return true
		}
	}
	return false
}

func (m *GuestfsMock) record(op, arg string) error {
	key := op + " " + arg
	m.Calls = append(m.Calls, key)
	return m.Fixture.Errors[key]
}

func (m *GuestfsMock) Exists(path string) (bool, error) {
	if err := m.record("exists", path); err != nil {
		return false, err
	}
	for _, f := range m.Fixture.Files {
		if f == path || strings.HasPrefix(f, strings.TrimSuffix(path, "/")+"/") {
			return true, nil
		}
	}
	return false, nil
}

func (m *GuestfsMock) Command(argv []string) (string, error) {
	key := strings.Join(argv, " ")
	if err := m.record("command", key); err != nil {
		return "", err
	}
	c, ok := m.Fixture.Commands[key]
	if !ok {
		return "", guestfs.NewError("command", "%s: command not found", argv[0])
	}
	return c.Output, c.Err
}

func (m *GuestfsMock) CommandLines(argv []string) ([]string, error) {
	out, err := m.Command(argv)
	if err != nil {
		return nil, err
	}
	out = strings.TrimSuffix(out, "\n")
	if out == "" {
		return []string{}, nil
	}
	return strings.Split(out, "\n"), nil
}

func (m *GuestfsMock) GlobExpand(pattern string) ([]string, error) {
	if err := m.record("glob_expand", pattern); err != nil {
		return nil, err
	}
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, guestfs.NewError("glob_expand", "%s: %v", pattern, err)
	}
	matches := []string{}
	for _, f := range m.Fixture.Files {
		if g.Match(f) {
			matches = append(matches, f)
		}
	}
	return matches, nil
}

func (m *GuestfsMock) ListDevices() ([]string, error) {
	if err := m.record("list_devices", ""); err != nil {
		return nil, err
	}
	return m.Fixture.Devices, nil
}

func (m *GuestfsMock) PartGetGPTType(device string, partnum int) (string, error) {
	part := disk.PartitionName(device, partnum)
	if err := m.record("part_get_gpt_type", part); err != nil {
		return "", err
	}
	guid, ok := m.Fixture.GPTTypes[part]
	if !ok {
		return "", guestfs.NewError("part_get_gpt_type", "%s: not a GPT partition", part)
	}
	return guid, nil
}

func (m *GuestfsMock) Mountpoints() (map[string]string, error) {
	if err := m.record("mountpoints", ""); err != nil {
		return nil, err
	}
	mps := make(map[string]string, len(m.Fixture.Mountpoints))
	for k, v := range m.Fixture.Mountpoints {
		mps[k] = v
	}
	return mps, nil
}

func (m *GuestfsMock) Find(directory string) ([]string, error) {
	if err := m.record("find", directory); err != nil {
		return nil, err
	}
	prefix := strings.TrimSuffix(directory, "/") + "/"
	dirs := map[string]bool{}
	var entries []string
	for _, f := range m.Fixture.Files {
		rel, ok := strings.CutPrefix(f, prefix)
		if !ok {
			continue
		}
		parts := strings.Split(rel, "/")
		for i := 1; i < len(parts); i++ {
			d := strings.Join(parts[:i], "/")
			if !dirs[d] {
				dirs[d] = true
				entries = append(entries, d)
			}
		}
		entries = append(entries, rel)
	}
	return entries, nil
}

func (m *GuestfsMock) InspectGetMountpoints(root string) (map[string]string, error) {
	if err := m.record("inspect_get_mountpoints", root); err != nil {
		return nil, err
	}
	mounts, ok := m.Fixture.InspectMountpoints[root]
	if !ok {
		return nil, guestfs.NewError("inspect_get_mountpoints", "%s: not an inspected root", root)
	}
	return mounts, nil
}

func (m *GuestfsMock) AugMatch(path string) ([]string, error) {
	if err := m.record("aug_match", path); err != nil {
		return nil, err
	}
	paths, err := m.Fixture.Tree.Match(path)
	if err != nil {
		return nil, &guestfs.Error{Op: "aug_match", Msg: path, Err: err}
	}
	return paths, nil
}

func (m *GuestfsMock) AugGet(path string) (string, error) {
	if err := m.record("aug_get", path); err != nil {
		return "", err
	}
	v, err := m.Fixture.Tree.Get(path)
	if err != nil {
		return "", &guestfs.Error{Op: "aug_get", Msg: path, Err: err}
	}
	return v, nil
}
