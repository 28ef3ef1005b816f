package hostfs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/guestconv/internal/augeas"
	"github.com/osbuild/guestconv/internal/disk"
	"github.com/osbuild/guestconv/internal/guestfs"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
}

func newHandle(t *testing.T, opts Options) *Handle {
	t.Helper()
	logger, _ := logrusTest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	h, err := New(opts, logger)
	require.NoError(t, err)
	return h
}

func TestNewRequiresDirectory(t *testing.T) {
	logger, _ := logrusTest.NewNullLogger()

	_, err := New(Options{}, logger)
	assert.Error(t, err)

	_, err = New(Options{Dir: filepath.Join(t.TempDir(), "missing")}, logger)
	assert.Error(t, err)

	dir := t.TempDir()
	writeFile(t, dir, "file", "")
	_, err = New(Options{Dir: filepath.Join(dir, "file")}, logger)
	assert.Error(t, err)
}

func TestExistsAndGlob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "boot/vmlinuz-5.14.0", "")
	writeFile(t, dir, "boot/vmlinuz-5.14.0.rpmsave", "")
	writeFile(t, dir, "boot/initramfs-5.14.0.img", "")
	h := newHandle(t, Options{Dir: dir})

	ok, err := h.Exists("/boot/vmlinuz-5.14.0")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Exists("/boot/vmlinuz-missing")
	require.NoError(t, err)
	assert.False(t, ok)

	// paths can't escape the guest tree
	ok, err = h.Exists("/../../boot/vmlinuz-5.14.0")
	require.NoError(t, err)
	assert.True(t, ok)

	matches, err := h.GlobExpand("/boot/vmlinuz-*")
	require.NoError(t, err)
	assert.Equal(t, []string{"/boot/vmlinuz-5.14.0", "/boot/vmlinuz-5.14.0.rpmsave"}, matches)

	matches, err = h.GlobExpand("/vmlinuz-*")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "boot/efi/EFI/redhat/grub.cfg", "")
	writeFile(t, dir, "boot/efi/EFI/BOOT/BOOTX64.EFI", "")
	h := newHandle(t, Options{Dir: dir})

	paths, err := h.Find("/boot/efi")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"EFI",
		"EFI/BOOT",
		"EFI/BOOT/BOOTX64.EFI",
		"EFI/redhat",
		"EFI/redhat/grub.cfg",
	}, paths)

	_, err = h.Find("/nonexistent")
	assert.Error(t, err)
}

func TestPartitionsAndMounts(t *testing.T) {
	h := newHandle(t, Options{
		Dir:  t.TempDir(),
		Root: "/dev/sda3",
		Mounts: map[string]string{
			"/":         "/dev/sda3",
			"/boot":     "/dev/sda2",
			"/boot/efi": "/dev/sda1",
		},
		Devices: []Device{
			{Name: "/dev/sda", Partitions: []Partition{
				{Number: 1, Type: disk.EFISystemPartitionGUID},
				{Number: 2, Type: disk.FilesystemDataGUID},
			}},
			{Name: "/dev/sdb", Partitions: []Partition{{Number: 1}}},
		},
	})

	devices, err := h.ListDevices()
	require.NoError(t, err)
	assert.Equal(t, []string{"/dev/sda", "/dev/sdb"}, devices)

	guid, err := h.PartGetGPTType("/dev/sda", 1)
	require.NoError(t, err)
	assert.Equal(t, disk.EFISystemPartitionGUID, guid)

	_, err = h.PartGetGPTType("/dev/sda", 3)
	assert.Error(t, err)
	_, err = h.PartGetGPTType("/dev/sdb", 1)
	assert.Error(t, err)
	_, err = h.PartGetGPTType("/dev/sdc", 1)
	assert.Error(t, err)

	mps, err := h.Mountpoints()
	require.NoError(t, err)
	assert.Equal(t, "/boot/efi", mps["/dev/sda1"])
	assert.Equal(t, "/", mps["/dev/sda3"])

	mounts, err := h.InspectGetMountpoints("/dev/sda3")
	require.NoError(t, err)
	assert.Equal(t, "/dev/sda2", mounts["/boot"])

	_, err = h.InspectGetMountpoints("/dev/sdb1")
	assert.Error(t, err)
}

func TestCommand(t *testing.T) {
	h := newHandle(t, Options{
		Dir: t.TempDir(),
		// drop the directory argument and run the command on the host
		ChrootCommand: []string{"sh", "-c", `shift; exec "$@"`, "sh"},
	})

	out, err := h.Command([]string{"echo", "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)

	lines, err := h.CommandLines([]string{"printf", "initrd=/boot/initramfs.img\nroot=/dev/sda1\n"})
	require.NoError(t, err)
	assert.Equal(t, []string{"initrd=/boot/initramfs.img", "root=/dev/sda1"}, lines)

	lines, err = h.CommandLines([]string{"true"})
	require.NoError(t, err)
	assert.Empty(t, lines)

	_, err = h.Command([]string{"false"})
	assert.Error(t, err)

	_, err = h.Command(nil)
	assert.Error(t, err)
}

func TestAugeas(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "boot/grub/menu.lst", "default=0\ntitle Fedora\n\tkernel /vmlinuz-2.6.18 ro\n")
	h := newHandle(t, Options{Dir: dir})

	paths, err := h.AugMatch("/files/boot/grub/menu.lst/title/kernel")
	require.NoError(t, err)
	assert.Equal(t, []string{"/files/boot/grub/menu.lst/title/kernel"}, paths)

	v, err := h.AugGet(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "/vmlinuz-2.6.18", v)

	_, err = h.AugGet("/files/boot/grub/menu.lst/fallback")
	assert.Error(t, err)

	_, err = h.AugMatch("relative")
	assert.Error(t, err)
}

func TestAugeasParseError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "boot/grub/grub.conf", "initrd /initrd.img\n")
	h := newHandle(t, Options{Dir: dir})

	paths, err := h.AugMatch("/augeas/files//error")
	require.NoError(t, err)
	assert.Equal(t, []string{"/augeas/files/boot/grub/grub.conf/error"}, paths)

	msg, err := h.AugGet("/augeas/files/boot/grub/grub.conf/error/message")
	require.NoError(t, err)
	assert.Equal(t, "initrd is only allowed inside a title entry", msg)
}

func TestAugeasQueryBrokenFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "boot/grub/grub.conf", "default=0\ninitrd /initrd.img\ntitle Fedora\n\tkernel /vmlinuz\n")
	writeFile(t, dir, "etc/grub.conf", "default=1\n")
	h := newHandle(t, Options{Dir: dir})

	_, err := h.AugMatch("/files/boot/grub/grub.conf/title/kernel")
	var gerr *guestfs.Error
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, "aug_match", gerr.Op)
	assert.True(t, errors.Is(err, augeas.ErrParseFailed))

	_, err = h.AugGet("/files/boot/grub/grub.conf/default")
	assert.True(t, errors.Is(err, augeas.ErrParseFailed))

	_, err = h.AugMatch("/files/boot/grub/grub.conf")
	assert.True(t, errors.Is(err, augeas.ErrParseFailed))

	// other files and the error nodes stay queryable
	v, err := h.AugGet("/files/etc/grub.conf/default")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	paths, err := h.AugMatch("/augeas/files//error")
	require.NoError(t, err)
	assert.Equal(t, []string{"/augeas/files/boot/grub/grub.conf/error"}, paths)

	paths, err = h.AugMatch("/files/boot/grub/grub.confx")
	require.NoError(t, err)
	assert.Empty(t, paths)
}
