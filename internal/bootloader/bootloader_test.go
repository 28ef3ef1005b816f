package bootloader

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/guestconv/internal/augeas"
	"github.com/osbuild/guestconv/internal/disk"
	guestfs_mock "github.com/osbuild/guestconv/internal/mocks/guestfs"
)

const testRoot = "/dev/sda2"

func newTestLogger() (*logrus.Logger, *logrusTest.Hook) {
	logger, hook := logrusTest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

func grubTree(t *testing.T, file, conf string) *augeas.Tree {
	t.Helper()
	tree := augeas.NewTree()
	require.NoError(t, tree.Load(file, []byte(conf), augeas.GrubLens()))
	return tree
}

func efiFixture() guestfs_mock.Fixture {
	return guestfs_mock.Fixture{
		Files:   []string{"/boot/efi/EFI/fedora/shimx64.efi", "/boot/efi/EFI/fedora/grub.cfg"},
		Devices: []string{"/dev/sda", "/dev/sdb"},
		GPTTypes: map[string]string{
			"/dev/sdb1": "c12a7328-f81f-11d2-ba4b-00a0c93ec93b",
		},
		Mountpoints: map[string]string{
			"/dev/sdb1": "/boot/efi",
			"/dev/sdb2": "/",
		},
	}
}

func TestVariantString(t *testing.T) {
	assert.Equal(t, "grub-legacy", GrubLegacyVariant.String())
	assert.Equal(t, "grub2-bios", Grub2BIOSVariant.String())
	assert.Equal(t, "grub2-efi", Grub2EFIVariant.String())
	assert.Equal(t, "Variant(7)", Variant(7).String())
}

func TestDetectPrefersGrubLegacy(t *testing.T) {
	logger, hook := newTestLogger()
	h := guestfs_mock.NewGuestfsMock(guestfs_mock.Fixture{
		Files:              []string{"/boot/grub/grub.conf", "/boot/grub2/grub.cfg"},
		InspectMountpoints: map[string]map[string]string{testRoot: {"/": testRoot}},
	})

	bl, err := Detect(h, testRoot, logger)
	require.NoError(t, err)
	assert.Equal(t, GrubLegacyVariant, bl.Kind())
	assert.Equal(t, "/boot/grub/grub.conf", bl.ConfigPath())
	assert.IsType(t, &GrubLegacy{}, bl)

	// GRUB2 signatures were never probed
	assert.False(t, h.Called("exists /boot/grub2/grub.cfg"))
	assert.False(t, h.Called("list_devices "))

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, "grub-legacy", hook.LastEntry().Data["bootloader"])
}

func TestDetectGrub2BIOS(t *testing.T) {
	logger, _ := newTestLogger()
	h := guestfs_mock.NewGuestfsMock(guestfs_mock.Fixture{
		Files: []string{"/boot/grub2/grub.cfg"},
	})

	bl, err := Detect(h, testRoot, logger)
	require.NoError(t, err)
	assert.Equal(t, Grub2BIOSVariant, bl.Kind())
	assert.Equal(t, "/boot/grub2/grub.cfg", bl.ConfigPath())
	assert.False(t, h.Called("list_devices "))
}

func TestDetectGrub2EFI(t *testing.T) {
	logger, _ := newTestLogger()
	h := guestfs_mock.NewGuestfsMock(efiFixture())

	bl, err := Detect(h, testRoot, logger)
	require.NoError(t, err)
	require.Equal(t, Grub2EFIVariant, bl.Kind())
	assert.Equal(t, "/boot/efi/EFI/fedora/grub.cfg", bl.ConfigPath())

	efi, ok := bl.(*Grub2EFI)
	require.True(t, ok)
	assert.Equal(t, "/dev/sdb", efi.Disk())
}

func TestDetectNotFound(t *testing.T) {
	logger, _ := newTestLogger()
	h := guestfs_mock.NewGuestfsMock(guestfs_mock.Fixture{
		Devices: []string{"/dev/sda"},
	})

	bl, err := Detect(h, testRoot, logger)
	require.Error(t, err)
	assert.Nil(t, bl)
	assert.True(t, errors.Is(err, ErrBootLoaderNotFound))

	var convErr *ConversionError
	require.True(t, errors.As(err, &convErr))
	assert.Equal(t, "did not detect a bootloader for root /dev/sda2", convErr.Error())

	// every variant was tried
	assert.True(t, h.Called("exists /boot/grub/menu.lst"))
	assert.True(t, h.Called("exists /boot/grub2/grub.cfg"))
	assert.True(t, h.Called("part_get_gpt_type /dev/sda1"))
}

func TestDetectAbortsOnError(t *testing.T) {
	ioErr := errors.New("input/output error")

	tests := []struct {
		name   string
		errors map[string]error
		files  []string
	}{
		{
			name:   "exists fails",
			errors: map[string]error{"exists /boot/grub/grub.conf": ioErr},
		},
		{
			name:   "mountpoints of root fail",
			files:  []string{"/boot/grub/menu.lst"},
			errors: map[string]error{"inspect_get_mountpoints " + testRoot: ioErr},
		},
		{
			name:   "device listing fails",
			errors: map[string]error{"list_devices ": ioErr},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := newTestLogger()
			h := guestfs_mock.NewGuestfsMock(guestfs_mock.Fixture{
				Files:  tt.files,
				Errors: tt.errors,
			})

			_, err := Detect(h, testRoot, logger)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ioErr))
			assert.False(t, errors.Is(err, ErrBootLoaderNotFound))
		})
	}
}

func TestDetectAbortStopsProbing(t *testing.T) {
	logger, _ := newTestLogger()
	h := guestfs_mock.NewGuestfsMock(guestfs_mock.Fixture{
		Files:  []string{"/boot/grub2/grub.cfg"},
		Errors: map[string]error{"exists /boot/grub/menu.lst": errors.New("broken")},
	})

	_, err := Detect(h, testRoot, logger)
	require.Error(t, err)
	assert.False(t, h.Called("exists /boot/grub2/grub.cfg"))
}

func TestGrub2EFIRecognition(t *testing.T) {
	tests := []struct {
		name   string
		modify func(f *guestfs_mock.Fixture)
	}{
		{
			name: "no EFI System Partition",
			modify: func(f *guestfs_mock.Fixture) {
				f.GPTTypes["/dev/sdb1"] = disk.FilesystemDataGUID
			},
		},
		{
			name: "ESP is not partition 1",
			modify: func(f *guestfs_mock.Fixture) {
				delete(f.GPTTypes, "/dev/sdb1")
				f.GPTTypes["/dev/sdb2"] = disk.EFISystemPartitionGUID
			},
		},
		{
			name: "ESP not mounted",
			modify: func(f *guestfs_mock.Fixture) {
				delete(f.Mountpoints, "/dev/sdb1")
			},
		},
		{
			name: "no grub.cfg on ESP",
			modify: func(f *guestfs_mock.Fixture) {
				f.Files = []string{"/boot/efi/EFI/fedora/shimx64.efi", "/boot/grub.cfg"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := newTestLogger()
			fixture := efiFixture()
			tt.modify(&fixture)
			h := guestfs_mock.NewGuestfsMock(fixture)

			g, err := NewGrub2EFI(h, testRoot, logger)
			assert.Nil(t, g)
			assert.True(t, errors.Is(err, ErrBootLoaderNotFound), "%v", err)
		})
	}
}

func TestGrub2EFIFirstMatchingDevice(t *testing.T) {
	logger, _ := newTestLogger()
	fixture := efiFixture()
	fixture.Devices = []string{"/dev/sda", "/dev/sdb", "/dev/sdc"}
	fixture.GPTTypes["/dev/sdc1"] = disk.EFISystemPartitionGUID
	fixture.Mountpoints["/dev/sdc1"] = "/mnt/other"
	h := guestfs_mock.NewGuestfsMock(fixture)

	g, err := NewGrub2EFI(h, testRoot, logger)
	require.NoError(t, err)
	assert.Equal(t, "/dev/sdb", g.Disk())
	assert.False(t, h.Called("part_get_gpt_type /dev/sdc1"))
}

func TestGrub2EFIFindFails(t *testing.T) {
	logger, _ := newTestLogger()
	fixture := efiFixture()
	fixture.Errors = map[string]error{"find /boot/efi": errors.New("find failed")}
	h := guestfs_mock.NewGuestfsMock(fixture)

	_, err := NewGrub2EFI(h, testRoot, logger)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrBootLoaderNotFound))
}
