package bootloader

import (
	"fmt"
	"path"

	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"

	"github.com/osbuild/guestconv/internal/disk"
	"github.com/osbuild/guestconv/internal/guestfs"
)

const grub2BIOSConfig = "/boot/grub2/grub.cfg"

// The same patterns grub2-mkconfig searches for kernels, in its order.
var grub2KernelGlobs = []string{"/boot/kernel-*", "/boot/vmlinuz-*", "/vmlinuz-*"}

// Files left behind by package managers, which grub2-mkconfig skips.
var packageBackupGlobs = []glob.Glob{
	glob.MustCompile("*.dpkg-*"),
	glob.MustCompile("*.rpmsave"),
	glob.MustCompile("*.rpmnew"),
}

func isPackageBackup(p string) bool {
	for _, g := range packageBackupGlobs {
		if g.Match(p) {
			return true
		}
	}
	return false
}

// listGrub2Kernels lists kernels the way grub2-mkconfig enumerates them,
// with the default kernel first. The generated grub.cfg is not consulted.
func listGrub2Kernels(h guestfs.Handle) ([]string, error) {
	kernels := []string{}

	def, err := grubbyDefaultKernel(h)
	if err != nil {
		return nil, err
	}
	if def != "" {
		kernels = append(kernels, def)
	}

	for _, pattern := range grub2KernelGlobs {
		matches, err := h.GlobExpand(pattern)
		if err != nil {
			return nil, fmt.Errorf("cannot expand %s: %w", pattern, err)
		}
		for _, kernel := range matches {
			if kernel == def || isPackageBackup(kernel) {
				continue
			}
			kernels = append(kernels, kernel)
		}
	}

	return kernels, nil
}

// Grub2BIOS is GRUB2 installed for BIOS boot.
type Grub2BIOS struct {
	h      guestfs.Handle
	root   string
	logger logrus.FieldLogger
}

// NewGrub2BIOS recognizes GRUB2 for BIOS in root.
func NewGrub2BIOS(h guestfs.Handle, root string, logger logrus.FieldLogger) (*Grub2BIOS, error) {
	exists, err := h.Exists(grub2BIOSConfig)
	if err != nil {
		return nil, fmt.Errorf("cannot check for %s: %w", grub2BIOSConfig, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: no %s", ErrBootLoaderNotFound, grub2BIOSConfig)
	}
	return &Grub2BIOS{h: h, root: root, logger: logger}, nil
}

func (g *Grub2BIOS) bootloader() {}

func (g *Grub2BIOS) Kind() Variant {
	return Grub2BIOSVariant
}

func (g *Grub2BIOS) ConfigPath() string {
	return grub2BIOSConfig
}

func (g *Grub2BIOS) ListKernels() ([]string, error) {
	return listGrub2Kernels(g.h)
}

func (g *Grub2BIOS) Initrd(kernel string) (string, error) {
	return grubbyInitrd(g.h, kernel)
}

// Grub2EFI is GRUB2 booted from an EFI System Partition.
type Grub2EFI struct {
	h      guestfs.Handle
	root   string
	logger logrus.FieldLogger

	disk string
	cfg  string
}

// NewGrub2EFI recognizes GRUB2 on an EFI System Partition. The ESP must be
// the first partition of a disk, be mounted and contain a grub.cfg.
func NewGrub2EFI(h guestfs.Handle, root string, logger logrus.FieldLogger) (*Grub2EFI, error) {
	g := &Grub2EFI{h: h, root: root, logger: logger}

	devices, err := h.ListDevices()
	if err != nil {
		return nil, fmt.Errorf("cannot list devices: %w", err)
	}
	for _, device := range devices {
		guid, err := h.PartGetGPTType(device, 1)
		if err != nil {
			// not EFI if the partition table isn't GPT
			logger.WithField("device", device).Debugf("skipping device: %v", err)
			continue
		}
		if disk.IsEFISystemPartition(guid) {
			g.disk = device
			break
		}
	}
	if g.disk == "" {
		return nil, fmt.Errorf("%w: no EFI System Partition", ErrBootLoaderNotFound)
	}

	mountpoints, err := h.Mountpoints()
	if err != nil {
		return nil, fmt.Errorf("cannot get mountpoints: %w", err)
	}
	// only <disk>1 is considered, matching the GPT type check above
	mp, ok := mountpoints[disk.PartitionName(g.disk, 1)]
	if !ok {
		logger.WithField("device", g.disk).Debug("Detected EFI bootloader with no mountpoint")
		return nil, fmt.Errorf("%w: EFI System Partition on %s is not mounted", ErrBootLoaderNotFound, g.disk)
	}

	entries, err := h.Find(mp)
	if err != nil {
		return nil, fmt.Errorf("cannot list %s: %w", mp, err)
	}
	for _, entry := range entries {
		if path.Base(entry) == "grub.cfg" {
			g.cfg = path.Join(mp, entry)
			break
		}
	}
	if g.cfg == "" {
		logger.WithField("mountpoint", mp).Debug("Detected mounted EFI bootloader but no grub.cfg")
		return nil, fmt.Errorf("%w: no grub.cfg below %s", ErrBootLoaderNotFound, mp)
	}

	return g, nil
}

func (g *Grub2EFI) bootloader() {}

func (g *Grub2EFI) Kind() Variant {
	return Grub2EFIVariant
}

func (g *Grub2EFI) ConfigPath() string {
	return g.cfg
}

// Disk returns the disk holding the EFI System Partition.
func (g *Grub2EFI) Disk() string {
	return g.disk
}

func (g *Grub2EFI) ListKernels() ([]string, error) {
	return listGrub2Kernels(g.h)
}

func (g *Grub2EFI) Initrd(kernel string) (string, error) {
	return grubbyInitrd(g.h, kernel)
}
