package bootloader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/guestconv/internal/guestfs"
)

var grubLegacyConfigs = []string{"/boot/grub/grub.conf", "/boot/grub/menu.lst"}

// Mount points which make paths in grub.conf relative, most specific first.
var grubLegacyFilesystems = []string{"/boot/grub", "/boot"}

// GrubLegacy is GRUB 0.9x configured through grub.conf or menu.lst.
type GrubLegacy struct {
	h      guestfs.Handle
	root   string
	logger logrus.FieldLogger

	grubConf string
	// grubFS is prepended to paths found in grub.conf to make them
	// absolute in the guest.
	grubFS string
}

// NewGrubLegacy recognizes legacy GRUB in root.
func NewGrubLegacy(h guestfs.Handle, root string, logger logrus.FieldLogger) (*GrubLegacy, error) {
	g := &GrubLegacy{h: h, root: root, logger: logger}

	for _, path := range grubLegacyConfigs {
		exists, err := h.Exists(path)
		if err != nil {
			return nil, fmt.Errorf("cannot check for %s: %w", path, err)
		}
		if exists {
			g.grubConf = path
			break
		}
	}
	if g.grubConf == "" {
		return nil, fmt.Errorf("%w: no grub.conf or menu.lst", ErrBootLoaderNotFound)
	}

	mounts, err := h.InspectGetMountpoints(root)
	if err != nil {
		return nil, fmt.Errorf("cannot get mountpoints of %s: %w", root, err)
	}
	for _, path := range grubLegacyFilesystems {
		if _, ok := mounts[path]; ok {
			g.grubFS = path
			break
		}
	}

	return g, nil
}

func (g *GrubLegacy) bootloader() {}

func (g *GrubLegacy) Kind() Variant {
	return GrubLegacyVariant
}

func (g *GrubLegacy) ConfigPath() string {
	return g.grubConf
}

// ListKernels lists the kernels from grub.conf in the order GRUB would try
// them: the default entry first, then every entry in file order.
func (g *GrubLegacy) ListKernels() ([]string, error) {
	conf := "/files" + g.grubConf

	paths := g.defaultKernelPaths(conf)

	// This adds the default kernel a second time, duplicates are skipped
	// below.
	all, err := g.h.AugMatch(conf + "/title/kernel")
	if err != nil {
		return nil, augeasError(g.h, err)
	}
	paths = append(paths, all...)

	var kernels []string
	checked := make(map[string]bool, len(paths))
	for _, path := range paths {
		if checked[path] {
			continue
		}
		checked[path] = true

		kernel, err := g.h.AugGet(path)
		if err != nil {
			return nil, augeasError(g.h, err)
		}
		kernels = append(kernels, g.grubFS+kernel)
	}

	return existingKernels(g.h, g.root, g.logger, kernels)
}

// defaultKernelPaths returns the config tree path of the default entry's
// kernel. A missing or unusable default is not an error.
func (g *GrubLegacy) defaultKernelPaths(conf string) []string {
	logger := g.logger.WithFields(logrus.Fields{"root": g.root, "config": g.grubConf})

	value, err := g.h.AugGet(conf + "/default")
	if err != nil {
		logger.Debugf("no default boot entry: %v", err)
		return nil
	}

	// GRUB counts entries from 0, the config tree from 1
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		logger.Debugf("ignoring default boot entry %q", value)
		return nil
	}

	paths, err := g.h.AugMatch(fmt.Sprintf("%s/title[%d]/kernel", conf, n+1))
	if err != nil {
		logger.Debugf("cannot resolve default boot entry %d: %v", n, err)
		return nil
	}
	return paths
}

func (g *GrubLegacy) Initrd(kernel string) (string, error) {
	return grubbyInitrd(g.h, kernel)
}
