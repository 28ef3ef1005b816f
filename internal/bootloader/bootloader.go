// Package bootloader detects which boot loader controls an inspected guest
// root and lists the kernels it can boot, in the order the boot loader
// tries them.
//
// Three boot loaders are recognized: legacy GRUB, GRUB2 booted from BIOS and
// GRUB2 booted from an EFI System Partition.
package bootloader

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/guestconv/internal/guestfs"
)

// Variant identifies a boot loader.
type Variant int

const (
	GrubLegacyVariant Variant = iota
	Grub2BIOSVariant
	Grub2EFIVariant
)

func (v Variant) String() string {
	switch v {
	case GrubLegacyVariant:
		return "grub-legacy"
	case Grub2BIOSVariant:
		return "grub2-bios"
	case Grub2EFIVariant:
		return "grub2-efi"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// Bootloader is the boot loader detected for one guest root. The set of
// implementations is closed: *GrubLegacy, *Grub2BIOS and *Grub2EFI.
type Bootloader interface {
	// Kind returns the detected variant.
	Kind() Variant
	// ConfigPath returns the guest path of the configuration file the
	// variant was recognized by.
	ConfigPath() string
	// ListKernels returns the bootable kernels in boot order. It is
	// computed from the guest on every call.
	ListKernels() ([]string, error)
	// Initrd returns the initrd configured for kernel.
	Initrd(kernel string) (string, error)

	bootloader()
}

type probeFunc func(h guestfs.Handle, root string, logger logrus.FieldLogger) (Bootloader, error)

func probe[T Bootloader](newFn func(guestfs.Handle, string, logrus.FieldLogger) (T, error)) probeFunc {
	return func(h guestfs.Handle, root string, logger logrus.FieldLogger) (Bootloader, error) {
		bl, err := newFn(h, root, logger)
		if err != nil {
			return nil, err
		}
		return bl, nil
	}
}

// probes are tried in order. Legacy GRUB has the most specific signature
// and goes first.
func probes() []probeFunc {
	return []probeFunc{
		probe(NewGrubLegacy),
		probe(NewGrub2BIOS),
		probe(NewGrub2EFI),
	}
}

// Detect returns the boot loader of the guest root.
//
// Variants are probed in a fixed order and the first one that recognizes
// the guest wins. Only ErrBootLoaderNotFound moves on to the next variant;
// any other error aborts detection. If no variant matches, the returned
// *ConversionError also matches ErrBootLoaderNotFound.
func Detect(h guestfs.Handle, root string, logger logrus.FieldLogger) (Bootloader, error) {
	for _, p := range probes() {
		bl, err := p(h, root, logger)
		if errors.Is(err, ErrBootLoaderNotFound) {
			logger.WithField("root", root).Debug(err)
			continue
		}
		if err != nil {
			return nil, err
		}

		logger.WithFields(logrus.Fields{
			"root":       root,
			"bootloader": bl.Kind().String(),
			"config":     bl.ConfigPath(),
		}).Info("detected boot loader")
		return bl, nil
	}

	return nil, &ConversionError{
		Msg: fmt.Sprintf("did not detect a bootloader for root %s", root),
		Err: ErrBootLoaderNotFound,
	}
}
