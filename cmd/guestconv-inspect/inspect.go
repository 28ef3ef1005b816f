package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/guestconv/internal/bootloader"
	"github.com/osbuild/guestconv/internal/guestfs"
)

type KernelReport struct {
	Path   string `json:"path"`
	Initrd string `json:"initrd,omitempty"`
}

// Report is what guestconv-inspect prints for a guest root.
type Report struct {
	Root       string         `json:"root"`
	Bootloader string         `json:"bootloader"`
	Config     string         `json:"config"`
	Disk       string         `json:"disk,omitempty"`
	Kernels    []KernelReport `json:"kernels"`
}

func inspect(h guestfs.Handle, root string, logger logrus.FieldLogger) (*Report, error) {
	bl, err := bootloader.Detect(h, root, logger)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Root:       root,
		Bootloader: bl.Kind().String(),
		Config:     bl.ConfigPath(),
		Kernels:    []KernelReport{},
	}
	if efi, ok := bl.(*bootloader.Grub2EFI); ok {
		report.Disk = efi.Disk()
	}

	kernels, err := bl.ListKernels()
	if err != nil {
		return nil, err
	}
	for _, kernel := range kernels {
		k := KernelReport{Path: kernel}
		initrd, err := bl.Initrd(kernel)
		var convErr *bootloader.ConversionError
		switch {
		case errors.As(err, &convErr):
			logger.WithField("kernel", kernel).Warn(convErr)
		case err != nil:
			// grubby is missing on guests that never had it installed
			logger.WithField("kernel", kernel).Debugf("cannot look up initrd: %v", err)
		default:
			k.Initrd = initrd
		}
		report.Kernels = append(report.Kernels, k)
	}

	return report, nil
}

func printReport(w io.Writer, r *Report) {
	fmt.Fprintf(w, "root:       %s\n", r.Root)
	fmt.Fprintf(w, "bootloader: %s\n", r.Bootloader)
	fmt.Fprintf(w, "config:     %s\n", r.Config)
	if r.Disk != "" {
		fmt.Fprintf(w, "disk:       %s\n", r.Disk)
	}
	fmt.Fprintf(w, "kernels:\n")
	for _, k := range r.Kernels {
		if k.Initrd != "" {
			fmt.Fprintf(w, "  %s (initrd %s)\n", k.Path, k.Initrd)
		} else {
			fmt.Fprintf(w, "  %s\n", k.Path)
		}
	}
}
