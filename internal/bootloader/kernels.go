package bootloader

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/guestconv/internal/guestfs"
)

// existingKernels returns the kernels which exist in the guest, keeping
// their order. Missing kernels are logged and dropped.
func existingKernels(h guestfs.Handle, root string, logger logrus.FieldLogger, kernels []string) ([]string, error) {
	existing := make([]string, 0, len(kernels))
	for _, kernel := range kernels {
		ok, err := h.Exists(kernel)
		if err != nil {
			return nil, fmt.Errorf("cannot check kernel %s: %w", kernel, err)
		}
		if !ok {
			logger.WithFields(logrus.Fields{
				"root":   root,
				"kernel": kernel,
			}).Warnf("grub refers to %s, which doesn't exist", kernel)
			continue
		}
		existing = append(existing, kernel)
	}
	return existing, nil
}
