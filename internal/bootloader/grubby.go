package bootloader

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/osbuild/guestconv/internal/guestfs"
)

var grubbyInitrdRegex = regexp.MustCompile(`^initrd=(\S+)`)

// grubbyDefaultKernel asks grubby for the kernel GRUB boots by default. An
// empty string means no default is configured.
func grubbyDefaultKernel(h guestfs.Handle) (string, error) {
	out, err := h.Command([]string{"grubby", "--default-kernel"})
	if err != nil {
		return "", fmt.Errorf("cannot query the default kernel: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// grubbyInitrd returns the initrd grubby has configured for kernel.
func grubbyInitrd(h guestfs.Handle, kernel string) (string, error) {
	lines, err := h.CommandLines([]string{"grubby", "--info", kernel})
	if err != nil {
		return "", fmt.Errorf("cannot query boot entry of %s: %w", kernel, err)
	}

	for _, line := range lines {
		if m := grubbyInitrdRegex.FindStringSubmatch(line); m != nil {
			// newer grubby quotes values
			return strings.Trim(m[1], `"`), nil
		}
	}

	return "", &ConversionError{Msg: fmt.Sprintf("grubby didn't return an initrd for kernel %s", kernel)}
}
