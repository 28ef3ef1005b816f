package bootloader

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/osbuild/guestconv/internal/guestfs"
)

var augeasErrorRegex = regexp.MustCompile(`^/augeas/files(/.*)/error$`)

// augeasError turns a failed config tree query into a ConversionError
// describing the parse errors the tree reports under /augeas/files. If the
// tree holds no error nodes, origErr is returned unchanged.
func augeasError(h guestfs.Handle, origErr error) error {
	msg, err := describeAugeasErrors(h)
	if err != nil {
		return &ConversionError{
			Msg: fmt.Sprintf("error generating augeas error: %v\noriginal error: %v", err, origErr),
			Err: origErr,
		}
	}

	if msg == "" {
		return origErr
	}
	return &ConversionError{Msg: msg, Err: origErr}
}

func describeAugeasErrors(h guestfs.Handle) (string, error) {
	errorPaths, err := h.AugMatch("/augeas/files//error")
	if err != nil {
		return "", err
	}

	var msg strings.Builder
	for _, errorPath := range errorPaths {
		m := augeasErrorRegex.FindStringSubmatch(errorPath)
		if m == nil {
			continue
		}
		file := m[1]

		detailPaths, err := h.AugMatch(errorPath + "//*")
		if err != nil {
			return "", err
		}
		detail := make(map[string]string, len(detailPaths))
		for _, p := range detailPaths {
			value, err := h.AugGet(p)
			if err != nil {
				return "", err
			}
			detail[strings.TrimPrefix(p, errorPath+"/")] = value
		}

		fmt.Fprintf(&msg, "augeas error for %s", file)
		if message, ok := detail["message"]; ok {
			fmt.Fprintf(&msg, ": %s", message)
		}
		msg.WriteString("\n")

		pos, hasPos := detail["pos"]
		line, hasLine := detail["line"]
		char, hasChar := detail["char"]
		if hasPos && hasLine && hasChar {
			fmt.Fprintf(&msg, "error at line %s, char %s, file position %s\n", line, char, pos)
		}

		if lens, ok := detail["lens"]; ok {
			fmt.Fprintf(&msg, "augeas lens: %s\n", lens)
		}
	}

	return strings.TrimSpace(msg.String()), nil
}
