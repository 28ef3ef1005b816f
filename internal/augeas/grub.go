package augeas

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// GrubLens returns the lens for legacy GRUB configuration files
// (grub.conf / menu.lst).
//
// Global settings become children of the file node, e.g. default or
// timeout. Every "title" line opens a title node holding the entry's
// commands. The kernel node's value is the kernel path; its arguments are
// stored as children, "key=value" arguments with a value.
func GrubLens() *Lens {
	return newLens("Grub.lns", parseGrub,
		"/boot/grub/grub.conf",
		"/boot/grub/menu.lst",
		"/etc/grub.conf",
	)
}

var grubEntryCommands = map[string]bool{
	"root":         true,
	"rootnoverify": true,
	"kernel":       true,
	"initrd":       true,
	"module":       true,
	"chainloader":  true,
	"makeactive":   true,
	"savedefault":  true,
	"lock":         true,
	"map":          true,
	"configfile":   true,
	"boot":         true,
}

var grubRequiresValue = map[string]bool{
	"default":     true,
	"fallback":    true,
	"timeout":     true,
	"splashimage": true,
	"root":        true,
	"kernel":      true,
	"initrd":      true,
	"module":      true,
	"chainloader": true,
	"map":         true,
	"configfile":  true,
}

func parseGrub(data []byte) (*node, error) {
	top := &node{}
	var entry *node

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Split(scanLinesWithEOL)
	lineStart := 0
	for lineNo := 1; scanner.Scan(); lineNo++ {
		raw := scanner.Text()
		offset := lineStart
		lineStart += len(raw)

		line := strings.TrimRight(raw, " \t\r\n")
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		col := len(line) - len(trimmed)
		fail := func(format string, args ...interface{}) error {
			return &ParseError{
				Message: fmt.Sprintf(format, args...),
				Line:    lineNo,
				Char:    col,
				Pos:     offset + col,
			}
		}

		keyword, value := splitGrubLine(trimmed)
		if keyword == "" || strings.ContainsAny(keyword, "/[]") {
			return nil, fail("unexpected %q", keyword)
		}
		if grubRequiresValue[keyword] && value == "" {
			return nil, fail("%s requires a value", keyword)
		}

		switch {
		case keyword == "title":
			if value == "" {
				return nil, fail("title requires a name")
			}
			entry = top.appendValue("title", value)
		case grubEntryCommands[keyword]:
			if entry == nil {
				return nil, fail("%s is only allowed inside a title entry", keyword)
			}
			appendGrubCommand(entry, keyword, value)
		case entry != nil:
			// unknown commands inside an entry belong to the entry
			appendGrubCommand(entry, keyword, value)
		default:
			appendGrubCommand(top, keyword, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return top, nil
}

// scanLinesWithEOL is bufio.ScanLines keeping "\n" or "\r\n" in the token.
func scanLinesWithEOL(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i+1], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// splitGrubLine splits a line into its keyword and the rest. GRUB accepts
// both "key value" and "key=value".
func splitGrubLine(line string) (string, string) {
	end := strings.IndexAny(line, " \t=")
	if end < 0 {
		return line, ""
	}
	keyword := line[:end]
	rest := strings.TrimLeft(line[end:], " \t")
	rest = strings.TrimPrefix(rest, "=")
	return keyword, strings.TrimLeft(rest, " \t")
}

func appendGrubCommand(parent *node, keyword, value string) {
	if value == "" {
		parent.appendChild(keyword)
		return
	}
	if keyword != "kernel" && keyword != "module" {
		parent.appendValue(keyword, value)
		return
	}

	fields := strings.Fields(value)
	cmd := parent.appendValue(keyword, fields[0])
	for _, arg := range fields[1:] {
		k, v, hasValue := strings.Cut(arg, "=")
		if k == "" || strings.ContainsAny(k, "/[]") {
			continue
		}
		if hasValue {
			cmd.appendValue(k, v)
		} else {
			cmd.appendChild(k)
		}
	}
}
