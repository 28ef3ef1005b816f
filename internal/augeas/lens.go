package augeas

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrParseFailed is wrapped by errors about files their lens rejected.
var ErrParseFailed = errors.New("file failed to parse")

// ParseError describes why a lens rejected a file. Line is 1-based, Char is
// the 0-based column within the line and Pos the byte offset in the file.
type ParseError struct {
	Message string
	Line    int
	Char    int
	Pos     int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at line %d, char %d", e.Message, e.Line, e.Char)
}

// Lens parses one file format into tree nodes.
type Lens struct {
	Name string
	// Includes lists the files the lens is loaded for.
	Includes []string

	parse func(data []byte) (*node, error)
}

func newLens(name string, parse func([]byte) (*node, error), includes ...string) *Lens {
	return &Lens{
		Name:     name,
		Includes: includes,
		parse:    parse,
	}
}

// Lenses returns the lenses known to this package.
func Lenses() []*Lens {
	return []*Lens{GrubLens()}
}

// Load parses data with lens and places the result below /files<file>.
//
// Parse failures are not returned: they are recorded below
// /augeas/files<file>/error, the same way Augeas reports them, and any
// previously loaded content for the file is dropped.
func (t *Tree) Load(file string, data []byte, lens *Lens) error {
	if _, err := t.Remove("/augeas/files" + file + "/error"); err != nil {
		return err
	}

	parsed, err := lens.parse(data)
	var perr *ParseError
	if errors.As(err, &perr) {
		if _, err := t.Remove("/files" + file); err != nil {
			return err
		}
		return t.recordError(file, lens, perr)
	}
	if err != nil {
		return err
	}
	return t.attach("/files"+file, parsed)
}

func (t *Tree) recordError(file string, lens *Lens, perr *ParseError) error {
	errPath := "/augeas/files" + file + "/error"
	fields := []struct {
		label string
		value string
	}{
		{"", "parse_failed"},
		{"/pos", strconv.Itoa(perr.Pos)},
		{"/line", strconv.Itoa(perr.Line)},
		{"/char", strconv.Itoa(perr.Char)},
		{"/lens", lens.Name},
		{"/message", perr.Message},
	}
	for _, f := range fields {
		if err := t.Set(errPath+f.label, f.value); err != nil {
			return err
		}
	}
	return nil
}

// ParseFailed reports whether the last Load of file recorded a parse error.
func (t *Tree) ParseFailed(file string) bool {
	nodes, err := t.match("/augeas/files" + file + "/error")
	return err == nil && len(nodes) > 0
}
