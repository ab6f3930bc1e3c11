// Package mapfile loads the ordered name lists (bone map, physics map,
// flex map) dumped from the game console. Line position is the implicit
// index the engine uses, so order is preserved and duplicates are fatal.
package mapfile

import (
	"bytes"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var ErrMalformedMap = errors.New("malformed map file")

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// Parse extracts the name tokens from a map file body. These files come out
// of a Windows game console, so a UTF-8 BOM or Windows-1252 bytes are
// tolerated; the result is always UTF-8.
func Parse(data []byte, path string) ([]string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedMap, "%s: undecodable bytes: %v", path, err)
		}
		data = decoded
	}

	names := make([]string, 0, 64)
	seen := make(map[string]int)
	for i, line := range strings.Split(string(data), "\n") {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		if prev, ok := seen[name]; ok {
			return nil, errors.Wrapf(ErrMalformedMap,
				"%s: duplicate name %q on lines %d and %d", path, name, prev+1, i+1)
		}
		seen[name] = i
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, errors.Wrapf(ErrMalformedMap, "%s: no names found", path)
	}
	return names, nil
}

func Load(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read map %s", path)
	}
	return Parse(data, path)
}
