package smhfile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// SMH serializes vectors as "[x y z]" and angles as "{pitch yaw roll}"
// (degrees). Both are plain space-separated floats inside a bracket pair.

func parseTriple(s, open, close string) (v mgl64.Vec3, err error) {
	body := strings.TrimSpace(s)
	if !strings.HasPrefix(body, open) || !strings.HasSuffix(body, close) {
		return v, errors.Errorf("missing %s %s delimiters in %q", open, close, s)
	}
	fields := strings.Fields(body[len(open) : len(body)-len(close)])
	if len(fields) != 3 {
		return v, errors.Errorf("expected 3 components in %q, got %d", s, len(fields))
	}
	for i, f := range fields {
		if v[i], err = strconv.ParseFloat(f, 64); err != nil {
			return v, errors.Wrapf(err, "component %d of %q", i, s)
		}
	}
	return v, nil
}

func ParseVec(s string) (mgl64.Vec3, error) {
	return parseTriple(s, "[", "]")
}

func ParseAng(s string) (mgl64.Vec3, error) {
	return parseTriple(s, "{", "}")
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func FormatVec(v mgl64.Vec3) string {
	return fmt.Sprintf("[%s %s %s]", ftoa(v[0]), ftoa(v[1]), ftoa(v[2]))
}

func FormatAng(v mgl64.Vec3) string {
	return fmt.Sprintf("{%s %s %s}", ftoa(v[0]), ftoa(v[1]), ftoa(v[2]))
}
