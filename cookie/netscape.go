// Package cookie implements the Netscape cookies.txt wire format spec.md
// §6 specifies: seven tab-separated fields per line. There is no teacher
// precedent for this exact format (the teacher is a WebSocket server with
// no HTTP cookie jar), so this package is grounded directly on the spec's
// literal field list, following the same option-validation and small
// value-type idiom the rest of this module uses (errs.Error on malformed
// input, a plain comparable struct otherwise).
package cookie

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/corvidlabs/wsloop/errs"
)

// Cookie is one parsed Netscape-format cookie line.
type Cookie struct {
	Domain            string
	IncludeSubdomains bool
	Path              string
	Secure            bool
	Expires           time.Time
	Name              string
	Value             string
}

const fieldCount = 7

// Parse decodes one tab-separated Netscape cookie line. Per spec.md §6,
// each field is trimmed of surrounding whitespace.
func Parse(line string) (Cookie, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != fieldCount {
		return Cookie{}, errs.New(errs.CodeInvalidArgument,
			fmt.Sprintf("cookie: expected %d tab-separated fields, got %d", fieldCount, len(fields)))
	}
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}

	subdomains, err := parseBool(fields[1])
	if err != nil {
		return Cookie{}, errs.Wrap(errs.CodeInvalidArgument, "cookie: include_subdomains field", err)
	}
	secure, err := parseBool(fields[3])
	if err != nil {
		return Cookie{}, errs.Wrap(errs.CodeInvalidArgument, "cookie: secure field", err)
	}
	epoch, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return Cookie{}, errs.Wrap(errs.CodeInvalidArgument, "cookie: expires field", err)
	}

	return Cookie{
		Domain:            fields[0],
		IncludeSubdomains: subdomains,
		Path:              fields[2],
		Secure:            secure,
		Expires:           time.Unix(epoch, 0).UTC(),
		Name:              fields[5],
		Value:             fields[6],
	}, nil
}

func parseBool(s string) (bool, error) {
	switch s {
	case "TRUE":
		return true, nil
	case "FALSE":
		return false, nil
	default:
		return false, fmt.Errorf("expected TRUE or FALSE, got %q", s)
	}
}

func formatBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// Serialize reproduces the seven-field tab-separated line for c, the
// inverse of Parse (modulo the trailing newline a cookies.txt file would
// carry between entries — spec.md §8's round-trip property is stated
// "modulo trailing newline").
func (c Cookie) Serialize() string {
	return strings.Join([]string{
		c.Domain,
		formatBool(c.IncludeSubdomains),
		c.Path,
		formatBool(c.Secure),
		strconv.FormatInt(c.Expires.Unix(), 10),
		c.Name,
		c.Value,
	}, "\t")
}

// Compare orders two cookies lexicographically over all seven fields, in
// the field order above. spec.md §9 Open Question #1 notes the original
// source's comparison operators appear to compare rhs to itself (a
// likely typo); this implements the obvious lexicographic order instead
// of reproducing that bug.
func (c Cookie) Compare(other Cookie) int {
	if d := strings.Compare(c.Domain, other.Domain); d != 0 {
		return d
	}
	if d := compareBool(c.IncludeSubdomains, other.IncludeSubdomains); d != 0 {
		return d
	}
	if d := strings.Compare(c.Path, other.Path); d != 0 {
		return d
	}
	if d := compareBool(c.Secure, other.Secure); d != 0 {
		return d
	}
	if d := c.Expires.Compare(other.Expires); d != 0 {
		return d
	}
	if d := strings.Compare(c.Name, other.Name); d != 0 {
		return d
	}
	return strings.Compare(c.Value, other.Value)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a && b:
		return -1
	default:
		return 1
	}
}

// Less reports whether c sorts before other under Compare, the shape
// sort.Slice callers reach for.
func (c Cookie) Less(other Cookie) bool { return c.Compare(other) < 0 }

// Equal reports whether c and other carry identical field values.
func (c Cookie) Equal(other Cookie) bool { return c.Compare(other) == 0 }
