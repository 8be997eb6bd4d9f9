package mirror

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SanitizeName turns a remote display name into a single safe path
// component. Names are NFC-normalized so the same remote name always maps
// to the same local bytes, separators and NUL become "_", and names that
// would escape or alias the parent ("", ".", "..") become "_".
func SanitizeName(name string) string {
	n := norm.NFC.String(strings.TrimSpace(name))

	n = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		default:
			return r
		}
	}, n)

	switch n {
	case "", ".", "..":
		return "_"
	default:
		return n
	}
}
