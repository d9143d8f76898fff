package graph

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// maxLabelLen bounds tag labels and entry names in bytes. 255 matches
// the filesystem component limit the boundary protocol imposes anyway,
// and that limit counts bytes, not runes.
const maxLabelLen = 255

// reserved characters can never appear in a label: the path separator
// would break the adapter's tag/name synthesis, and NUL breaks the wire.
const reservedChars = "/\x00"

func checkReserved(value interface{}) error {
	s, _ := value.(string)
	if strings.ContainsAny(s, reservedChars) {
		return fmt.Errorf("contains reserved character")
	}
	if s == "." || s == ".." {
		return fmt.Errorf("reserved name")
	}
	return nil
}

// ValidateLabel reports whether s is usable as a tag label or entry name.
// Violations wrap ErrInvalidLabel.
func ValidateLabel(s string) error {
	err := validation.Validate(s,
		validation.Required,
		validation.Length(1, maxLabelLen),
		validation.By(checkReserved),
	)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidLabel, s, err)
	}
	return nil
}
