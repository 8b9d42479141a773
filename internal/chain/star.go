package chain

import (
	"fmt"
	"unicode/utf8"
)

// Star describes a registered star. Coordinates are kept exactly as the
// owner submitted them.
type Star struct {
	Dec   string `json:"dec"`
	RA    string `json:"ra"`
	Mag   string `json:"mag,omitempty"`
	Cen   string `json:"cen,omitempty"`
	Story string `json:"story"`
}

// StarRecord is the payload of every non-genesis block.
type StarRecord struct {
	Star    Star   `json:"star"`
	Address string `json:"address"`
}

// validate reports the first field that is not valid UTF-8. JSON encoding
// would replace its invalid bytes with U+FFFD and the stored body would no
// longer match what was submitted.
func (r StarRecord) validate() error {
	fields := []struct{ name, value string }{
		{"address", r.Address},
		{"dec", r.Star.Dec},
		{"ra", r.Star.RA},
		{"mag", r.Star.Mag},
		{"cen", r.Star.Cen},
		{"story", r.Star.Story},
	}
	for _, f := range fields {
		if !utf8.ValidString(f.value) {
			return fmt.Errorf("%w: field %s", ErrInvalidStar, f.name)
		}
	}
	return nil
}

// OwnedStar pairs a registered star with the wallet address that claimed it.
type OwnedStar struct {
	Star  Star   `json:"star"`
	Owner string `json:"owner"`
}
