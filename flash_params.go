package acorn

import "time"

// flashPart names a known chip and the settle times of its power commands.
type flashPart struct {
	name string

	releasePowerDown time.Duration // tRES1
	powerDown        time.Duration // tDP
}

var (
	flashIDMicronN25Q32   = [3]byte{0x20, 0xBA, 0x16}
	flashIDWinbondW25Q128 = [3]byte{0xEF, 0x70, 0x18}
)

var flashParts = map[[3]byte]flashPart{
	flashIDMicronN25Q32: {
		name: "Micron N25Q 32Mb",
	},
	// [W25Q128|9.6 AC Electrical Characteristics]
	flashIDWinbondW25Q128: {
		name:             "Winbond W25Q 128Mb",
		releasePowerDown: 3 * time.Microsecond,
		powerDown:        3 * time.Microsecond,
	},
}

// timing returns the timings of the identified part. Timings that are unknown,
// before ReadID or for a chip not in flashParts, are the slowest known ones.
func (f *Flash) timing() flashPart {
	var t flashPart
	if f.part != nil {
		t = *f.part
	}
	fillRES, fillDP := t.releasePowerDown == 0, t.powerDown == 0
	for _, p := range flashParts {
		if fillRES {
			t.releasePowerDown = max(t.releasePowerDown, p.releasePowerDown)
		}
		if fillDP {
			t.powerDown = max(t.powerDown, p.powerDown)
		}
	}
	return t
}
