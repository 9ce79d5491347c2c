package model

import "math"

// Level is an OPIc proficiency level. The nine real levels are ordered
// from Novice Low to Advanced Low; ordinal position is the unit of
// score averaging.
type Level string

const (
	LevelNL  Level = "NL"
	LevelNM  Level = "NM"
	LevelNH  Level = "NH"
	LevelIL  Level = "IL"
	LevelIM1 Level = "IM1"
	LevelIM2 Level = "IM2"
	LevelIM3 Level = "IM3"
	LevelIH  Level = "IH"
	LevelAL  Level = "AL"

	// LevelError marks an item whose grading attempts were exhausted.
	// It is outside the ordered scale: never averaged, never shown to
	// the user as a proficiency level.
	LevelError Level = "ERROR"
)

// Levels lists the real proficiency levels in ascending order.
var Levels = []Level{
	LevelNL, LevelNM, LevelNH, LevelIL,
	LevelIM1, LevelIM2, LevelIM3, LevelIH, LevelAL,
}

// Ordinal returns the zero-based position of l on the proficiency scale.
// Returns false for LevelError or any code outside the scale.
func (l Level) Ordinal() (int, bool) {
	for i, v := range Levels {
		if v == l {
			return i, true
		}
	}
	return 0, false
}

// Valid reports whether l is one of the nine real proficiency levels.
func (l Level) Valid() bool {
	_, ok := l.Ordinal()
	return ok
}

// LevelFromOrdinal maps an ordinal back to a Level, clamping out-of-range
// values to the ends of the scale.
func LevelFromOrdinal(n int) Level {
	if n < 0 {
		n = 0
	}
	if n >= len(Levels) {
		n = len(Levels) - 1
	}
	return Levels[n]
}

// AverageLevel computes the ordinal mean of the given levels, rounded to
// the nearest level. Codes outside the scale (including LevelError) are
// skipped. Returns false if no valid level remains.
func AverageLevel(levels []Level) (Level, bool) {
	sum, count := 0, 0
	for _, l := range levels {
		if ord, ok := l.Ordinal(); ok {
			sum += ord
			count++
		}
	}
	if count == 0 {
		return "", false
	}
	avg := float64(sum) / float64(count)
	return LevelFromOrdinal(int(math.Round(avg))), true
}
