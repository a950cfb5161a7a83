package domain

import "fmt"

// Spaciousness describes how roomy the shop felt.
type Spaciousness int

// Cleanliness describes how clean the shop was.
type Cleanliness int

// Relaxation describes how calm the shop was.
type Relaxation int

// Tag codes as stored. Each tag is a closed two-value set.
const (
	SpaciousnessWide   Spaciousness = 1
	SpaciousnessNarrow Spaciousness = 2

	CleanlinessClean Cleanliness = 1
	CleanlinessDirty Cleanliness = 2

	RelaxationRelaxed Relaxation = 1
	RelaxationBusy    Relaxation = 2
)

var (
	spaciousnessLabels = map[Spaciousness]string{SpaciousnessWide: "wide", SpaciousnessNarrow: "narrow"}
	cleanlinessLabels  = map[Cleanliness]string{CleanlinessClean: "clean", CleanlinessDirty: "dirty"}
	relaxationLabels   = map[Relaxation]string{RelaxationRelaxed: "relaxed", RelaxationBusy: "busy"}
)

// Valid reports whether s is one of the known codes.
func (s Spaciousness) Valid() bool {
	_, ok := spaciousnessLabels[s]
	return ok
}

// Valid reports whether c is one of the known codes.
func (c Cleanliness) Valid() bool {
	_, ok := cleanlinessLabels[c]
	return ok
}

// Valid reports whether r is one of the known codes.
func (r Relaxation) Valid() bool {
	_, ok := relaxationLabels[r]
	return ok
}

func (s Spaciousness) String() string { return label(spaciousnessLabels, s) }

func (c Cleanliness) String() string { return label(cleanlinessLabels, c) }

func (r Relaxation) String() string { return label(relaxationLabels, r) }

// ParseSpaciousness maps a form label ("wide", "narrow") to its code.
func ParseSpaciousness(s string) (Spaciousness, error) {
	return parseLabel("spaciousness", spaciousnessLabels, s)
}

// ParseCleanliness maps a form label ("clean", "dirty") to its code.
func ParseCleanliness(s string) (Cleanliness, error) {
	return parseLabel("cleanliness", cleanlinessLabels, s)
}

// ParseRelaxation maps a form label ("relaxed", "busy") to its code.
func ParseRelaxation(s string) (Relaxation, error) {
	return parseLabel("relaxation", relaxationLabels, s)
}

func label[T ~int](labels map[T]string, v T) string {
	if s, ok := labels[v]; ok {
		return s
	}

	return fmt.Sprintf("unknown(%d)", int(v))
}

func parseLabel[T ~int](field string, labels map[T]string, s string) (T, error) {
	for code, l := range labels {
		if l == s {
			return code, nil
		}
	}

	return 0, NewValidationErrorWithValue(field, fmt.Sprintf("unknown value %q", s), s)
}
