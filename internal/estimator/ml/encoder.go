package ml

import "github.com/orchidlab/labpredict/internal/estimate"

// LabelEncoder maps categorical values to the integer codes used during
// training. Codes are positions in the class list.
type LabelEncoder struct {
	classes []string
	index   map[string]int
	canon   func(string) string
}

// NewLabelEncoder indexes classes by fold key; the first spelling of a
// key wins.
func NewLabelEncoder(classes []string) *LabelEncoder {
	return newLabelEncoder(classes, nil)
}

// NewTypeEncoder indexes pollination types by their canonical name, so the
// trained SIBBLING class and a SIBLING request share a code.
func NewTypeEncoder(classes []string) *LabelEncoder {
	return newLabelEncoder(classes, estimate.NormalizeType)
}

func newLabelEncoder(classes []string, canon func(string) string) *LabelEncoder {
	e := &LabelEncoder{
		classes: append([]string(nil), classes...),
		index:   make(map[string]int, len(classes)),
		canon:   canon,
	}
	for i, c := range classes {
		k := e.key(c)
		if _, dup := e.index[k]; !dup {
			e.index[k] = i
		}
	}
	return e
}

func (e *LabelEncoder) key(value string) string {
	if e.canon != nil {
		value = e.canon(value)
	}
	return estimate.FoldKey(value)
}

// Encode returns the code for value. Unseen values get the code of the
// first known class and seen=false.
func (e *LabelEncoder) Encode(value string) (code int, seen bool) {
	if e == nil {
		return 0, false
	}
	if i, ok := e.index[e.key(value)]; ok {
		return i, true
	}
	return 0, false
}

// Known reports whether value was seen during training
func (e *LabelEncoder) Known(value string) bool {
	_, seen := e.Encode(value)
	return seen
}

// Len returns the number of known classes
func (e *LabelEncoder) Len() int { return len(e.classes) }
