package vocab

// Entry is one vocabulary item. Entries are immutable once loaded.
type Entry struct {
	// ID is the index of the entry in its dataset.
	ID int `json:"-"`

	// AnswerText is the phrase the learner must say.
	AnswerText string `json:"eng"`

	// PromptText is the plain foreign-language prompt.
	PromptText string `json:"jp"`

	// DisplayText is the prompt as shown, possibly carrying ruby markup.
	// Falls back to PromptText when the record omits it.
	DisplayText string `json:"jpFormatted,omitempty"`

	HasAnnotation bool `json:"hasFurigana,omitempty"`

	AudioRef        string `json:"audio,omitempty"`
	ImageRef        string `json:"image,omitempty"`
	AttributionHTML string `json:"attr,omitempty"`
}

// Dataset is an ordered, index-addressed collection of entries.
type Dataset struct {
	entries []Entry
	source  string
}

// NewDataset builds a dataset from entries, assigning IDs by position.
// The slice is copied.
func NewDataset(entries []Entry) *Dataset {
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	for i := range cp {
		cp[i].ID = i
		if cp[i].DisplayText == "" {
			cp[i].DisplayText = cp[i].PromptText
		}
	}
	return &Dataset{entries: cp}
}

// Len returns the number of entries.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

// At returns the entry at index i.
func (d *Dataset) At(i int) (Entry, bool) {
	if d == nil || i < 0 || i >= len(d.entries) {
		return Entry{}, false
	}
	return d.entries[i], true
}

// Entries returns a copy of all entries in order.
func (d *Dataset) Entries() []Entry {
	if d == nil {
		return nil
	}
	cp := make([]Entry, len(d.entries))
	copy(cp, d.entries)
	return cp
}

// Source returns the path the dataset was read from, if any.
func (d *Dataset) Source() string {
	if d == nil {
		return ""
	}
	return d.source
}
