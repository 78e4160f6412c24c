package models

// FilterKind enumerates the list filter modes.
type FilterKind int

const (
	FilterNone FilterKind = iota
	FilterKeyword
	FilterTodayRandom
)

// FilterMode is the active list filter. At most one is active at a time.
type FilterMode struct {
	Kind    FilterKind
	Keyword string
}

// NoFilter shows the unmodified base list.
var NoFilter = FilterMode{Kind: FilterNone}

// TodayPick is the randomized "today's recommendation" mode.
var TodayPick = FilterMode{Kind: FilterTodayRandom}

// KeywordFilter builds the keyword mode for k.
func KeywordFilter(k string) FilterMode {
	return FilterMode{Kind: FilterKeyword, Keyword: k}
}

// Equal compares two modes; the keyword only matters for keyword modes.
func (m FilterMode) Equal(other FilterMode) bool {
	if m.Kind != other.Kind {
		return false
	}
	return m.Kind != FilterKeyword || m.Keyword == other.Keyword
}

// IsNone reports whether no filter is active.
func (m FilterMode) IsNone() bool {
	return m.Kind == FilterNone
}

func (m FilterMode) String() string {
	switch m.Kind {
	case FilterKeyword:
		return "keyword:" + m.Keyword
	case FilterTodayRandom:
		return "today"
	default:
		return "none"
	}
}

// IsActive reports whether candidate is the mode currently in m.
func (m FilterMode) IsActive(candidate FilterMode) bool {
	return m.Equal(candidate)
}
