package models

// TimeRange is the Spotify time_range query value.
type TimeRange string

const (
	ShortTerm  TimeRange = "short_term"
	MediumTerm TimeRange = "medium_term"
	LongTerm   TimeRange = "long_term"
)

// Timeframe labels offered when creating a wrap.
const (
	TimeframeMonth     = "1 month"
	TimeframeYear      = "1 year"
	TimeframeFiveYears = "5 years"
)

// Timeframes lists the labels in display order.
var Timeframes = []string{TimeframeMonth, TimeframeYear, TimeframeFiveYears}

// RangeFor maps a timeframe label to a Spotify range. Unknown labels map to [ShortTerm].
func RangeFor(timeframe string) TimeRange {
	switch timeframe {
	case TimeframeYear:
		return MediumTerm
	case TimeframeFiveYears:
		return LongTerm
	default:
		return ShortTerm
	}
}

// Language is a supported description language.
type Language string

const (
	English     Language = "en"
	Azerbaijani Language = "az"
	Russian     Language = "ru"
)

// Languages lists supported languages, English first.
var Languages = []Language{English, Azerbaijani, Russian}

var languageNames = map[Language]string{
	English:     "English",
	Azerbaijani: "Azerbaijani",
	Russian:     "Russian",
}

// Name returns the English name of the language.
func (l Language) Name() string {
	return languageNames[l]
}

// ParseLanguage returns the language for code and false when the code is unsupported.
func ParseLanguage(code string) (Language, bool) {
	l := Language(code)
	_, ok := languageNames[l]
	return l, ok
}
