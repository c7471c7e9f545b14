package calendar

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultLocale is the locale the widget ships with.
const DefaultLocale = "ru"

type localeNames struct {
	weekdays [7]string // indexed by time.Weekday
	months   [12]string
}

var names = map[string]localeNames{
	"ru": {
		weekdays: [7]string{"вс", "пн", "вт", "ср", "чт", "пт", "сб"},
		months: [12]string{
			"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
			"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
		},
	},
	"en": {
		weekdays: [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
		months: [12]string{
			"January", "February", "March", "April", "May", "June",
			"July", "August", "September", "October", "November", "December",
		},
	},
}

// Labels holds the uppercased weekday abbreviations and month names for one locale.
type Labels struct {
	locale   string
	weekdays [7]string
	months   [12]string
}

// NewLabels resolves a BCP 47 tag ("ru", "ru-RU", "en-US") to a supported
// locale. Unknown or malformed tags fall back to DefaultLocale.
func NewLabels(locale string) *Labels {
	tag, base := resolveLocale(locale)
	src := names[base]

	upper := cases.Upper(tag)
	l := &Labels{locale: base, months: src.months}
	for i, wd := range src.weekdays {
		l.weekdays[i] = upper.String(wd)
	}
	return l
}

func resolveLocale(locale string) (language.Tag, string) {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return language.MustParse(DefaultLocale), DefaultLocale
	}
	b, _ := tag.Base()
	if _, ok := names[b.String()]; !ok {
		return language.MustParse(DefaultLocale), DefaultLocale
	}
	return tag, b.String()
}

// Locale returns the resolved base language.
func (l *Labels) Locale() string {
	return l.locale
}

// Weekday returns the uppercased abbreviated weekday name.
func (l *Labels) Weekday(wd time.Weekday) string {
	return l.weekdays[int(wd)%7]
}

// Month returns the month name for a zero-based month index.
func (l *Labels) Month(month int) string {
	if month < 0 || month > 11 {
		return ""
	}
	return l.months[month]
}
