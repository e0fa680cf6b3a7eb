package templatefmt

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
)

// durationUnits are tried largest first; the first unit not exceeding the value wins.
var durationUnits = []struct {
	suffix string
	size   time.Duration
}{
	{suffix: "h", size: time.Hour},
	{suffix: "m", size: time.Minute},
}

// FuncMap returns the helpers available to run report templates.
// Params: none.
// Returns: helper map shared by config validation and report rendering.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"fmtDuration": FormatDuration,
		"json":        MarshalJSON,
		"comma":       Comma,
		"plural":      Plural,
		"join":        strings.Join,
	}
}

// ParseReportTemplate compiles one run report template; unknown keys fail at execution.
// Params: template name and body.
// Returns: compiled template or parse error.
func ParseReportTemplate(name, body string) (*template.Template, error) {
	return template.New(name).Funcs(FuncMap()).Option("missingkey=error").Parse(body)
}

// FormatDuration renders an elapsed time as hours, minutes or seconds with one decimal.
// Negative values are shown by magnitude; anything that is not a duration renders as 0.0s.
func FormatDuration(value any) string {
	duration, ok := asDuration(value)
	if !ok {
		return "0.0s"
	}
	if duration < 0 {
		duration = -duration
	}
	for _, unit := range durationUnits {
		if duration >= unit.size {
			return fmt.Sprintf("%.1f%s", float64(duration)/float64(unit.size), unit.suffix)
		}
	}
	return fmt.Sprintf("%.1fs", duration.Seconds())
}

func asDuration(value any) (time.Duration, bool) {
	switch typed := value.(type) {
	case time.Duration:
		return typed, true
	case *time.Duration:
		if typed == nil {
			return 0, false
		}
		return *typed, true
	default:
		return 0, false
	}
}

// Comma renders an integer count with thousands separators.
func Comma(value any) string {
	count, ok := asInt64(value)
	if !ok {
		return fmt.Sprint(value)
	}
	return humanize.Comma(count)
}

// Plural renders "<count> <word>" with the English plural form when count is not one.
// Params: integer count and singular noun.
// Returns: phrase such as "1 check" or "3 checks".
func Plural(value any, singular string) string {
	count, ok := asInt64(value)
	if !ok {
		return fmt.Sprint(value) + " " + singular
	}
	return english.Plural(int(count), singular, "")
}

func asInt64(value any) (int64, bool) {
	switch typed := value.(type) {
	case int:
		return int64(typed), true
	case int32:
		return int64(typed), true
	case int64:
		return typed, true
	case uint64:
		return int64(typed), true
	default:
		return 0, false
	}
}

// MarshalJSON embeds a value as JSON text; marshal failures render as null.
func MarshalJSON(value any) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return "null"
	}
	return string(encoded)
}
