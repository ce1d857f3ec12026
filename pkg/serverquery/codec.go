package serverquery

import (
	"sort"
	"strconv"
	"strings"
)

var (
	escaper = strings.NewReplacer(
		`\`, `\\`,
		`/`, `\/`,
		" ", `\s`,
		"|", `\p`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
	)
	unescaper = strings.NewReplacer(
		`\\`, `\`,
		`\/`, `/`,
		`\s`, " ",
		`\p`, "|",
		`\n`, "\n",
		`\r`, "\r",
		`\t`, "\t",
	)
)

// Escape encodes reserved characters for use in a command argument.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Unescape decodes a value received from the server.
func Unescape(s string) string {
	return unescaper.Replace(s)
}

// Record is one decoded key=value line.
type Record map[string]string

// Int returns the value for key as an int, or 0 if absent or malformed.
func (r Record) Int(key string) int {
	n, err := strconv.Atoi(r[key])
	if err != nil {
		return 0
	}
	return n
}

// ParseRecord decodes a space-separated key=value line.
func ParseRecord(line string) Record {
	rec := Record{}
	for _, token := range strings.Split(line, " ") {
		if token == "" {
			continue
		}
		key, value, _ := strings.Cut(token, "=")
		rec[key] = Unescape(value)
	}
	return rec
}

// ParseList decodes a pipe-separated list of records.
func ParseList(line string) []Record {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	parts := strings.Split(line, "|")
	out := make([]Record, 0, len(parts))
	for _, part := range parts {
		out = append(out, ParseRecord(part))
	}
	return out
}

// Params holds command arguments keyed by name.
type Params map[string]string

// Build formats a command with escaped, name-sorted parameters.
func Build(verb string, params Params) string {
	if len(params) == 0 {
		return verb
	}
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(verb)
	for _, key := range keys {
		b.WriteByte(' ')
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(Escape(params[key]))
	}
	return b.String()
}
