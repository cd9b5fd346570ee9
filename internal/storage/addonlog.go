package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const collapseWidth = 70

var extensionOrigin = regexp.MustCompile(`moz-extension://[a-f0-9-]+/`)

// FormatLogEntry renders one extension log call the way addon.log stores
// it: a header line, the arguments indented by four spaces and a blank line.
// Short calls with several arguments are written on a single line.
func FormatLogEntry(level, stack string, args []json.RawMessage, now time.Time) string {
	if level == "" {
		level = "log"
	}
	location := ""
	if stack != "" {
		location = strings.SplitN(stack, "\n", 2)[0]
		location = extensionOrigin.ReplaceAllString(strings.TrimRight(location, "\r"), "/")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Log/%-5s %d %s\n", level, now.UnixMilli(), location)

	if len(args) == 0 {
		b.WriteString("    (no arguments)\n\n")
		return b.String()
	}

	if len(args) > 1 {
		parts := make([]string, len(args))
		for i, arg := range args {
			parts[i] = compactArg(arg)
		}
		if line := strings.Join(parts, ", "); len(line) < collapseWidth {
			b.WriteString("    " + line + "\n\n")
			return b.String()
		}
	}

	for _, arg := range args {
		for _, line := range strings.Split(renderArg(arg), "\n") {
			b.WriteString("    " + line + "\n")
		}
	}
	b.WriteString("\n")
	return b.String()
}

// renderArg prints strings as-is and anything else as indented JSON.
func renderArg(arg json.RawMessage) string {
	var s string
	if err := json.Unmarshal(arg, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, arg, "", "  "); err != nil {
		return string(arg)
	}
	return buf.String()
}

func compactArg(arg json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, arg); err != nil {
		return string(arg)
	}
	return buf.String()
}
