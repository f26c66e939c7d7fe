package formula

import (
	"bytes"
	"fmt"
	"strings"
)

// Generator renders a Formula back into Lua source.
type Generator struct {
	indent string
}

// NewGenerator creates a generator using two-space indentation.
func NewGenerator() *Generator {
	return &Generator{indent: "  "}
}

// Generate returns Lua source that parses back into an equivalent formula.
// Output is deterministic: artifacts follow platform.AllKeys order and
// links are sorted.
func (g *Generator) Generate(f *Formula) (string, error) {
	if f == nil {
		return "", fmt.Errorf("formula is nil")
	}
	if err := f.Validate(); err != nil {
		return "", fmt.Errorf("validate formula: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "-- %s %s\n\n", f.Name, f.Version)
	buf.WriteString("formula = {\n")

	g.writeField(&buf, 1, luaFieldName, f.Name)
	g.writeField(&buf, 1, luaFieldDesc, f.Desc)
	g.writeField(&buf, 1, luaFieldHomepage, f.Homepage)
	g.writeField(&buf, 1, luaFieldLicense, f.License)
	g.writeField(&buf, 1, luaFieldVersion, f.Version)

	g.line(&buf, 1, luaFieldArtifact+" = {")
	for _, key := range f.Keys() {
		a := f.Artifacts[key]
		g.line(&buf, 2, fmt.Sprintf("[%s] = {", luaQuote(key.String())))
		g.writeField(&buf, 3, luaFieldURL, a.URL)
		g.writeField(&buf, 3, luaFieldSHA256, a.SHA256)
		g.writeField(&buf, 3, luaFieldSig, a.SignatureURL)
		g.line(&buf, 2, "},")
	}
	g.line(&buf, 1, "},")

	g.line(&buf, 1, luaFieldInstall+" = {")
	g.line(&buf, 2, fmt.Sprintf("%s = { %s },", luaFieldBin, quoteList(f.Bin)))
	if len(f.Links) > 0 {
		g.line(&buf, 2, luaFieldLinks+" = {")
		for _, alias := range f.LinkNames() {
			g.line(&buf, 3, fmt.Sprintf("[%s] = %s,", luaQuote(alias), luaQuote(f.Links[alias])))
		}
		g.line(&buf, 2, "},")
	}
	g.line(&buf, 1, "},")

	g.line(&buf, 1, luaFieldTest+" = {")
	g.line(&buf, 2, fmt.Sprintf("%s = { %s },", luaFieldArgs, quoteList(f.Test.Args)))
	if f.Test.Expect != f.Version {
		g.writeField(&buf, 2, luaFieldExpect, f.Test.Expect)
	}
	g.line(&buf, 1, "},")

	if f.SigningKey != "" {
		g.line(&buf, 1, fmt.Sprintf("%s = %s,", luaFieldSignKey, luaLongString(f.SigningKey)))
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}

func (g *Generator) line(buf *bytes.Buffer, depth int, s string) {
	buf.WriteString(strings.Repeat(g.indent, depth))
	buf.WriteString(s)
	buf.WriteByte('\n')
}

// writeField skips empty values so optional fields stay out of the file.
func (g *Generator) writeField(buf *bytes.Buffer, depth int, name, value string) {
	if value == "" {
		return
	}
	g.line(buf, depth, fmt.Sprintf("%s = %s,", name, luaQuote(value)))
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = luaQuote(s)
	}
	return strings.Join(quoted, ", ")
}

// luaQuote produces a double-quoted Lua string literal.
func luaQuote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 || c == 0x7f {
				fmt.Fprintf(&b, `\%03d`, c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

// luaLongString uses [[...]] for multi-line text such as armored keys,
// adding '=' levels until the closing bracket cannot appear inside s or be
// completed by its trailing ']'.
func luaLongString(s string) string {
	level := ""
	for strings.Contains(s, "]"+level+"]") || strings.HasSuffix(s, "]"+level) {
		level += "="
	}
	// A leading newline right after the opening bracket is dropped by Lua,
	// so one is always written to keep s intact.
	return "[" + level + "[\n" + s + "]" + level + "]"
}
