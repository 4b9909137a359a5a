package template

import (
	"fmt"
	"regexp"
	"strings"
)

// Dialect names accepted in the marker comment.
const (
	FormatString   = "format-string"
	TemplateString = "template-string"
)

var markerRE = regexp.MustCompile(`#.+provision-template-type:\W*([\w-]+)`)

// templateRE mirrors the placeholder grammar of template-string scripts:
// an escaped dollar, a bare identifier or a braced identifier.
var templateRE = regexp.MustCompile(`\$(?:(\$)|([_a-zA-Z][_a-zA-Z0-9]*)|\{([_a-zA-Z][_a-zA-Z0-9]*)\})`)

var identRE = regexp.MustCompile(`^[_a-zA-Z][_a-zA-Z0-9]*$`)

type renderFunc func(text string, vars map[string]string) (string, error)

var dialects = map[string]renderFunc{
	FormatString:   renderFormat,
	"format":       renderFormat,
	TemplateString: renderTemplate,
	"template":     renderTemplate,
}

// Dialect returns the dialect named by the first marker in text.
func Dialect(text string) (string, bool) {
	m := markerRE.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Render substitutes vars into text according to the dialect its marker
// names. Text without a marker is returned as is.
func Render(text string, vars map[string]string) (string, error) {
	name, ok := Dialect(text)
	if !ok {
		return text, nil
	}
	render, ok := dialects[name]
	if !ok {
		return "", &UnsupportedDialectError{Dialect: name}
	}
	return render(text, vars)
}

func renderFormat(text string, vars map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(text); {
		switch text[i] {
		case '{':
			if i+1 < len(text) && text[i+1] == '{' {
				b.WriteByte('{')
				i += 2
				continue
			}
			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 {
				return "", syntaxError(text, i, "unterminated placeholder")
			}
			field := text[i+1 : i+1+end]
			if !identRE.MatchString(field) {
				return "", syntaxError(text, i, fmt.Sprintf("invalid placeholder {%s}", field))
			}
			val, ok := vars[field]
			if !ok {
				return "", &MissingVariableError{Name: field, Line: lineOf(text, i)}
			}
			b.WriteString(val)
			i += end + 2
		case '}':
			if i+1 < len(text) && text[i+1] == '}' {
				b.WriteByte('}')
				i += 2
				continue
			}
			return "", syntaxError(text, i, "single '}' encountered")
		default:
			b.WriteByte(text[i])
			i++
		}
	}
	return b.String(), nil
}

func renderTemplate(text string, vars map[string]string) (string, error) {
	matches := templateRE.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m[0]])
		last = m[1]

		switch {
		case m[2] >= 0:
			b.WriteByte('$')
		case m[4] >= 0:
			writeVar(&b, vars, text[m[4]:m[5]], text[m[0]:m[1]])
		case m[6] >= 0:
			writeVar(&b, vars, text[m[6]:m[7]], text[m[0]:m[1]])
		}
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

func writeVar(b *strings.Builder, vars map[string]string, name, verbatim string) {
	if val, ok := vars[name]; ok {
		b.WriteString(val)
		return
	}
	b.WriteString(verbatim)
}

func lineOf(text string, offset int) int {
	return strings.Count(text[:offset], "\n") + 1
}

func syntaxError(text string, offset int, reason string) error {
	return &SyntaxError{Line: lineOf(text, offset), Reason: reason}
}
