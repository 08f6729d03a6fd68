package osc

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// ParseQSC parses the shell-like text convention this library uses for
// diagnostics and test fixtures: an address followed by space-separated
// tokens. It is never a wire format.
//
// Recognized tokens:
//
//	123        -> Int32
//	1.5, 1e9   -> Float32
//	'text'     -> String
//	#blob 0a1b -> Blob (hex-encoded payload)
//	\T \F \N \I -> True, False, Null, Impulse
func ParseQSC(s string) (*Message, error) {
	fields, err := qscFields(s)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty QSC string", ErrIllegalPattern)
	}
	m := &Message{Pattern: fields[0]}
	fields = fields[1:]
	for i := 0; i < len(fields); i++ {
		tok := fields[i]
		switch {
		case tok == `\T`:
			m.Arguments = append(m.Arguments, True{})
		case tok == `\F`:
			m.Arguments = append(m.Arguments, False{})
		case tok == `\N`:
			m.Arguments = append(m.Arguments, Null{})
		case tok == `\I`:
			m.Arguments = append(m.Arguments, Impulse{})
		case tok == "#blob":
			i++
			if i >= len(fields) {
				return nil, fmt.Errorf("osc: #blob token missing hex payload")
			}
			raw, err := hex.DecodeString(fields[i])
			if err != nil {
				return nil, fmt.Errorf("osc: decoding blob hex: %w", err)
			}
			b := Blob(raw)
			m.Arguments = append(m.Arguments, &b)
		case strings.HasPrefix(tok, "'") && strings.HasSuffix(tok, "'") && len(tok) >= 2:
			s := String(tok[1 : len(tok)-1])
			m.Arguments = append(m.Arguments, &s)
		case strings.ContainsAny(tok, ".eE") && looksNumeric(tok):
			f, err := strconv.ParseFloat(tok, 32)
			if err != nil {
				return nil, fmt.Errorf("osc: parsing float token %q: %w", tok, err)
			}
			v := Float32(f)
			m.Arguments = append(m.Arguments, &v)
		default:
			n, err := strconv.ParseInt(tok, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("osc: unrecognized QSC token %q", tok)
			}
			v := Int32(n)
			m.Arguments = append(m.Arguments, &v)
		}
	}
	return m, nil
}

func looksNumeric(tok string) bool {
	for _, r := range tok {
		switch {
		case r >= '0' && r <= '9':
		case r == '.' || r == 'e' || r == 'E' || r == '+' || r == '-':
		default:
			return false
		}
	}
	return true
}

// qscFields splits a QSC string on whitespace, keeping single-quoted
// substrings (which may contain spaces) intact.
func qscFields(s string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '\'':
			inQuote = !inQuote
			cur.WriteRune(r)
		case r == ' ' && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("osc: unterminated quoted string in %q", s)
	}
	flush()
	return fields, nil
}

// QSC renders the message using the text convention ParseQSC understands.
func (m Message) QSC() string {
	var sb strings.Builder
	sb.WriteString(m.Pattern)
	for _, a := range m.Arguments {
		sb.WriteByte(' ')
		switch v := a.(type) {
		case *Int32:
			fmt.Fprintf(&sb, "%d", *v)
		case Int32:
			fmt.Fprintf(&sb, "%d", v)
		case *Float32:
			fmt.Fprintf(&sb, "%g", *v)
		case Float32:
			fmt.Fprintf(&sb, "%g", v)
		case *String:
			fmt.Fprintf(&sb, "'%s'", *v)
		case String:
			fmt.Fprintf(&sb, "'%s'", v)
		case *Blob:
			fmt.Fprintf(&sb, "#blob %s", hex.EncodeToString(*v))
		case Blob:
			fmt.Fprintf(&sb, "#blob %s", hex.EncodeToString(v))
		case True:
			sb.WriteString(`\T`)
		case False:
			sb.WriteString(`\F`)
		case Null:
			sb.WriteString(`\N`)
		case Impulse:
			sb.WriteString(`\I`)
		default:
			fmt.Fprintf(&sb, "%v", a)
		}
	}
	return sb.String()
}
