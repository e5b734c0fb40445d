package source

import (
	"strconv"
	"strings"
)

// kerning below this (in thousandths of text space) inside a TJ array is read as a word gap.
const wordGapKerning = -200

// ContentText extracts the text shown by Tj, TJ, ' and " operators from a
// decoded page content stream. Font encodings are not resolved: string
// bytes are read as Latin-1 and non-printable bytes are dropped.
func ContentText(content []byte) string {
	p := contentParser{src: content}
	p.run()
	return p.out.String()
}

type contentParser struct {
	src     []byte
	pos     int
	out     strings.Builder
	pending []string
	inArray bool
}

func (p *contentParser) run() {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case isSpace(c):
			p.pos++
		case c == '%':
			for p.pos < len(p.src) && p.src[p.pos] != '\n' && p.src[p.pos] != '\r' {
				p.pos++
			}
		case c == '(':
			p.pending = append(p.pending, p.literal())
		case c == '<' && p.peek(1) == '<':
			p.pos += 2
		case c == '>' && p.peek(1) == '>':
			p.pos += 2
		case c == '<':
			p.pending = append(p.pending, p.hex())
		case c == '[':
			p.inArray = true
			p.pos++
		case c == ']':
			p.inArray = false
			p.pos++
		default:
			p.token()
		}
	}
}

func (p *contentParser) peek(n int) byte {
	if p.pos+n < len(p.src) {
		return p.src[p.pos+n]
	}
	return 0
}

func (p *contentParser) token() {
	start := p.pos
	for p.pos < len(p.src) && !isSpace(p.src[p.pos]) && !isDelimiter(p.src[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		p.pos++
		return
	}
	tok := string(p.src[start:p.pos])

	if n, err := strconv.ParseFloat(tok, 64); err == nil {
		if p.inArray && n < wordGapKerning {
			p.pending = append(p.pending, " ")
		}
		return
	}
	p.operator(tok)
}

func (p *contentParser) operator(op string) {
	switch op {
	case "Tj", "TJ":
		p.flush()
	case "'", `"`:
		p.newline()
		p.flush()
	case "T*", "ET":
		p.newline()
	case "Td", "TD", "Tm":
		p.space()
	}
	p.pending = p.pending[:0]
}

func (p *contentParser) flush() {
	for _, s := range p.pending {
		p.out.WriteString(s)
	}
}

func (p *contentParser) newline() {
	if p.out.Len() > 0 && !strings.HasSuffix(p.out.String(), "\n") {
		p.out.WriteByte('\n')
	}
}

func (p *contentParser) space() {
	s := p.out.String()
	if s != "" && !strings.HasSuffix(s, " ") && !strings.HasSuffix(s, "\n") {
		p.out.WriteByte(' ')
	}
}

func (p *contentParser) literal() string {
	var b strings.Builder
	depth := 0
	p.pos++ // (
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		p.pos++
		switch c {
		case '\\':
			if p.pos >= len(p.src) {
				return b.String()
			}
			e := p.src[p.pos]
			p.pos++
			switch e {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b', 'f':
			case '\r', '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '7'; i++ {
						v = v*8 + int(p.src[p.pos]-'0')
						p.pos++
					}
					writeByte(&b, byte(v))
					continue
				}
				writeByte(&b, e)
			}
		case '(':
			depth++
			b.WriteByte(c)
		case ')':
			if depth == 0 {
				return b.String()
			}
			depth--
			b.WriteByte(c)
		default:
			writeByte(&b, c)
		}
	}
	return b.String()
}

func (p *contentParser) hex() string {
	p.pos++ // <
	var digits []byte
	for p.pos < len(p.src) && p.src[p.pos] != '>' {
		if c := p.src[p.pos]; !isSpace(c) {
			digits = append(digits, c)
		}
		p.pos++
	}
	p.pos++ // >
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	var b strings.Builder
	for i := 0; i+1 < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			return ""
		}
		writeByte(&b, byte(v))
	}
	return b.String()
}

func writeByte(b *strings.Builder, c byte) {
	switch {
	case c == '\n' || c == '\t':
		b.WriteByte(c)
	case c >= 0x20 && c < 0x7f:
		b.WriteByte(c)
	case c >= 0xa0:
		b.WriteRune(rune(c))
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}
