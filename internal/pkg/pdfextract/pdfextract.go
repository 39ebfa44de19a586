// Package pdfextract pulls readable text out of PDF bytes without a full PDF
// object model. It looks at content streams only and keeps the operands of the
// Tj and TJ text-showing operators. Anything it cannot understand is skipped,
// so the result may be empty but extraction itself never fails.
package pdfextract

import (
	"bytes"
	"compress/zlib"
	"io"
	"strings"
)

var (
	streamKeyword    = []byte("stream")
	endstreamKeyword = []byte("endstream")
)

// ExtractText reads the entire content of r and extracts plain text from it.
// The only error returned is a read error from r.
func ExtractText(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return Extract(b), nil
}

// Extract returns the whitespace-normalized text of every content stream in
// data, in the order the streams appear. Fragments are joined as-is, so text
// painted one glyph per operator still reads as whole words.
func Extract(data []byte) string {
	var out strings.Builder
	for _, block := range streamBlocks(data) {
		for _, fragment := range blockText(block) {
			out.WriteString(latin1(fragment))
		}
	}
	return strings.Join(strings.Fields(out.String()), " ")
}

// streamBlocks returns the raw bodies between stream and endstream keywords.
func streamBlocks(data []byte) [][]byte {
	var blocks [][]byte
	pos := 0
	for pos < len(data) {
		idx := bytes.Index(data[pos:], streamKeyword)
		if idx < 0 {
			break
		}
		kw := pos + idx
		// "endstream" also contains "stream"
		if kw >= 3 && bytes.Equal(data[kw-3:kw], []byte("end")) {
			pos = kw + len(streamKeyword)
			continue
		}
		start := skipEOL(data, kw+len(streamKeyword))
		end := bytes.Index(data[start:], endstreamKeyword)
		if end < 0 {
			break
		}
		blocks = append(blocks, data[start:start+end])
		pos = start + end + len(endstreamKeyword)
	}
	return blocks
}

func skipEOL(data []byte, i int) int {
	if i < len(data) && data[i] == '\r' {
		i++
	}
	if i < len(data) && data[i] == '\n' {
		i++
	}
	return i
}

// blockText isolates one block so a malformed stream cannot affect others.
func blockText(block []byte) (fragments []string) {
	defer func() {
		if recover() != nil {
			fragments = nil
		}
	}()
	return textOperands(inflate(block))
}

// inflate tries FlateDecode and falls back to the raw bytes.
func inflate(block []byte) []byte {
	zr, err := zlib.NewReader(bytes.NewReader(block))
	if err != nil {
		return block
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil && len(out) == 0 {
		return block
	}
	return out
}

const (
	operandNone = iota
	operandLiteral
	operandArray
)

// textOperands scans a content stream and returns the string operands of Tj
// and TJ in encounter order. TJ array elements are joined without separator
// and kerning numbers are dropped.
func textOperands(content []byte) []string {
	var (
		fragments []string
		lastKind  = operandNone
		lastText  string
	)
	i := 0
	for i < len(content) {
		c := content[i]
		switch {
		case isWhitespace(c):
			i++
		case c == '(':
			var s []byte
			s, i = readLiteral(content, i+1)
			lastKind, lastText = operandLiteral, string(s)
		case c == '[':
			var s string
			s, i = readArray(content, i+1)
			lastKind, lastText = operandArray, s
		case c == '%':
			for i < len(content) && content[i] != '\n' && content[i] != '\r' {
				i++
			}
		case c == '<':
			if i+1 < len(content) && content[i+1] == '<' {
				i += 2
			} else {
				i = skipPast(content, i+1, '>')
			}
			lastKind = operandNone
		case isDelimiter(c):
			i++
			lastKind = operandNone
		default:
			start := i
			for i < len(content) && !isWhitespace(content[i]) && !isDelimiter(content[i]) {
				i++
			}
			switch string(content[start:i]) {
			case "Tj":
				if lastKind == operandLiteral {
					fragments = append(fragments, lastText)
				}
			case "TJ":
				if lastKind == operandArray {
					fragments = append(fragments, lastText)
				}
			}
			lastKind = operandNone
		}
	}
	return fragments
}

// readArray reads a TJ array body starting after '[' and returns the joined
// string elements and the index after the closing ']'.
func readArray(content []byte, i int) (string, int) {
	var b strings.Builder
	for i < len(content) {
		switch content[i] {
		case ']':
			return b.String(), i + 1
		case '(':
			var s []byte
			s, i = readLiteral(content, i+1)
			b.Write(s)
		default:
			i++
		}
	}
	return b.String(), i
}

// readLiteral reads a literal string body starting after '(' and returns the
// unescaped bytes and the index after the matching ')'. Balanced nested
// parentheses are part of the string.
func readLiteral(content []byte, i int) ([]byte, int) {
	var out []byte
	depth := 1
	for i < len(content) {
		c := content[i]
		switch c {
		case '\\':
			i++
			if i >= len(content) {
				return out, i
			}
			var b []byte
			b, i = unescape(content, i)
			out = append(out, b...)
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return out, i + 1
			}
		}
		out = append(out, c)
		i++
	}
	return out, i
}

// unescape decodes the escape sequence whose first byte after the backslash
// is at content[i].
func unescape(content []byte, i int) ([]byte, int) {
	c := content[i]
	switch {
	case isOctal(c):
		v := 0
		n := 0
		for n < 3 && i < len(content) && isOctal(content[i]) {
			v = v*8 + int(content[i]-'0')
			i++
			n++
		}
		return []byte{byte(v)}, i
	case c == 'n':
		return []byte{'\n'}, i + 1
	case c == 'r':
		return []byte{'\r'}, i + 1
	case c == 't':
		return []byte{'\t'}, i + 1
	case c == 'b':
		return []byte{'\b'}, i + 1
	case c == 'f':
		return []byte{'\f'}, i + 1
	case c == '\r':
		// line continuation
		i++
		if i < len(content) && content[i] == '\n' {
			i++
		}
		return nil, i
	case c == '\n':
		return nil, i + 1
	default:
		return []byte{c}, i + 1
	}
}

func skipPast(content []byte, i int, delim byte) int {
	for i < len(content) && content[i] != delim {
		i++
	}
	if i < len(content) {
		i++
	}
	return i
}

// latin1 maps each byte to the code point of the same value.
func latin1(s string) string {
	runes := make([]rune, len(s))
	for i := 0; i < len(s); i++ {
		runes[i] = rune(s[i])
	}
	return string(runes)
}

func isOctal(c byte) bool {
	return c >= '0' && c <= '7'
}

func isWhitespace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}
