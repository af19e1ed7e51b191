// Package source turns exam text files into the raw lines fed to the
// extraction pipeline.
package source

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	EncodingAuto    = "auto"
	EncodingUTF16LE = "utf-16le"
	EncodingUTF16BE = "utf-16be"
	EncodingUTF8    = "utf-8"
)

// Discover lists the .txt files directly under dir in lexical order.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// ReadFile decodes one source file into lines.
func ReadFile(path, enc string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines, err := Decode(b, enc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lines, nil
}

// Decode converts b to lines. Line terminators (LF or CRLF) are removed and
// a leading byte-order mark is dropped; nothing else in the text changes.
func Decode(b []byte, enc string) ([]string, error) {
	e, err := pick(b, enc)
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(transform.NewReader(bytes.NewReader(b), e.NewDecoder()))
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	lines := []string{}
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode %s: %w", enc, err)
	}
	return lines, nil
}

func pick(b []byte, enc string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(enc)) {
	case EncodingUTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	case EncodingUTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM), nil
	case EncodingUTF8:
		return unicode.UTF8BOM, nil
	case "", EncodingAuto:
		return sniff(b), nil
	}
	return nil, fmt.Errorf("unsupported source encoding %q", enc)
}

// sniff picks an encoding from a BOM, then from the position of NUL bytes in
// the first few hundred bytes. Input that is not valid UTF-8 there is read
// as UTF-16LE, the byte order the exam files are written in.
func sniff(b []byte) encoding.Encoding {
	switch {
	case bytes.HasPrefix(b, []byte{0xFF, 0xFE}):
		return unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)
	case bytes.HasPrefix(b, []byte{0xFE, 0xFF}):
		return unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)
	case bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}):
		return unicode.UTF8BOM
	}
	head := b
	if len(head) > sniffLen {
		head = trimPartialRune(head[:sniffLen])
	}
	var even, odd int
	for i, c := range head {
		if c != 0 {
			continue
		}
		if i%2 == 0 {
			even++
		} else {
			odd++
		}
	}
	switch {
	case odd > len(head)/8 && odd > even:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case even > len(head)/8 && even > odd:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	case !utf8.Valid(head):
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	}
	return unicode.UTF8
}

const sniffLen = 512

// trimPartialRune drops a UTF-8 sequence cut off at the end of b.
func trimPartialRune(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return b[:i]
			}
			break
		}
	}
	return b
}
