package decoder

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"

	"github.com/Bendaman/EvtFilter/internal/model"
)

// ErrNoRows signals that the decoder output holds no <ROW> elements.
// This is an expected outcome for logs with zero matching records, not
// a failure.
var ErrNoRows = errors.New("decoder output contains no rows")

var encAttr = regexp.MustCompile(`(?i)encoding="([^"]+)"`)

// ReadRows loads the decoder's XML output into a row-oriented document.
//
// The tool is known to emit inconsistent or mis-declared encodings, so
// reading is a two-stage policy: a direct parse first, and on failure a
// manual decode (BOM, then the declared encoding attribute, then UTF-8)
// followed by a second parse of the decoded text. If both stages find no
// rows the result is ErrNoRows — a hard failure here would silently drop
// legitimate data.
func ReadRows(path string) (*model.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if doc, err := parseRows(xml.NewDecoder(bytes.NewReader(raw))); err == nil && len(doc.Rows) > 0 {
		return doc, nil
	}

	text, ok := decodeAs(raw, DetectEncoding(raw))
	if !ok {
		return nil, ErrNoRows
	}

	dec := xml.NewDecoder(strings.NewReader(text))
	// The text is already decoded; whatever the declaration still
	// claims, read it as-is.
	dec.CharsetReader = passthroughCharset

	doc, err := parseRows(dec)
	if err != nil || len(doc.Rows) == 0 {
		return nil, ErrNoRows
	}
	return doc, nil
}

func passthroughCharset(_ string, input io.Reader) (io.Reader, error) {
	return input, nil
}

// DetectEncoding guesses the codec of a decoder XML document by an
// ordered policy: a UTF-16 byte-order mark beats everything; otherwise
// an encoding attribute scraped from the first 200 bytes (any UTF-16 or
// UCS-2 alias maps to utf-16le, other names are used verbatim);
// otherwise UTF-8.
func DetectEncoding(raw []byte) string {
	if bytes.HasPrefix(raw, []byte{0xff, 0xfe}) {
		return "utf-16le"
	}
	if bytes.HasPrefix(raw, []byte{0xfe, 0xff}) {
		return "utf-16be"
	}

	head := raw
	if len(head) > 200 {
		head = head[:200]
	}
	if m := encAttr.FindSubmatch(head); m != nil {
		enc := strings.ToLower(string(m[1]))
		switch enc {
		case "iso-10646-ucs-2", "utf-16", "utf-16le", "utf-16be", "ucs-2", "unicode":
			return "utf-16le"
		}
		return enc
	}

	return "utf-8"
}

// decodeAs decodes raw with the named codec, substituting undecodable
// sequences rather than failing. Returns false only when the codec name
// itself is unusable.
func decodeAs(raw []byte, name string) (string, bool) {
	var text string
	switch name {
	case "utf-16le":
		s, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().String(string(raw))
		if err != nil {
			return "", false
		}
		text = s
	case "utf-16be":
		s, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder().String(string(raw))
		if err != nil {
			return "", false
		}
		text = s
	case "utf-8":
		text = string(raw)
	default:
		enc, err := ianaindex.IANA.Encoding(name)
		if err != nil || enc == nil {
			return "", false
		}
		s, err := enc.NewDecoder().String(string(raw))
		if err != nil {
			return "", false
		}
		text = s
	}
	return strings.TrimPrefix(text, "\ufeff"), true
}

// parseRows walks the token stream collecting one Record per <ROW>
// element. Each child element becomes a column; column order is
// first-seen across the whole document.
func parseRows(dec *xml.Decoder) (*model.Document, error) {
	doc := &model.Document{}
	seen := make(map[string]bool)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return doc, nil
		}
		if err != nil {
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "ROW" {
			continue
		}

		rec := model.Record{}
	row:
		for {
			tok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			switch el := tok.(type) {
			case xml.StartElement:
				val, err := elementText(dec)
				if err != nil {
					return nil, err
				}
				rec[el.Name.Local] = val
				if !seen[el.Name.Local] {
					seen[el.Name.Local] = true
					doc.Columns = append(doc.Columns, el.Name.Local)
				}
			case xml.EndElement:
				if el.Name.Local == "ROW" {
					break row
				}
			}
		}
		doc.Rows = append(doc.Rows, rec)
	}
}

// elementText reads the character data of the current element up to its
// end tag, skipping any nested markup.
func elementText(dec *xml.Decoder) (string, error) {
	var sb strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.StartElement:
			if err := dec.Skip(); err != nil {
				return "", err
			}
		case xml.EndElement:
			return sb.String(), nil
		}
	}
}
