package encoding

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// decoders maps normalized labels to their x/text encodings. utf-8 is
// handled inline since Go strings are UTF-8 natively.
var decoders = map[string]encoding.Encoding{
	"gbk":     simplifiedchinese.GBK,
	"gb18030": simplifiedchinese.GB18030,
	"big5":    traditionalchinese.Big5,
	"latin-1": charmap.ISO8859_1,
}

// canDecode reports whether content decodes under label without any invalid
// byte sequence.
func canDecode(content []byte, label string) bool {
	_, ok := decodeStrict(content, label)
	return ok
}

// decodeStrict decodes content under label, rejecting input containing byte
// sequences invalid for that encoding. The x/text decoders substitute the
// replacement rune rather than erroring, so strictness for non-UTF-8 labels
// is enforced by checking the output for it.
func decodeStrict(content []byte, label string) (string, bool) {
	label = NormalizeLabel(label)

	if label == "utf-8" {
		if utf8.Valid(content) {
			return string(content), true
		}
		return "", false
	}

	enc, ok := decoders[label]
	if !ok {
		return "", false
	}

	decoded, err := enc.NewDecoder().Bytes(content)
	if err != nil {
		return "", false
	}
	for _, r := range string(decoded) {
		if r == utf8.RuneError {
			return "", false
		}
	}
	return string(decoded), true
}

// Decode converts content to a string using label, never failing. The
// fallback chain runs: strict decode under label, then utf-8, gbk, and
// latin-1 strictly (skipping the label already tried), then lossy utf-8
// conversion, then latin-1, which accepts any byte sequence.
func (r *Resolver) Decode(content []byte, label string) string {
	if len(content) == 0 {
		return ""
	}

	label = NormalizeLabel(label)
	if text, ok := decodeStrict(content, label); ok {
		return text
	}

	for _, fallback := range []string{"utf-8", "gbk", "latin-1"} {
		if fallback == label {
			continue
		}
		if text, ok := decodeStrict(content, fallback); ok {
			r.logger.Debug().
				Str("requested", label).
				Str("used", fallback).
				Msg("Decode fell back to alternate encoding")
			return text
		}
	}

	// Lossy conversion: invalid sequences become replacement runes.
	return strings.ToValidUTF8(string(content), string(utf8.RuneError))
}
