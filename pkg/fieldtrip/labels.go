package fieldtrip

import (
	"bytes"
	"fmt"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// asciiFolder decomposes accented characters and drops whatever is not ASCII,
// so "Fp1 µV" becomes "Fp1 V" and "Cé" becomes "Ce".
func asciiFolder() transform.Transformer {
	return transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
}

// PackLabels encodes labels as the channel names chunk: each label folded to
// ASCII and terminated by a null byte. It fails unless there is exactly one
// label per channel: surplus labels are an error, never silently truncated
// to the channel count. UnpackLabels stays lenient about surplus names it
// receives.
func PackLabels(labels []string, nChannels uint32) ([]byte, error) {
	if uint64(len(labels)) != uint64(nChannels) {
		return nil, fmt.Errorf("%w: %d labels for %d channels", ErrLabelCount, len(labels), nChannels)
	}

	var buf bytes.Buffer
	for _, label := range labels {
		folded, _, err := transform.String(asciiFolder(), label)
		if err != nil {
			return nil, fmt.Errorf("fold label %q: %w", label, err)
		}
		buf.WriteString(folded)
		buf.WriteByte(0)
	}
	return buf.Bytes(), nil
}

// UnpackLabels splits a channel names chunk on null bytes. Fewer than
// nChannels names yields nil; surplus names are ignored.
func UnpackLabels(chunk []byte, nChannels uint32) []string {
	if nChannels == 0 {
		return nil
	}
	parts := bytes.Split(chunk, []byte{0})
	if uint64(len(parts)) < uint64(nChannels) {
		return nil
	}
	labels := make([]string, nChannels)
	for i := range labels {
		labels[i] = string(parts[i])
	}
	return labels
}
