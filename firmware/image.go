package firmware

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/marcinbor85/gohex"
)

// Erased flash reads as 0xFF, so gaps between HEX segments are filled with it.
const gapFill = 0xFF

// Image is a flat flash image.
type Image struct {
	// Base is the lowest address found in a HEX file, zero for raw binaries.
	Base uint32
	Data []byte
}

// LoadImage reads a raw binary or, for .hex/.ihex files, an Intel HEX image.
func LoadImage(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, err
	}
	return DecodeImage(path, data)
}

// DecodeImage picks the image format from the extension of name.
func DecodeImage(name string, data []byte) (Image, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".hex", ".ihex":
		return ParseIntelHex(data)
	default:
		return Image{Data: data}, nil
	}
}

// ParseIntelHex flattens the segments of an Intel HEX file into one image.
func ParseIntelHex(data []byte) (Image, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(bytes.NewReader(data)); err != nil {
		return Image{}, fmt.Errorf("parse intel hex: %w", err)
	}
	segments := mem.GetDataSegments()
	if len(segments) == 0 {
		return Image{}, nil
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].Address < segments[j].Address })

	base := segments[0].Address
	end := base
	for _, seg := range segments {
		end = max(end, seg.Address+uint32(len(seg.Data)))
	}
	out := bytes.Repeat([]byte{gapFill}, int(end-base))
	for _, seg := range segments {
		copy(out[seg.Address-base:], seg.Data)
	}
	return Image{Base: base, Data: out}, nil
}
