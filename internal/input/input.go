// Package input loads program and dump files: compressed inputs are
// inflated and text is normalised to UTF-8 before parsing.
package input

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"unicode/utf8"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/joshuapare/phvkit/internal/mmfile"
)

// MaxDecompressedSize bounds inflated inputs.
const MaxDecompressedSize = 256 * 1024 * 1024

// ErrTooLarge indicates an input that inflates past MaxDecompressedSize.
var ErrTooLarge = errors.New("input: decompressed size exceeds limit")

// Compression identifies the container format of an input.
type Compression int

const (
	None Compression = iota
	Zstd
	LZ4
)

func (c Compression) String() string {
	switch c {
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return "none"
	}
}

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Detect sniffs the compression format from the leading magic bytes.
func Detect(data []byte) Compression {
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		return Zstd
	case bytes.HasPrefix(data, lz4Magic):
		return LZ4
	default:
		return None
	}
}

var zstdDecoderPool = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(MaxDecompressedSize),
		)
		if err != nil {
			panic(fmt.Sprintf("input: zstd decoder: %v", err))
		}
		return dec
	},
}

// Decompress inflates zstd and lz4 frames and returns other data unchanged.
func Decompress(data []byte) ([]byte, Compression, error) {
	c := Detect(data)
	switch c {
	case Zstd:
		dec := zstdDecoderPool.Get().(*zstd.Decoder)
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, c, fmt.Errorf("input: zstd: %w", err)
		}
		return out, c, nil
	case LZ4:
		r := io.LimitReader(lz4.NewReader(bytes.NewReader(data)), MaxDecompressedSize+1)
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, c, fmt.Errorf("input: lz4: %w", err)
		}
		if len(out) > MaxDecompressedSize {
			return nil, c, ErrTooLarge
		}
		return out, c, nil
	default:
		return data, None, nil
	}
}

func hasBOM(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0xef, 0xbb, 0xbf}) ||
		bytes.HasPrefix(data, []byte{0xff, 0xfe}) ||
		bytes.HasPrefix(data, []byte{0xfe, 0xff})
}

// Normalize returns data as UTF-8 without a byte order mark. Inputs with
// a UTF-8 or UTF-16 BOM are decoded accordingly; other inputs that are not
// valid UTF-8 are taken to be Windows-1252.
func Normalize(data []byte) ([]byte, error) {
	if hasBOM(data) {
		out, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), data)
		if err != nil {
			return nil, fmt.Errorf("input: decode: %w", err)
		}
		return out, nil
	}
	if utf8.Valid(data) {
		return data, nil
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("input: decode: %w", err)
	}
	return out, nil
}

// Bytes decompresses and normalises an in-memory input.
func Bytes(data []byte) ([]byte, error) {
	raw, _, err := Decompress(data)
	if err != nil {
		return nil, err
	}
	return Normalize(raw)
}

// ReadAll loads r fully and prepares it like Bytes.
func ReadAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Bytes(data)
}

// ReadFile maps path and prepares its contents like Bytes.
func ReadFile(path string) ([]byte, error) {
	m, err := mmfile.Map(path)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	raw, c, err := Decompress(m.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if c == None {
		// uncompressed data is still backed by the mapping
		raw = bytes.Clone(raw)
	}
	return Normalize(raw)
}
