// Package codec frames collection snapshots: a fixed header followed by an
// optionally compressed payload.
//
//	magic "HNDB" | version u16 | compression u8 | crc32 u32 | raw length u32 | body
//
// All integers are little endian. Raw length is the payload size before
// compression. The checksum is the IEEE CRC-32 of version, compression and raw
// length followed by the body as stored, so a damaged header field is caught
// before any buffer is sized from it.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Version is the frame version written by Encode.
const Version uint16 = 1

// HeaderSize is the number of bytes preceding the body.
const HeaderSize = 15

var magic = [4]byte{'H', 'N', 'D', 'B'}

var (
	ErrBadMagic           = errors.New("not a snapshot frame")
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
	ErrTruncated          = errors.New("truncated snapshot frame")
	ErrChecksum           = errors.New("snapshot checksum mismatch")
	ErrUnknownCompression = errors.New("unknown compression")
	ErrLength             = errors.New("snapshot raw length out of range")
)

// lz4MaxRatio bounds the expansion of an LZ4 block: a match adds at most 255
// bytes of output per input byte.
const lz4MaxRatio = 255

// zstdMaxMemory caps what a pooled decoder may produce for one frame.
const zstdMaxMemory = math.MaxUint32

// Compression identifies the algorithm applied to the body.
type Compression uint8

const (
	// CompressionNone stores the payload as is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression.
	CompressionLZ4 Compression = 1
	// CompressionZstd uses Zstandard.
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// ParseCompression maps "none", "lz4" or "zstd" to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(name) {
	case "none", "":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCompression, name)
}

// ZSTD encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return enc, nil
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderMaxMemory(zstdMaxMemory))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return dec, nil
}

// checksum covers the header fields after the magic, except the checksum
// itself, and then the body.
func checksum(frame []byte) uint32 {
	h := crc32.NewIEEE()
	h.Write(frame[4:7])
	h.Write(frame[11:HeaderSize])
	h.Write(frame[HeaderSize:])
	return h.Sum32()
}

// Encode frames payload, compressing it with c. When compression does not make
// the body smaller the payload is stored uncompressed and the header says so.
func Encode(payload []byte, c Compression) ([]byte, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, fmt.Errorf("snapshot payload too large: %d bytes", len(payload))
	}
	body, used, err := compress(payload, c)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, HeaderSize+len(body))
	copy(frame[0:4], magic[:])
	binary.LittleEndian.PutUint16(frame[4:], Version)
	frame[6] = byte(used)
	binary.LittleEndian.PutUint32(frame[11:], uint32(len(payload)))
	copy(frame[HeaderSize:], body)
	binary.LittleEndian.PutUint32(frame[7:], checksum(frame))
	return frame, nil
}

func compress(payload []byte, c Compression) ([]byte, Compression, error) {
	var out []byte
	switch c {
	case CompressionNone:
		return payload, CompressionNone, nil
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(payload)))
		n, err := lz4.CompressBlock(payload, buf, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("lz4 compression failed: %w", err)
		}
		out = buf[:n]
	case CompressionZstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, 0, err
		}
		out = enc.EncodeAll(payload, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, 0, fmt.Errorf("%w: %d", ErrUnknownCompression, uint8(c))
	}
	// Incompressible input is stored raw.
	if len(out) == 0 || len(out) >= len(payload) {
		return payload, CompressionNone, nil
	}
	return out, c, nil
}

// Header describes a frame without decoding its body.
type Header struct {
	Version     uint16
	Compression Compression
	Checksum    uint32
	RawLength   uint32
}

// ReadHeader parses and checks the fixed header of frame.
func ReadHeader(frame []byte) (Header, error) {
	if len(frame) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrTruncated, len(frame))
	}
	if [4]byte(frame[0:4]) != magic {
		return Header{}, ErrBadMagic
	}
	h := Header{
		Version:     binary.LittleEndian.Uint16(frame[4:]),
		Compression: Compression(frame[6]),
		Checksum:    binary.LittleEndian.Uint32(frame[7:]),
		RawLength:   binary.LittleEndian.Uint32(frame[11:]),
	}
	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if h.Compression > CompressionZstd {
		return Header{}, fmt.Errorf("%w: %d", ErrUnknownCompression, uint8(h.Compression))
	}
	return h, nil
}

// Decode verifies frame and returns the original payload.
func Decode(frame []byte) ([]byte, error) {
	h, err := ReadHeader(frame)
	if err != nil {
		return nil, err
	}
	body := frame[HeaderSize:]
	if checksum(frame) != h.Checksum {
		return nil, ErrChecksum
	}

	switch h.Compression {
	case CompressionLZ4:
		if uint64(h.RawLength) > lz4MaxRatio*uint64(len(body)) {
			return nil, fmt.Errorf("%w: %d bytes from a %d byte lz4 body", ErrLength, h.RawLength, len(body))
		}
		out := make([]byte, h.RawLength)
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompression failed: %w", err)
		}
		if uint32(n) != h.RawLength {
			return nil, fmt.Errorf("%w: decompressed %d bytes, want %d", ErrTruncated, n, h.RawLength)
		}
		return out, nil
	case CompressionZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)
		// The buffer grows with the decoded data; only a small guess is trusted up front.
		hint := min(uint64(h.RawLength), 4*uint64(len(body)))
		out, err := dec.DecodeAll(body, make([]byte, 0, hint))
		if err != nil {
			return nil, fmt.Errorf("zstd decompression failed: %w", err)
		}
		if uint64(len(out)) != uint64(h.RawLength) {
			return nil, fmt.Errorf("%w: decompressed %d bytes, want %d", ErrTruncated, len(out), h.RawLength)
		}
		return out, nil
	default:
		if uint32(len(body)) != h.RawLength {
			return nil, fmt.Errorf("%w: body has %d bytes, want %d", ErrTruncated, len(body), h.RawLength)
		}
		return body, nil
	}
}
