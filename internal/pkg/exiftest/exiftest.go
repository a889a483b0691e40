// Package exiftest synthesizes small JPEG files carrying EXIF blocks so the
// metadata pipeline can be tested without binary fixtures.
package exiftest

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// TIFF field types.
const (
	TypeByte     uint16 = 1
	TypeASCII    uint16 = 2
	TypeShort    uint16 = 3
	TypeLong     uint16 = 4
	TypeRational uint16 = 5
)

// Tag ids used by the helpers below.
const (
	TagMake            uint16 = 0x010F
	TagGPSPointer      uint16 = 0x8825
	TagGPSVersionID    uint16 = 0x00
	TagGPSLatitudeRef  uint16 = 0x01
	TagGPSLatitude     uint16 = 0x02
	TagGPSLongitudeRef uint16 = 0x03
	TagGPSLongitude    uint16 = 0x04
	TagGPSDateStamp    uint16 = 0x1D
)

var be = binary.BigEndian

// Entry is one IFD entry. Data holds the value bytes, big-endian; TIFF
// swaps them when it lays out a little-endian file.
type Entry struct {
	ID    uint16
	Type  uint16
	Count uint32
	Data  []byte
}

// ASCII returns a NUL-terminated string entry.
func ASCII(id uint16, s string) Entry {
	data := append([]byte(s), 0)
	return Entry{ID: id, Type: TypeASCII, Count: uint32(len(data)), Data: data}
}

// Bytes returns a BYTE entry.
func Bytes(id uint16, b ...byte) Entry {
	return Entry{ID: id, Type: TypeByte, Count: uint32(len(b)), Data: b}
}

// Rationals returns a RATIONAL entry; each pair is numerator, denominator.
func Rationals(id uint16, pairs ...[2]uint32) Entry {
	data := make([]byte, 0, 8*len(pairs))
	for _, p := range pairs {
		data = be.AppendUint32(data, p[0])
		data = be.AppendUint32(data, p[1])
	}
	return Entry{ID: id, Type: TypeRational, Count: uint32(len(pairs)), Data: data}
}

// DMS is a degrees, minutes, seconds triple with seconds in hundredths.
func DMS(id uint16, deg, min, centiSec uint32) Entry {
	return Rationals(id, [2]uint32{deg, 1}, [2]uint32{min, 1}, [2]uint32{centiSec, 100})
}

// FullGPS is a GPS block at 37.422 N, 122.084 W taken on 2023:05:14.
func FullGPS() []Entry {
	return []Entry{
		Bytes(TagGPSVersionID, 2, 3, 0, 0),
		ASCII(TagGPSLatitudeRef, "N"),
		DMS(TagGPSLatitude, 37, 25, 1920),
		ASCII(TagGPSLongitudeRef, "W"),
		DMS(TagGPSLongitude, 122, 5, 240),
		ASCII(TagGPSDateStamp, "2023:05:14"),
	}
}

// TIFF lays out a TIFF in the given byte order with IFD0 holding ifd0. When
// gps is non-nil a GPS pointer is appended to IFD0 and gps becomes its
// directory.
func TIFF(order binary.AppendByteOrder, ifd0, gps []Entry) []byte {
	entries := append([]Entry(nil), ifd0...)
	if gps != nil {
		entries = append(entries, Entry{ID: TagGPSPointer, Type: TypeLong, Count: 1, Data: make([]byte, 4)})
	}

	const first = 8
	dir := encodeIFD(order, entries, first)
	if gps != nil {
		gpsOffset := uint32(first + len(dir))
		be.PutUint32(entries[len(entries)-1].Data, gpsOffset)
		dir = encodeIFD(order, entries, first)
		dir = append(dir, encodeIFD(order, gps, gpsOffset)...)
	}

	out := []byte{'M', 'M'}
	if order == binary.LittleEndian {
		out = []byte{'I', 'I'}
	}
	out = order.AppendUint16(out, 0x2A)
	out = order.AppendUint32(out, first)
	return append(out, dir...)
}

func encodeIFD(order binary.AppendByteOrder, entries []Entry, offset uint32) []byte {
	dataOffset := offset + 2 + 12*uint32(len(entries)) + 4
	var head, data bytes.Buffer

	head.Write(order.AppendUint16(nil, uint16(len(entries))))
	for _, e := range entries {
		value := reorder(order, e)
		head.Write(order.AppendUint16(nil, e.ID))
		head.Write(order.AppendUint16(nil, e.Type))
		head.Write(order.AppendUint32(nil, e.Count))
		if len(value) <= 4 {
			v := make([]byte, 4)
			copy(v, value)
			head.Write(v)
			continue
		}
		head.Write(order.AppendUint32(nil, dataOffset+uint32(data.Len())))
		data.Write(value)
		if data.Len()%2 == 1 {
			data.WriteByte(0)
		}
	}
	head.Write(order.AppendUint32(nil, 0))
	return append(head.Bytes(), data.Bytes()...)
}

// reorder converts the big-endian value bytes of e to order.
func reorder(order binary.AppendByteOrder, e Entry) []byte {
	var width int
	switch e.Type {
	case TypeShort:
		width = 2
	case TypeLong, TypeRational:
		width = 4
	}
	if width == 0 || order == be {
		return e.Data
	}
	out := make([]byte, 0, len(e.Data))
	for i := 0; i+width <= len(e.Data); i += width {
		if width == 2 {
			out = order.AppendUint16(out, be.Uint16(e.Data[i:]))
		} else {
			out = order.AppendUint32(out, be.Uint32(e.Data[i:]))
		}
	}
	return out
}

// JPEG wraps a TIFF payload in an APP1 segment between SOI and EOI markers.
func JPEG(tiff []byte) []byte {
	var b bytes.Buffer
	b.Write([]byte{0xFF, 0xD8, 0xFF, 0xE1})
	b.Write(be.AppendUint16(nil, uint16(2+6+len(tiff))))
	b.WriteString("Exif\x00\x00")
	b.Write(tiff)
	b.Write([]byte{0xFF, 0xD9})
	return b.Bytes()
}

// PlainJPEG is a JPEG with no APP1 segment.
func PlainJPEG() []byte {
	return []byte{0xFF, 0xD8, 0xFF, 0xDB, 0x00, 0x03, 0x00, 0xFF, 0xD9}
}

// WriteFile writes data under t.TempDir and returns the path.
func WriteFile(t testing.TB, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WithGPS writes a big-endian JPEG with a Make tag and the given GPS block.
func WithGPS(t testing.TB, gps []Entry) string {
	t.Helper()
	return WithGPSOrder(t, be, gps)
}

// WithGPSOrder is WithGPS with the TIFF laid out in order.
func WithGPSOrder(t testing.TB, order binary.AppendByteOrder, gps []Entry) string {
	t.Helper()
	return WriteFile(t, "photo.jpg", JPEG(TIFF(order, []Entry{ASCII(TagMake, "civiclens")}, gps)))
}
