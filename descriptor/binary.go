package descriptor

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hupe1980/respack/internal/conv"
	"github.com/hupe1980/respack/internal/hash"
	"github.com/hupe1980/respack/model"
)

const (
	binaryMagic   = 0x43534452 // "RDSC"
	binaryVersion = 1
	headerSize    = 16
)

// WriteBinary writes the descriptor in binary format.
// Format:
// Magic (4 bytes)
// Version (4 bytes)
// Checksum (4 bytes) - CRC32C of payload
// PayloadLength (4 bytes)
// Payload:
//
//	DataPath (string)
//	Kind (4 bytes)
//	Compression (4 bytes)
//	DataSize (8 bytes)
//	Hash (8 bytes)
//	UncompressedSize (8 bytes)
//	BlockSize (4 bytes)
//	BlockCount (4 bytes)
//	ResourceCount (4 bytes) - declared
//	NumEntries (4 bytes)
//	Entries...
//	  Key (string)
//	  Type (string)
//	  Platforms (4 bytes)
//	  Flags (string)
//	  Offset (8 bytes)
//	  Size (8 bytes)
//	  NumDeps (4 bytes)
//	  Deps (string)...
//
// Strings are a 2-byte length followed by the bytes.
func (d *Descriptor) WriteBinary(w io.Writer) error {
	pb := newPayloadBuffer(make([]byte, 0, 64+len(d.Resources)*96))

	pb.writeString(d.DataPath)
	pb.writeUint32(uint32(d.Kind))
	pb.writeUint32(uint32(d.Compression))
	pb.writeSize(d.DataSize)
	pb.writeUint64(d.Hash)
	pb.writeSize(d.UncompressedSize)
	pb.writeUint32(d.BlockSize)
	pb.writeUint32(d.BlockCount)
	pb.writeCount(d.ResourceCount)
	pb.writeCount(len(d.Resources))

	for _, e := range d.Resources {
		pb.writeString(e.Key)
		pb.writeString(e.Type)
		pb.writeUint32(uint32(e.Platforms))
		pb.writeString(e.Flags)
		pb.writeSize(e.Offset)
		pb.writeSize(e.Size)
		pb.writeCount(len(e.Dependencies))
		for _, dep := range e.Dependencies {
			pb.writeString(dep)
		}
	}

	if pb.err != nil {
		return pb.err
	}

	payload := pb.buf
	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], binaryMagic)
	binary.LittleEndian.PutUint32(header[4:8], binaryVersion)
	binary.LittleEndian.PutUint32(header[8:12], hash.CRC32C(payload))
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(payload)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (d *Descriptor) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.WriteBinary(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (d *Descriptor) UnmarshalBinary(data []byte) error {
	got, err := ReadBinary(bytes.NewReader(data))
	if err != nil {
		return err
	}
	*d = *got
	return nil
}

// ReadBinary reads a descriptor in binary format.
func ReadBinary(r io.Reader) (*Descriptor, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	if magic := binary.LittleEndian.Uint32(header[0:4]); magic != binaryMagic {
		return nil, fmt.Errorf("%w: %x", ErrInvalidMagic, magic)
	}
	if version := binary.LittleEndian.Uint32(header[4:8]); version != binaryVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	checksum := binary.LittleEndian.Uint32(header[8:12])
	length := binary.LittleEndian.Uint32(header[12:16])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	if hash.CRC32C(payload) != checksum {
		return nil, ErrChecksumMismatch
	}

	pb := newPayloadBuffer(payload)
	d := &Descriptor{}

	d.DataPath = pb.readString()
	d.Kind = model.Kind(pb.readUint32())
	d.Compression = model.Compression(pb.readUint32())
	d.DataSize = pb.readSize()
	d.Hash = pb.readUint64()
	d.UncompressedSize = pb.readSize()
	d.BlockSize = pb.readUint32()
	d.BlockCount = pb.readUint32()
	d.ResourceCount = int(pb.readUint32())

	n := pb.readUint32()
	if pb.err == nil && int(n) > len(payload) {
		// Every entry takes at least one byte; reject absurd counts early.
		return nil, io.ErrUnexpectedEOF
	}
	d.Resources = make([]Entry, 0, n)
	for i := uint32(0); i < n && pb.err == nil; i++ {
		var e Entry
		e.Key = pb.readString()
		e.Type = pb.readString()
		e.Platforms = model.Platform(pb.readUint32())
		e.Flags = pb.readString()
		e.Offset = pb.readSize()
		e.Size = pb.readSize()
		deps := pb.readUint32()
		if pb.err == nil && int(deps) > len(payload) {
			return nil, io.ErrUnexpectedEOF
		}
		for j := uint32(0); j < deps && pb.err == nil; j++ {
			e.Dependencies = append(e.Dependencies, pb.readString())
		}
		d.Resources = append(d.Resources, e)
	}

	if pb.err != nil {
		return nil, pb.err
	}
	return d, nil
}

type payloadBuffer struct {
	buf []byte
	pos int
	err error
}

func newPayloadBuffer(b []byte) *payloadBuffer {
	return &payloadBuffer{buf: b}
}

func (p *payloadBuffer) writeUint64(v uint64) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint64(p.buf, v)
}

func (p *payloadBuffer) writeUint32(v uint32) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
}

func (p *payloadBuffer) writeSize(v int64) {
	if p.err != nil {
		return
	}
	u, err := conv.Int64ToUint64(v)
	if err != nil {
		p.err = err
		return
	}
	p.writeUint64(u)
}

func (p *payloadBuffer) writeCount(v int) {
	if p.err != nil {
		return
	}
	u, err := conv.IntToUint32(v)
	if err != nil {
		p.err = err
		return
	}
	p.writeUint32(u)
}

func (p *payloadBuffer) writeString(s string) {
	if p.err != nil {
		return
	}
	if len(s) > 65535 {
		p.err = fmt.Errorf("string too long: %d", len(s))
		return
	}
	p.buf = binary.LittleEndian.AppendUint16(p.buf, uint16(len(s)))
	p.buf = append(p.buf, s...)
}

func (p *payloadBuffer) readUint64() uint64 {
	if p.err != nil {
		return 0
	}
	if p.pos+8 > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return 0
	}
	v := binary.LittleEndian.Uint64(p.buf[p.pos:])
	p.pos += 8
	return v
}

func (p *payloadBuffer) readSize() int64 {
	u := p.readUint64()
	if p.err != nil {
		return 0
	}
	v, err := conv.Uint64ToInt64(u)
	if err != nil {
		p.err = err
		return 0
	}
	return v
}

func (p *payloadBuffer) readUint32() uint32 {
	if p.err != nil {
		return 0
	}
	if p.pos+4 > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return 0
	}
	v := binary.LittleEndian.Uint32(p.buf[p.pos:])
	p.pos += 4
	return v
}

func (p *payloadBuffer) readString() string {
	if p.err != nil {
		return ""
	}
	if p.pos+2 > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return ""
	}
	l := int(binary.LittleEndian.Uint16(p.buf[p.pos:]))
	p.pos += 2

	if p.pos+l > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return ""
	}
	s := string(p.buf[p.pos : p.pos+l])
	p.pos += l
	return s
}
