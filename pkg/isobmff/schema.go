package isobmff

import (
	"encoding/binary"
	"fmt"
	"math"
)

// BoxPayload decodes and encodes the payload of one box type, header
// excluded.
type BoxPayload interface {
	Decode(data []byte) error
	Encode(w *bwriter) error
}

// Box is one node of a structured box tree. Exactly one of Children, Payload
// and Raw is meaningful: Children for containers the schema descends into,
// Payload for leaf types the schema can decode, Raw for everything else.
type Box struct {
	Type     FourCC
	Children []*Box
	Payload  BoxPayload
	Raw      []byte
}

// Find returns the first descendant at the given type path, or nil.
func (b *Box) Find(path ...FourCC) *Box {
	cur := b
	for _, t := range path {
		var next *Box
		for _, c := range cur.Children {
			if c.Type == t {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

// FindAll returns every direct child of the given type.
func (b *Box) FindAll(t FourCC) []*Box {
	var out []*Box
	for _, c := range b.Children {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

// SchemaEntry says how to decode one box type: Children descends into it as
// a container, New decodes it as a typed leaf. Types with no entry are kept
// as raw payload bytes.
type SchemaEntry struct {
	Children Schema
	New      func() BoxPayload
}

// Schema maps box types to their decode rules at one nesting level.
type Schema map[FourCC]*SchemaEntry

// StblSchema decodes the sample table boxes.
var StblSchema = Schema{
	TypeSTSD: {New: func() BoxPayload { return new(StsdBox) }},
	TypeSTTS: {New: func() BoxPayload { return new(SttsBox) }},
	TypeCTTS: {New: func() BoxPayload { return new(CttsBox) }},
	TypeSTSC: {New: func() BoxPayload { return new(StscBox) }},
	TypeSTSZ: {New: func() BoxPayload { return new(StszBox) }},
	TypeSTCO: {New: func() BoxPayload { return new(StcoBox) }},
	TypeCO64: {New: func() BoxPayload { return new(Co64Box) }},
	TypeSTSS: {New: func() BoxPayload { return new(StssBox) }},
}

func trakSchema(stbl *SchemaEntry) Schema {
	return Schema{
		TypeTKHD: {New: func() BoxPayload { return new(TkhdBox) }},
		TypeEDTS: {Children: Schema{
			TypeELST: {New: func() BoxPayload { return new(ElstBox) }},
		}},
		TypeMDIA: {Children: Schema{
			TypeMDHD: {New: func() BoxPayload { return new(MdhdBox) }},
			TypeHDLR: {New: func() BoxPayload { return new(HdlrBox) }},
			TypeMINF: {Children: Schema{
				TypeDINF: {Children: Schema{
					TypeDREF: {New: func() BoxPayload { return new(DrefBox) }},
				}},
				TypeSTBL: stbl,
			}},
		}},
	}
}

// MoovSchema decodes a movie box down to its sample tables.
var MoovSchema = Schema{
	TypeMVHD: {New: func() BoxPayload { return new(MvhdBox) }},
	TypeTRAK: {Children: trakSchema(&SchemaEntry{Children: StblSchema})},
	TypeUDTA: {Children: Schema{}},
}

// MoovWithoutStblSchema decodes a movie box but keeps each sample table as
// raw bytes. Used when sample tables are rebuilt wholesale, so their
// original contents never need interpreting.
var MoovWithoutStblSchema = Schema{
	TypeMVHD: {New: func() BoxPayload { return new(MvhdBox) }},
	TypeTRAK: {Children: trakSchema(nil)},
	TypeUDTA: {Children: Schema{}},
}

// DecodeBoxList parses a concatenation of boxes. 64-bit largesize headers
// are accepted; a 32-bit size of zero is not legal inside a payload and
// fails with a RangeError.
func DecodeBoxList(data []byte, schema Schema) ([]*Box, error) {
	var boxes []*Box
	pos := int64(0)
	total := int64(len(data))
	for pos < total {
		if pos+8 > total {
			return nil, &RangeError{Requested: 8, Remaining: total - pos}
		}
		size32 := binary.BigEndian.Uint32(data[pos:])
		var boxType FourCC
		copy(boxType[:], data[pos+4:])
		headerSize := int64(8)
		boxSize := int64(size32)
		if size32 == 1 {
			if pos+16 > total {
				return nil, &RangeError{Requested: 16, Remaining: total - pos}
			}
			boxSize = int64(binary.BigEndian.Uint64(data[pos+8:]))
			headerSize = 16
		}
		if boxSize < headerSize {
			return nil, &RangeError{Requested: headerSize, Remaining: boxSize}
		}
		if pos+boxSize > total {
			return nil, &RangeError{Requested: boxSize, Remaining: total - pos}
		}
		payload := data[pos+headerSize : pos+boxSize]

		b := &Box{Type: boxType}
		entry := schema[boxType]
		switch {
		case entry != nil && entry.Children != nil:
			children, err := DecodeBoxList(payload, entry.Children)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", boxType, err)
			}
			b.Children = children
		case entry != nil && entry.New != nil:
			b.Payload = entry.New()
			if err := b.Payload.Decode(payload); err != nil {
				return nil, fmt.Errorf("decode %s: %w", boxType, err)
			}
		default:
			b.Raw = append([]byte(nil), payload...)
		}
		boxes = append(boxes, b)
		pos += boxSize
	}
	return boxes, nil
}

// EncodeBoxList serializes a box tree with 32-bit headers. Any single box
// larger than 4 GiB fails the encode; only mdat, written separately by the
// builder, may need the 64-bit form.
func EncodeBoxList(boxes []*Box) ([]byte, error) {
	var w bwriter
	for _, b := range boxes {
		if err := encodeBox(b, &w); err != nil {
			return nil, err
		}
	}
	return w.bytes(), nil
}

func encodeBox(b *Box, w *bwriter) error {
	var (
		payload []byte
		err     error
	)
	switch {
	case b.Payload != nil:
		var pw bwriter
		if err = b.Payload.Encode(&pw); err != nil {
			return fmt.Errorf("encode %s: %w", b.Type, err)
		}
		payload = pw.bytes()
	case b.Children != nil:
		if payload, err = EncodeBoxList(b.Children); err != nil {
			return fmt.Errorf("encode %s: %w", b.Type, err)
		}
	default:
		payload = b.Raw
	}
	size := int64(len(payload)) + 8
	if size > math.MaxUint32 {
		return fmt.Errorf("box %s size %d overflows 32-bit header", b.Type, size)
	}
	w.u32(uint32(size))
	w.fourcc(b.Type)
	w.put(payload)
	return nil
}

// EncodeBox serializes a single box with its header.
func EncodeBox(b *Box) ([]byte, error) {
	var w bwriter
	if err := encodeBox(b, &w); err != nil {
		return nil, err
	}
	return w.bytes(), nil
}
