package isobmff

// The fixed-width sample table boxes. Each is a FullBox holding a table of
// entries; the run-length ones (stts, ctts, stsc) are expanded per sample by
// the mp4table code.

// aligned(8) class TimeToSampleBox extends FullBox(’stts’, version = 0, 0) {
//   unsigned int(32) entry_count;
//   int i;
//   for (i=0; i < entry_count; i++) {
//     unsigned int(32) sample_count;
//     unsigned int(32) sample_delta;
//   }
// }
type SttsBox struct {
	FullBox
	Entries []SttsEntry
}

type SttsEntry struct {
	SampleCount uint32
	SampleDelta uint32
}

func (b *SttsBox) Decode(data []byte) error {
	r := &breader{data: data}
	b.decodeHeader(r)
	count := r.u32()
	if r.err != nil {
		return r.err
	}
	b.Entries = make([]SttsEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		e := SttsEntry{SampleCount: r.u32(), SampleDelta: r.u32()}
		if r.err != nil {
			return r.err
		}
		b.Entries = append(b.Entries, e)
	}
	return r.err
}

func (b *SttsBox) Encode(w *bwriter) error {
	b.encodeHeader(w)
	w.u32(uint32(len(b.Entries)))
	for _, e := range b.Entries {
		w.u32(e.SampleCount)
		w.u32(e.SampleDelta)
	}
	return nil
}

// aligned(8) class CompositionOffsetBox extends FullBox(‘ctts’, version, 0) {
//   unsigned int(32) entry_count;
//   int i;
//   for (i=0; i < entry_count; i++) {
//     unsigned int(32) sample_count;
//     unsigned int(32) sample_offset; // signed int(32) when version==1
//   }
// }
type CttsBox struct {
	FullBox
	Entries []CttsEntry
}

type CttsEntry struct {
	SampleCount  uint32
	SampleOffset int32
}

func (b *CttsBox) Decode(data []byte) error {
	r := &breader{data: data}
	b.decodeHeader(r)
	count := r.u32()
	if r.err != nil {
		return r.err
	}
	b.Entries = make([]CttsEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		e := CttsEntry{SampleCount: r.u32(), SampleOffset: int32(r.u32())}
		if r.err != nil {
			return r.err
		}
		b.Entries = append(b.Entries, e)
	}
	return r.err
}

func (b *CttsBox) Encode(w *bwriter) error {
	b.encodeHeader(w)
	w.u32(uint32(len(b.Entries)))
	for _, e := range b.Entries {
		w.u32(e.SampleCount)
		w.u32(uint32(e.SampleOffset))
	}
	return nil
}

// aligned(8) class SampleToChunkBox extends FullBox(‘stsc’, version = 0, 0) {
//   unsigned int(32) entry_count;
//   for (i=1; i <= entry_count; i++) {
//     unsigned int(32) first_chunk;
//     unsigned int(32) samples_per_chunk;
//     unsigned int(32) sample_description_index;
//   }
// }
type StscBox struct {
	FullBox
	Entries []StscEntry
}

type StscEntry struct {
	FirstChunk             uint32
	SamplesPerChunk        uint32
	SampleDescriptionIndex uint32
}

func (b *StscBox) Decode(data []byte) error {
	r := &breader{data: data}
	b.decodeHeader(r)
	count := r.u32()
	if r.err != nil {
		return r.err
	}
	b.Entries = make([]StscEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		e := StscEntry{
			FirstChunk:             r.u32(),
			SamplesPerChunk:        r.u32(),
			SampleDescriptionIndex: r.u32(),
		}
		if r.err != nil {
			return r.err
		}
		b.Entries = append(b.Entries, e)
	}
	return r.err
}

func (b *StscBox) Encode(w *bwriter) error {
	b.encodeHeader(w)
	w.u32(uint32(len(b.Entries)))
	for _, e := range b.Entries {
		w.u32(e.FirstChunk)
		w.u32(e.SamplesPerChunk)
		w.u32(e.SampleDescriptionIndex)
	}
	return nil
}

// aligned(8) class SampleSizeBox extends FullBox(‘stsz’, version = 0, 0) {
//   unsigned int(32) sample_size;
//   unsigned int(32) sample_count;
//   if (sample_size==0) {
//     for (i=1; i <= sample_count; i++) {
//       unsigned int(32) entry_size;
//     }
//   }
// }
type StszBox struct {
	FullBox
	SampleSize  uint32
	SampleCount uint32
	EntrySizes  []uint32
}

func (b *StszBox) Decode(data []byte) error {
	r := &breader{data: data}
	b.decodeHeader(r)
	b.SampleSize = r.u32()
	b.SampleCount = r.u32()
	if r.err != nil {
		return r.err
	}
	if b.SampleSize == 0 {
		b.EntrySizes = make([]uint32, 0, b.SampleCount)
		for i := uint32(0); i < b.SampleCount; i++ {
			v := r.u32()
			if r.err != nil {
				return r.err
			}
			b.EntrySizes = append(b.EntrySizes, v)
		}
	}
	return r.err
}

func (b *StszBox) Encode(w *bwriter) error {
	b.encodeHeader(w)
	w.u32(b.SampleSize)
	w.u32(b.SampleCount)
	if b.SampleSize == 0 {
		for _, v := range b.EntrySizes {
			w.u32(v)
		}
	}
	return nil
}

// aligned(8) class ChunkOffsetBox extends FullBox(‘stco’, version = 0, 0) {
//   unsigned int(32) entry_count;
//   for (i=1; i <= entry_count; i++) {
//     unsigned int(32) chunk_offset;
//   }
// }
type StcoBox struct {
	FullBox
	Entries []uint32
}

func (b *StcoBox) Decode(data []byte) error {
	r := &breader{data: data}
	b.decodeHeader(r)
	count := r.u32()
	if r.err != nil {
		return r.err
	}
	b.Entries = make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		v := r.u32()
		if r.err != nil {
			return r.err
		}
		b.Entries = append(b.Entries, v)
	}
	return r.err
}

func (b *StcoBox) Encode(w *bwriter) error {
	b.encodeHeader(w)
	w.u32(uint32(len(b.Entries)))
	for _, v := range b.Entries {
		w.u32(v)
	}
	return nil
}

// aligned(8) class ChunkLargeOffsetBox extends FullBox(‘co64’, version = 0, 0) {
//   unsigned int(32) entry_count;
//   for (i=1; i <= entry_count; i++) {
//     unsigned int(64) chunk_offset;
//   }
// }
type Co64Box struct {
	FullBox
	Entries []uint64
}

func (b *Co64Box) Decode(data []byte) error {
	r := &breader{data: data}
	b.decodeHeader(r)
	count := r.u32()
	if r.err != nil {
		return r.err
	}
	b.Entries = make([]uint64, 0, count)
	for i := uint32(0); i < count; i++ {
		v := r.u64()
		if r.err != nil {
			return r.err
		}
		b.Entries = append(b.Entries, v)
	}
	return r.err
}

func (b *Co64Box) Encode(w *bwriter) error {
	b.encodeHeader(w)
	w.u32(uint32(len(b.Entries)))
	for _, v := range b.Entries {
		w.u64(v)
	}
	return nil
}

// aligned(8) class SyncSampleBox extends FullBox(‘stss’, version = 0, 0) {
//   unsigned int(32) entry_count;
//   int i;
//   for (i=0; i < entry_count; i++) {
//     unsigned int(32) sample_number;
//   }
// }
type StssBox struct {
	FullBox
	SampleNumbers []uint32
}

func (b *StssBox) Decode(data []byte) error {
	r := &breader{data: data}
	b.decodeHeader(r)
	count := r.u32()
	if r.err != nil {
		return r.err
	}
	b.SampleNumbers = make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		v := r.u32()
		if r.err != nil {
			return r.err
		}
		b.SampleNumbers = append(b.SampleNumbers, v)
	}
	return r.err
}

func (b *StssBox) Encode(w *bwriter) error {
	b.encodeHeader(w)
	w.u32(uint32(len(b.SampleNumbers)))
	for _, v := range b.SampleNumbers {
		w.u32(v)
	}
	return nil
}
