package isobmff

// aligned(8) class SampleDescriptionBox (unsigned int(32) handler_type)
//   extends FullBox('stsd', version, 0) {
//   int i ;
//   unsigned int(32) entry_count;
//   for (i = 1 ; i <= entry_count ; i++) {
//     SampleEntry(); // an instance of a class derived from SampleEntry
//   }
// }
type StsdBox struct {
	FullBox
	Entries []SampleEntry
}

// SampleEntry is one sample description. Data holds the codec-specific bytes
// following the data reference index, uninterpreted.
type SampleEntry struct {
	Format             FourCC
	DataReferenceIndex uint16
	Data               []byte
}

func (b *StsdBox) Decode(data []byte) error {
	r := &breader{data: data}
	b.decodeHeader(r)
	count := r.u32()
	if r.err != nil {
		return r.err
	}
	b.Entries = make([]SampleEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		size := r.u32()
		var e SampleEntry
		e.Format = r.fourcc()
		r.skip(6)
		e.DataReferenceIndex = r.u16()
		if r.err != nil {
			return r.err
		}
		if size < 16 {
			return &RangeError{Requested: 16, Remaining: int64(size)}
		}
		rest := r.take(int(size) - 16)
		if r.err != nil {
			return r.err
		}
		e.Data = append([]byte(nil), rest...)
		b.Entries = append(b.Entries, e)
	}
	return r.err
}

func (b *StsdBox) Encode(w *bwriter) error {
	b.encodeHeader(w)
	w.u32(uint32(len(b.Entries)))
	for _, e := range b.Entries {
		w.u32(uint32(16 + len(e.Data)))
		w.fourcc(e.Format)
		w.put(make([]byte, 6))
		w.u16(e.DataReferenceIndex)
		w.put(e.Data)
	}
	return nil
}
