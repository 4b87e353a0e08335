package isobmff

// aligned(8) class MediaHeaderBox extends FullBox(‘mdhd’, version, 0) {
//   if (version==1) {
//     unsigned int(64) creation_time;
//     unsigned int(64) modification_time;
//     unsigned int(32) timescale;
//     unsigned int(64) duration;
//   } else { // version==0
//     unsigned int(32) creation_time;
//     unsigned int(32) modification_time;
//     unsigned int(32) timescale;
//     unsigned int(32) duration;
//   }
//   bit(1) pad = 0;
//   unsigned int(5)[3] language; // ISO-639-2/T language code
//   unsigned int(16) pre_defined = 0;
// }
type MdhdBox struct {
	FullBox
	CreationTime     uint64
	ModificationTime uint64
	Timescale        uint32
	Duration         uint64
	Language         uint16
}

// LanguageUnd is the packed ISO-639-2/T code "und".
const LanguageUnd uint16 = 0x55c4

func (b *MdhdBox) Decode(data []byte) error {
	r := &breader{data: data}
	b.decodeHeader(r)
	if b.Version == 1 {
		b.CreationTime = r.u64()
		b.ModificationTime = r.u64()
		b.Timescale = r.u32()
		b.Duration = r.u64()
	} else {
		b.CreationTime = uint64(r.u32())
		b.ModificationTime = uint64(r.u32())
		b.Timescale = r.u32()
		b.Duration = uint64(r.u32())
	}
	b.Language = r.u16()
	r.skip(2)
	return r.err
}

func (b *MdhdBox) Encode(w *bwriter) error {
	b.encodeHeader(w)
	if b.Version == 1 {
		w.u64(b.CreationTime)
		w.u64(b.ModificationTime)
		w.u32(b.Timescale)
		w.u64(b.Duration)
	} else {
		w.u32(uint32(b.CreationTime))
		w.u32(uint32(b.ModificationTime))
		w.u32(b.Timescale)
		w.u32(uint32(b.Duration))
	}
	w.u16(b.Language)
	w.u16(0)
	return nil
}
