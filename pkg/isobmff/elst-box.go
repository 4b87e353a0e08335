package isobmff

// aligned(8) class EditListBox extends FullBox(‘elst’, version, 0) {
//   unsigned int(32) entry_count;
//   for (i=1; i <= entry_count; i++) {
//     if (version==1) {
//       unsigned int(64) segment_duration;
//       int(64) media_time;
//     } else { // version==0
//       unsigned int(32) segment_duration;
//       int(32) media_time;
//     }
//     int(16) media_rate_integer;
//     int(16) media_rate_fraction = 0;
//   }
// }
type ElstBox struct {
	FullBox
	Entries []ElstEntry
}

// ElstEntry is one edit. A MediaTime of -1 marks an empty edit; the segment
// duration is expressed in the movie timescale while the media time is in
// the media timescale.
type ElstEntry struct {
	SegmentDuration   uint64
	MediaTime         int64
	MediaRateInteger  int16
	MediaRateFraction int16
}

func (b *ElstBox) Decode(data []byte) error {
	r := &breader{data: data}
	b.decodeHeader(r)
	count := r.u32()
	if r.err != nil {
		return r.err
	}
	b.Entries = make([]ElstEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		var e ElstEntry
		if b.Version == 1 {
			e.SegmentDuration = r.u64()
			e.MediaTime = int64(r.u64())
		} else {
			e.SegmentDuration = uint64(r.u32())
			e.MediaTime = int64(int32(r.u32()))
		}
		e.MediaRateInteger = int16(r.u16())
		e.MediaRateFraction = int16(r.u16())
		if r.err != nil {
			return r.err
		}
		b.Entries = append(b.Entries, e)
	}
	return r.err
}

func (b *ElstBox) Encode(w *bwriter) error {
	b.encodeHeader(w)
	w.u32(uint32(len(b.Entries)))
	for _, e := range b.Entries {
		if b.Version == 1 {
			w.u64(e.SegmentDuration)
			w.u64(uint64(e.MediaTime))
		} else {
			w.u32(uint32(e.SegmentDuration))
			w.u32(uint32(int32(e.MediaTime)))
		}
		w.u16(uint16(e.MediaRateInteger))
		w.u16(uint16(e.MediaRateFraction))
	}
	return nil
}
