package isobmff

import (
	"bytes"
	"errors"
	"testing"
)

func testMoov() *Box {
	stbl := BuildStbl(
		[]SampleEntry{{Format: TypeCAMM, DataReferenceIndex: 1}},
		[]RawSample{
			{DescriptionIndex: 1, Offset: 0, Size: 10, TimeDelta: 100, IsSync: true},
			{DescriptionIndex: 1, Offset: 10, Size: 12, TimeDelta: 0, IsSync: true},
		},
	)
	return &Box{
		Type: TypeMOOV,
		Children: []*Box{
			{Type: TypeMVHD, Payload: &MvhdBox{
				Timescale:   1000,
				Duration:    44000,
				Rate:        0x10000,
				Volume:      0x100,
				Matrix:      UnityMatrix,
				NextTrackID: 2,
			}},
			{Type: TypeTRAK, Children: []*Box{
				{Type: TypeTKHD, Payload: &TkhdBox{
					FullBox:  FullBox{Flags: TkhdTrackEnabled | TkhdTrackInMovie},
					TrackID:  1,
					Duration: 44000,
					Matrix:   UnityMatrix,
				}},
				{Type: TypeEDTS, Children: []*Box{
					{Type: TypeELST, Payload: &ElstBox{
						FullBox: FullBox{Version: 1},
						Entries: []ElstEntry{
							{SegmentDuration: 4400, MediaTime: -1, MediaRateInteger: 1},
						},
					}},
				}},
				{Type: TypeMDIA, Children: []*Box{
					{Type: TypeMDHD, Payload: &MdhdBox{
						FullBox:   FullBox{Version: 1},
						Timescale: 90000,
						Duration:  9000,
						Language:  LanguageUnd,
					}},
					{Type: TypeHDLR, Payload: &HdlrBox{HandlerType: TypeCAMM, Name: "CameraMetadataMotionHandler"}},
					{Type: TypeMINF, Children: []*Box{
						{Type: TypeDINF, Children: []*Box{
							{Type: TypeDREF, Payload: SelfContainedDref()},
						}},
						stbl,
					}},
				}},
			}},
			{Type: FCC("skip"), Raw: []byte("opaque bytes")},
		},
	}
}

// Encoding a decoded tree must reproduce the original bytes exactly.
func TestBoxListRoundTrip(t *testing.T) {
	first, err := EncodeBox(testMoov())
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := DecodeBoxList(first[8:], MoovSchema)
	if err != nil {
		t.Fatal(err)
	}
	second, err := EncodeBox(&Box{Type: TypeMOOV, Children: decoded})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("re-encoded moov differs from the original bytes")
	}
}

func TestDecodeBoxListTypedFields(t *testing.T) {
	data, err := EncodeBox(testMoov())
	if err != nil {
		t.Fatal(err)
	}
	boxes, err := DecodeBoxList(data[8:], MoovSchema)
	if err != nil {
		t.Fatal(err)
	}
	root := &Box{Children: boxes}

	mvhd := root.Find(TypeMVHD).Payload.(*MvhdBox)
	if mvhd.Timescale != 1000 || mvhd.NextTrackID != 2 {
		t.Fatalf("mvhd %+v", mvhd)
	}
	hdlr := root.Find(TypeTRAK, TypeMDIA, TypeHDLR).Payload.(*HdlrBox)
	if hdlr.HandlerType != TypeCAMM || hdlr.Name != "CameraMetadataMotionHandler" {
		t.Fatalf("hdlr %+v", hdlr)
	}
	elst := root.Find(TypeTRAK, TypeEDTS, TypeELST).Payload.(*ElstBox)
	if len(elst.Entries) != 1 || elst.Entries[0].MediaTime != -1 || elst.Entries[0].SegmentDuration != 4400 {
		t.Fatalf("elst %+v", elst)
	}
	if raw := root.Find(FCC("skip")); string(raw.Raw) != "opaque bytes" {
		t.Fatalf("unknown box payload %q", raw.Raw)
	}
}

func TestMoovWithoutStblSchemaKeepsStblRaw(t *testing.T) {
	data, err := EncodeBox(testMoov())
	if err != nil {
		t.Fatal(err)
	}
	boxes, err := DecodeBoxList(data[8:], MoovWithoutStblSchema)
	if err != nil {
		t.Fatal(err)
	}
	stbl := (&Box{Children: boxes}).Find(TypeTRAK, TypeMDIA, TypeMINF, TypeSTBL)
	if stbl == nil {
		t.Fatal("stbl missing")
	}
	if stbl.Raw == nil || stbl.Children != nil || stbl.Payload != nil {
		t.Fatalf("stbl should stay raw, got %+v", stbl)
	}
}

func TestDecodeBoxListLargesize(t *testing.T) {
	data := rawBox64("mdat", []byte("abcdefgh"))
	boxes, err := DecodeBoxList(data, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(boxes) != 1 || string(boxes[0].Raw) != "abcdefgh" {
		t.Fatalf("boxes %+v", boxes)
	}
}

func TestDecodeBoxListRejectsZeroSize(t *testing.T) {
	data := []byte{0, 0, 0, 0, 'f', 'r', 'e', 'e'}
	_, err := DecodeBoxList(data, nil)
	var re *RangeError
	if !errors.As(err, &re) {
		t.Fatalf("expected RangeError, got %v", err)
	}
}

func TestDecodeBoxListTruncated(t *testing.T) {
	data := rawBox("free", []byte("abc"))
	_, err := DecodeBoxList(data[:len(data)-1], nil)
	var re *RangeError
	if !errors.As(err, &re) {
		t.Fatalf("expected RangeError, got %v", err)
	}
}
