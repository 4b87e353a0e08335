package isobmff

// FourCC is a 4-byte box type code.
type FourCC [4]byte

func f(s string) FourCC {
	return FourCC([]byte(s))
}

// FCC builds a FourCC from its string form.
func FCC(s string) FourCC { return f(s) }

func (c FourCC) String() string { return string(c[:]) }

var (
	TypeFTYP = f("ftyp")
	TypeMOOV = f("moov")
	TypeMVHD = f("mvhd")
	TypeUDTA = f("udta")
	TypeTRAK = f("trak")
	TypeTKHD = f("tkhd")
	TypeEDTS = f("edts")
	TypeELST = f("elst")
	TypeMDIA = f("mdia")
	TypeMDHD = f("mdhd")
	TypeHDLR = f("hdlr")
	TypeMINF = f("minf")
	TypeDINF = f("dinf")
	TypeDREF = f("dref")
	TypeURL  = f("url ")
	TypeURN  = f("urn ")
	TypeSTBL = f("stbl")
	TypeSTSD = f("stsd")
	TypeSTTS = f("stts")
	TypeCTTS = f("ctts")
	TypeSTSC = f("stsc")
	TypeSTSZ = f("stsz")
	TypeSTCO = f("stco")
	TypeCO64 = f("co64")
	TypeSTSS = f("stss")
	TypeMDAT = f("mdat")
	TypeFREE = f("free")
	TypeVIDE = f("vide")
	TypeCAMM = f("camm")
	TypeGPMD = f("gpmd")
	TypeGPS  = f("gps ")
	TypeCPRT = f("cprt")
)
