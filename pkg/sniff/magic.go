package sniff

var (
	parquetMagic      = [4]byte{'P', 'A', 'R', '1'}
	arrowFileMagic    = [8]byte{'A', 'R', 'R', 'O', 'W', '1', 0, 0}
	streamContinue    = [4]byte{0xFF, 0xFF, 0xFF, 0xFF}
	featherV1Magic    = [4]byte{'F', 'E', 'A', '1'}
	avroMagic         = [4]byte{'O', 'b', 'j', 0x01}
	maxStreamMetaLen  = uint32(100_000_000)
	maxHeaderlessMeta = uint32(10_000_000)
)

const (
	csvSampleLen      = 64
	binarySampleLen   = 16
	binaryNoiseCutoff = 8
	textSampleLen     = 32
)

// foreignMagic is a signature of a container quiver recognizes but cannot
// decode. Only the prefix is compared.
type foreignMagic struct {
	name   string
	prefix []byte
}

// foreignMagics is scanned in order; the first matching prefix wins.
var foreignMagics = []foreignMagic{
	{name: "ZIP archive", prefix: []byte{0x50, 0x4B, 0x03, 0x04}},
	{name: "GZIP", prefix: []byte{0x1F, 0x8B, 0x08}},
	{name: "BZIP2", prefix: []byte{0x42, 0x5A, 0x68}},
	{name: "PDF", prefix: []byte{0x25, 0x50, 0x44, 0x46}},
	{name: "JPEG image", prefix: []byte{0xFF, 0xD8, 0xFF}},
	{name: "PNG image", prefix: []byte{0x89, 0x50, 0x4E, 0x47}},
	{name: "JSON", prefix: []byte{'{'}},
	{name: "XML/HTML", prefix: []byte("<?xml")},
	{name: "XML/HTML", prefix: []byte("<html")},
}
