package mesh

import "github.com/klauspost/compress/zstd"

// Address-table broadcasts are compressed before they're framed: cheap
// insurance as the mesh grows toward its node cap and the table's entry
// count grows with it. A single encoder/decoder pair is reused across every
// call per klauspost/compress's own guidance — constructing one per
// broadcast would dwarf the cost of compressing a few dozen bytes.
var (
	tableEncoder, _ = zstd.NewWriter(nil)
	tableDecoder, _ = zstd.NewReader(nil)
)

func compressTable(body []byte) []byte {
	return tableEncoder.EncodeAll(body, make([]byte, 0, len(body)))
}

func decompressTable(body []byte) ([]byte, error) {
	return tableDecoder.DecodeAll(body, nil)
}
