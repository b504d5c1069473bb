package log

import (
	"io"

	"github.com/fxamacker/cbor/v2"
)

// codec holds the CBOR modes of capture files. Events use integer keys, so
// a record stays small even with every payload set.
type codec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var capture = mustCodec()

func mustCodec() codec {
	enc, err := cbor.EncOptions{
		Sort:          cbor.SortCoreDeterministic,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		// Timestamps keep nanoseconds so that events of one wait cycle
		// still sort.
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic("log: event encoder: " + err.Error())
	}

	// Unknown keys are skipped: a capture written by a newer build, with
	// extra payloads, still reads.
	dec, err := cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyQuiet,
		IndefLength:      cbor.IndefLengthAllowed,
		MaxNestedLevels:  16,
		MaxArrayElements: 1 << 16,
		MaxMapPairs:      1 << 10,
	}.DecMode()
	if err != nil {
		panic("log: event decoder: " + err.Error())
	}
	return codec{enc: enc, dec: dec}
}

// EncodeEvent returns the capture record of e.
func EncodeEvent(e Event) ([]byte, error) {
	return capture.enc.Marshal(e)
}

// DecodeEvent parses one capture record.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	err := capture.dec.Unmarshal(data, &e)
	return e, err
}

// NewEncoder returns an encoder writing capture records to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return capture.enc.NewEncoder(w)
}

// NewDecoder returns a decoder reading capture records from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return capture.dec.NewDecoder(r)
}
