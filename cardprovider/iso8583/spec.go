package iso8583

import (
	"github.com/moov-io/iso8583"
	"github.com/moov-io/iso8583/encoding"
	"github.com/moov-io/iso8583/field"
	"github.com/moov-io/iso8583/padding"
	"github.com/moov-io/iso8583/prefix"
)

// spec is Spec87 with the fixed numeric fields we send left padded with
// zeros, so processing code 010000 and STAN 000042 keep their width.
var spec = newSpec()

func newSpec() *iso8583.MessageSpec {
	fields := make(map[int]field.Field, len(iso8583.Spec87.Fields))
	for id, f := range iso8583.Spec87.Fields {
		fields[id] = f
	}

	fields[3] = fixedNumeric(6, "Processing Code")
	fields[7] = fixedNumeric(10, "Transmission Date & Time")
	fields[11] = fixedNumeric(6, "Systems Trace Audit Number (STAN)")

	return &iso8583.MessageSpec{
		Name:   "ISO 8583 v1987 ASCII, zero padded numerics",
		Fields: fields,
	}
}

func fixedNumeric(length int, description string) field.Field {
	return field.NewNumeric(&field.Spec{
		Length:      length,
		Description: description,
		Enc:         encoding.ASCII,
		Pref:        prefix.ASCII.Fixed,
		Pad:         padding.Left('0'),
	})
}
