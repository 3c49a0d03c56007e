package models

import (
	"encoding/hex"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

// fingerprintMode encodes with Core Deterministic Encoding (sorted map keys,
// shortest integers), so equal configs always produce identical bytes.
var fingerprintMode cbor.EncMode

func init() {
	opts := cbor.CoreDetEncOptions()
	// GraphKind serializes by name, matching the wire form.
	opts.TextMarshaler = cbor.TextMarshalerTextString
	var err error
	fingerprintMode, err = opts.EncMode()
	if err != nil {
		panic("models: CBOR encoder initialization failed: " + err.Error())
	}
}

// Fingerprint returns a short stable identifier of the chart described by c.
// Two configs that are Equal have the same fingerprint. Sinks receive it with
// every model reset so a viewer can tell a new chart from a redraw.
func (c *Config) Fingerprint() string {
	b, err := fingerprintMode.Marshal(c)
	if err != nil {
		return ""
	}
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:8])
}
