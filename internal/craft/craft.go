// Package craft builds packets from YAML descriptions and describes decoded
// packets in the same format.
//
// A description lists layers outermost first; each layer names its protocol
// in "type" and sets any of its fields. Fields left out keep the protocol
// defaults, except that EtherType, IPv4 Protocol, IPv4 TotalLength, UDP
// Length and the ARP address lengths are derived from what follows them.
//
//	layers:
//	  - type: ethernet
//	    destination_mac: ff:ff:ff:ff:ff:ff
//	  - type: ipv4
//	    source: 10.0.0.1
//	    destination: 10.0.0.2
//	  - type: udp
//	    source_port: 5060
//	    destination_port: 5060
//	payload_text: "OPTIONS sip:bob SIP/2.0\r\n"
package craft

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"firestige.xyz/otus-codec/pkg/packet"
)

var ErrEmptyDescription = errors.New("craft: description has no layers")

// Description is a parsed packet description.
type Description struct {
	layers  []layer
	payload []byte
}

// Kinds lists the described protocols, outermost first.
func (d *Description) Kinds() []packet.Kind {
	kinds := make([]packet.Kind, len(d.layers))
	for i, l := range d.layers {
		kinds[i] = l.kind()
	}
	return kinds
}

// Payload returns the raw payload of the innermost layer.
func (d *Description) Payload() []byte { return append([]byte(nil), d.payload...) }

type document struct {
	Layers      []map[string]interface{} `yaml:"layers"`
	Payload     string                   `yaml:"payload,omitempty"`      // hex
	PayloadText string                   `yaml:"payload_text,omitempty"` // literal
}

// Parse reads a YAML description.
func Parse(r io.Reader) (*Description, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyDescription
		}
		return nil, fmt.Errorf("craft: invalid YAML: %w", err)
	}
	return fromDocument(&doc)
}

// ParseBytes is Parse over an in-memory description.
func ParseBytes(b []byte) (*Description, error) {
	return Parse(bytes.NewReader(b))
}

func fromDocument(doc *document) (*Description, error) {
	if len(doc.Layers) == 0 {
		return nil, ErrEmptyDescription
	}
	if doc.Payload != "" && doc.PayloadText != "" {
		return nil, errors.New("craft: payload and payload_text are mutually exclusive")
	}

	d := &Description{}
	if doc.Payload != "" {
		b, err := hex.DecodeString(strings.Join(strings.Fields(doc.Payload), ""))
		if err != nil {
			return nil, fmt.Errorf("craft: payload: %w", err)
		}
		d.payload = b
	} else if doc.PayloadText != "" {
		d.payload = []byte(doc.PayloadText)
	}

	for i, raw := range doc.Layers {
		l, err := decodeLayer(raw)
		if err != nil {
			return nil, fmt.Errorf("craft: layer %d: %w", i, err)
		}
		if i > 0 {
			outer := d.layers[i-1].kind()
			if _, ok := packet.Discriminator(outer, l.kind()); !ok {
				return nil, fmt.Errorf("craft: layer %d: %s cannot carry %s", i, outer, l.kind())
			}
		}
		d.layers = append(d.layers, l)
	}
	return d, nil
}

func decodeLayer(raw map[string]interface{}) (layer, error) {
	name, _ := raw["type"].(string)
	if name == "" {
		return nil, errors.New(`missing "type"`)
	}
	kind, ok := packet.ParseKind(strings.ToLower(name))
	if !ok {
		return nil, fmt.Errorf("unknown type %q", name)
	}

	fields := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if k != "type" {
			fields[k] = v
		}
	}

	l := newLayer(kind)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      l,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(fields); err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	return l, nil
}

// Build assembles the described packet, innermost layer first so that
// lengths and discriminators can be derived from the payload.
func (d *Description) Build() (packet.Packet, error) {
	if len(d.layers) == 0 {
		return nil, ErrEmptyDescription
	}

	var (
		inner      packet.Packet
		payloadLen = len(d.payload)
	)
	for i := len(d.layers) - 1; i >= 0; i-- {
		l := d.layers[i]
		p, err := l.build()
		if err != nil {
			return nil, fmt.Errorf("craft: %s: %w", l.kind(), err)
		}

		innerKind := packet.KindUnknown
		if inner != nil {
			innerKind = inner.Kind()
			if err := packet.SetPayload(p, inner); err != nil {
				return nil, err
			}
		} else if len(d.payload) > 0 {
			if err := packet.SetRawPayload(p, d.payload); err != nil {
				return nil, err
			}
		}
		if err := l.link(p, innerKind, payloadLen); err != nil {
			return nil, fmt.Errorf("craft: %s: %w", l.kind(), err)
		}

		inner = p
		payloadLen += p.HeaderBits() / 8
	}
	return inner, nil
}

// Encode builds and serializes the described packet.
func (d *Description) Encode() ([]byte, error) {
	p, err := d.Build()
	if err != nil {
		return nil, err
	}
	return packet.Encode(p)
}

// Describe renders p and its payload chain as a YAML description. Building
// the result yields a packet equal to p.
func Describe(p packet.Packet) ([]byte, error) {
	if p == nil {
		return nil, packet.ErrNilPacket
	}
	var doc struct {
		Layers  []interface{} `yaml:"layers"`
		Payload string        `yaml:"payload,omitempty"`
	}
	chain := packet.Chain(p)
	for _, l := range chain {
		doc.Layers = append(doc.Layers, describeLayer(l))
	}
	doc.Payload = hex.EncodeToString(chain[len(chain)-1].RawPayload())

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
