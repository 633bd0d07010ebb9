package craft

import (
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/otus-codec/pkg/packet"
)

const sipOverUDP = `
layers:
  - type: ethernet
    destination_mac: "00:11:22:33:44:55"
    source_mac: "66:77:88:99:aa:bb"
  - type: ipv4
    ttl: 64
    identification: 0x1234
    source: 10.0.0.1
    destination: 10.0.0.2
  - type: udp
    source_port: 5060
    destination_port: 5060
payload_text: "OPTIONS sip:bob@example.com SIP/2.0\r\n"
`

func TestBuildDerivesLengthsAndDiscriminators(t *testing.T) {
	d, err := ParseBytes([]byte(sipOverUDP))
	require.NoError(t, err)
	assert.Equal(t, []packet.Kind{packet.KindEthernet, packet.KindIPv4, packet.KindUDP}, d.Kinds())

	out, err := d.Encode()
	require.NoError(t, err)
	body := "OPTIONS sip:bob@example.com SIP/2.0\r\n"
	require.Len(t, out, 14+20+8+len(body))

	p, err := packet.DecodeFrame(packet.KindEthernet, out)
	require.NoError(t, err)
	assert.False(t, packet.AnyCorrupted(p))

	chain := packet.Chain(p)
	require.Len(t, chain, 3)
	assert.Equal(t, packet.EtherTypeIPv4, chain[0].(*packet.Ethernet).EtherType())

	ip := chain[1].(*packet.IPv4)
	assert.Equal(t, packet.IPProtocolUDP, ip.Protocol())
	assert.Equal(t, uint16(20+8+len(body)), ip.TotalLength())
	assert.Equal(t, uint16(0x1234), ip.Identification())
	assert.Equal(t, uint8(64), ip.TTL())
	assert.Equal(t, netip.MustParseAddr("10.0.0.2"), ip.DestinationAddress())

	udp := chain[2].(*packet.UDP)
	assert.Equal(t, uint16(8+len(body)), udp.Length())
	assert.Equal(t, []byte(body), udp.RawPayload())
}

func TestBuildVLANARPFrame(t *testing.T) {
	const doc = `
layers:
  - type: eth
    destination_mac: ff:ff:ff:ff:ff:ff
    source_mac: "00:11:22:33:44:55"
  - type: vlan
    pcp: 5
    vid: 100
  - type: arp
    hardware_type: 1
    protocol_type: 0x0800
    op_code: 1
    sender_hardware_address: "00:11:22:33:44:55"
    sender_protocol_address: 192.168.1.1
    target_hardware_address: "00:00:00:00:00:00"
    target_protocol_address: 192.168.1.2
`
	want := []byte{
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55,
		0x81, 0x00,
		0xa0, 0x64,
		0x08, 0x06,
		0x00, 0x01, 0x08, 0x00, 0x06, 0x04, 0x00, 0x01,
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55,
		0xc0, 0xa8, 0x01, 0x01,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0xc0, 0xa8, 0x01, 0x02,
	}

	d, err := ParseBytes([]byte(doc))
	require.NoError(t, err)
	out, err := d.Encode()
	require.NoError(t, err)
	assert.Equal(t, want, out)
}

func TestExplicitFieldsWin(t *testing.T) {
	const doc = `
layers:
  - type: ipv4
    total_length: 99
    protocol: 253
  - type: udp
    length: 3
`
	d, err := ParseBytes([]byte(doc))
	require.NoError(t, err)
	p, err := d.Build()
	require.NoError(t, err)

	ip := p.(*packet.IPv4)
	assert.Equal(t, uint16(99), ip.TotalLength())
	assert.Equal(t, uint8(253), ip.Protocol())
	assert.Equal(t, uint16(3), ip.Payload().(*packet.UDP).Length())
}

func TestTCPFlags(t *testing.T) {
	const doc = `
layers:
  - type: tcp
    source_port: 443
    flags: [SYN, ack]
payload: "de ad be ef"
`
	d, err := ParseBytes([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, d.Payload())

	p, err := d.Build()
	require.NoError(t, err)
	tcp := p.(*packet.TCP)
	assert.Equal(t, packet.TCPFlagSYN|packet.TCPFlagACK, tcp.HeaderLenFlags())
	assert.Equal(t, uint8(5), tcp.DataOffset())
	assert.Equal(t, []string{"SYN", "ACK"}, tcpFlagList(tcp.HeaderLenFlags()))
}

func TestICMPChecksumOnEncode(t *testing.T) {
	const doc = `
layers:
  - type: ipv4
    source: 192.0.2.1
    destination: 192.0.2.2
  - type: icmp
    icmp_type: 8
    identifier: 1
    sequence_number: 1
payload_text: ping
`
	d, err := ParseBytes([]byte(doc))
	require.NoError(t, err)
	out, err := d.Encode()
	require.NoError(t, err)

	p, err := packet.DecodeFrame(packet.KindIPv4, out)
	require.NoError(t, err)
	assert.False(t, packet.AnyCorrupted(p))
	icmp := p.Payload().(*packet.ICMP)
	assert.Equal(t, packet.ICMPEchoRequest, icmp.Type())
	assert.NotZero(t, icmp.Checksum())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "empty", doc: "", want: "no layers"},
		{name: "no layers", doc: "layers: []", want: "no layers"},
		{name: "unknown top-level key", doc: "layers: [{type: udp}]\nextra: 1", want: "invalid YAML"},
		{name: "missing type", doc: "layers: [{ttl: 1}]", want: `missing "type"`},
		{name: "unknown type", doc: "layers: [{type: ipv6}]", want: "unknown type"},
		{name: "unknown field", doc: "layers: [{type: udp, ttl: 1}]", want: "ttl"},
		{name: "negative", doc: "layers: [{type: udp, source_port: -1}]", want: "source_port"},
		{name: "bad nesting", doc: "layers: [{type: udp}, {type: tcp}]", want: "UDP cannot carry TCP"},
		{name: "arp in ipv4", doc: "layers: [{type: ipv4}, {type: arp}]", want: "IPv4 cannot carry ARP"},
		{name: "both payloads", doc: "layers: [{type: udp}]\npayload: 00\npayload_text: x", want: "mutually exclusive"},
		{name: "bad hex", doc: "layers: [{type: udp}]\npayload: zz", want: "payload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBytes([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "vid overflow", doc: "layers: [{type: vlan, vid: 4096}]", want: "vid"},
		{name: "ttl overflow", doc: "layers: [{type: ipv4, ttl: 256}]", want: "ttl"},
		{name: "fragment offset overflow", doc: "layers: [{type: ipv4, fragment_offset: 8192}]", want: "fragment_offset"},
		{name: "bad mac", doc: "layers: [{type: ethernet, source_mac: nope}]", want: "source_mac"},
		{name: "ipv6 source", doc: "layers: [{type: ipv4, source: '2001:db8::1'}]", want: "not an IPv4 address"},
		{name: "bad flag", doc: "layers: [{type: tcp, flags: [XMAS]}]", want: "XMAS"},
		{name: "flags twice", doc: "layers: [{type: tcp, flags: [SYN], header_len_flags: 2}]", want: "mutually exclusive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseBytes([]byte(tt.doc))
			require.NoError(t, err)
			_, err = d.Build()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDescribeRoundTrip(t *testing.T) {
	docs := map[string]string{
		"udp": sipOverUDP,
		"arp": `
layers:
  - type: ethernet
  - type: ieee8021q
    vid: 7
  - type: ieee8021q
    vid: 8
  - type: arp
    hardware_type: 1
    protocol_type: 0x0800
    op_code: 2
    sender_hardware_address: "02:00:00:00:00:01"
    sender_protocol_address: 10.1.1.1
    target_hardware_address: "02:00:00:00:00:02"
    target_protocol_address: 10.1.1.2
`,
		"tcp": `
layers:
  - type: ipv4
    options: "94040000"
  - type: tcp
    sequence_number: 4294967295
    flags: [FIN, PSH, NS]
payload: "0102"
`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			d, err := ParseBytes([]byte(doc))
			require.NoError(t, err)
			wire, err := d.Encode()
			require.NoError(t, err)

			link := d.Kinds()[0]
			decoded, err := packet.DecodeFrame(link, wire)
			require.NoError(t, err)

			out, err := Describe(decoded)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(string(out), "layers:\n"), string(out))

			again, err := ParseBytes(out)
			require.NoError(t, err, string(out))
			rebuilt, err := again.Build()
			require.NoError(t, err)
			assert.True(t, decoded.Equal(rebuilt), "want %s\ngot  %s", decoded, rebuilt)

			rewire, err := packet.Encode(rebuilt)
			require.NoError(t, err)
			assert.Equal(t, wire, rewire)
		})
	}
}

func TestDescribeNil(t *testing.T) {
	_, err := Describe(nil)
	assert.ErrorIs(t, err, packet.ErrNilPacket)
}
