package packet

import (
	"bytes"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoRequest() *ICMP {
	return NewICMP().SetType(ICMPEchoRequest).SetCode(0).SetIdentifier(0x46f5).SetSequenceNumber(2)
}

func TestICMPDefaults(t *testing.T) {
	out, err := NewICMP().Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0xff, 0xff, 0, 0, 0, 0}, out)
}

func TestICMPChecksumVectors(t *testing.T) {
	// No case for the 0xe553 echo vector: its 56-octet payload is unknown,
	// so the input cannot be rebuilt.
	tests := []struct {
		name    string
		payload []byte
		want    uint16
	}{
		{name: "empty", payload: nil, want: 0xb108},
		{name: "1024 x 0xff", payload: bytes.Repeat([]byte{0xff}, 1024), want: 0xb108},
		{name: "1021 x 0xff", payload: bytes.Repeat([]byte{0xff}, 1021), want: 0xb207},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := echoRequest().SetChecksum(0xdead).SetRawPayload(tt.payload)
			out, err := c.Serialize()
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Checksum())
			assert.Equal(t, []byte{byte(tt.want >> 8), byte(tt.want)}, out[2:4])
			assert.Len(t, out, 8+len(tt.payload))

			back, err := DecodeFrame(KindICMP, out)
			require.NoError(t, err)
			assert.False(t, back.Corrupted())
			assert.True(t, c.Equal(back))
		})
	}
}

func TestICMPCorruptionDetection(t *testing.T) {
	out, err := echoRequest().SetRawPayload([]byte("abcdefgh")).Serialize()
	require.NoError(t, err)

	p, err := DecodeFrame(KindICMP, out)
	require.NoError(t, err)
	assert.False(t, p.Corrupted())

	for i := range out {
		data := append([]byte(nil), out...)
		data[i] = ^data[i]
		p, err := DecodeFrame(KindICMP, data)
		require.NoError(t, err, "octet %d", i)
		assert.True(t, p.Corrupted(), "octet %d", i)
	}
}

func TestICMPInsideIPv4(t *testing.T) {
	icmp := echoRequest().SetRawPayload([]byte("ping"))
	ip := NewIPv4().SetProtocol(IPProtocolICMP).SetTTL(64).SetTotalLength(32).SetPayload(icmp)
	out, err := Encode(ip)
	require.NoError(t, err)

	gp := gopacket.NewPacket(out, layers.LayerTypeIPv4, gopacket.Default)
	require.Nil(t, gp.ErrorLayer())
	icmpL := gp.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4)
	assert.Equal(t, uint8(layers.ICMPv4TypeEchoRequest), icmpL.TypeCode.Type())
	assert.Equal(t, icmp.Checksum(), icmpL.Checksum)
	assert.Equal(t, uint16(0x46f5), icmpL.Id)
	assert.Equal(t, uint16(2), icmpL.Seq)

	back, err := DecodeFrame(KindIPv4, out)
	require.NoError(t, err)
	assert.False(t, AnyCorrupted(back))
	got := back.Payload().(*ICMP)
	assert.Equal(t, []byte("ping"), got.RawPayload())
}

func TestICMPShortBuffer(t *testing.T) {
	_, err := DecodeFrame(KindICMP, []byte{8, 0, 0, 0, 0, 0, 0})
	assert.ErrorIs(t, err, ErrShortBuffer)
}
