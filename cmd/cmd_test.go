package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/otus-codec/internal/config"
	"firestige.xyz/otus-codec/internal/craft"
	"firestige.xyz/otus-codec/internal/source/file"
	"firestige.xyz/otus-codec/pkg/packet"
)

const udpDescription = `
layers:
  - type: ethernet
    destination_mac: "00:11:22:33:44:55"
    source_mac: "66:77:88:99:aa:bb"
  - type: ipv4
    ttl: 64
    source: 10.0.0.1
    destination: 10.0.0.2
  - type: udp
    source_port: 5060
    destination_port: 5080
payload_text: hello
`

func encodeHex(t *testing.T, doc string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, runEncode("-", "", strings.NewReader(doc), &buf))
	return strings.TrimSpace(buf.String())
}

func TestRunChecksum(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runChecksum([]string{"4500003c1c46400040060000", "ac100a63ac100a0c"}, &buf))
	assert.Equal(t, "0xb1e6 valid=false\n", buf.String())

	buf.Reset()
	require.NoError(t, runChecksum([]string{"45:00:00:3c:1c:46:40:00:40:06:b1:e6:ac:10:0a:63:ac:10:0a:0c"}, &buf))
	assert.Equal(t, "0x0000 valid=true\n", buf.String())

	assert.Error(t, runChecksum([]string{"xyz"}, &buf))
}

func TestRunEncode(t *testing.T) {
	out := encodeHex(t, udpDescription)
	assert.Len(t, out, 2*(14+20+8+5))
	assert.True(t, strings.HasPrefix(out, "001122334455"+"66778899aabb"+"0800"+"45"), out)
	assert.True(t, strings.HasSuffix(out, "68656c6c6f"), out)
}

func TestRunEncodePcapOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pcap")
	var buf bytes.Buffer
	require.NoError(t, runEncode("-", path, strings.NewReader(udpDescription), &buf))

	src, err := file.NewSource(path)
	require.NoError(t, err)
	require.NoError(t, src.Start(context.Background()))
	defer src.Stop()

	kind, err := src.LinkKind()
	require.NoError(t, err)
	assert.Equal(t, packet.KindEthernet, kind)

	raw, err := src.ReadPacket()
	require.NoError(t, err)
	wire, err := parseHex(strings.TrimSpace(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, wire, raw.Data)

	_, err = src.ReadPacket()
	assert.ErrorIs(t, err, io.EOF)
}

func TestRunEncodeFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "udp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(udpDescription), 0o644))

	var buf bytes.Buffer
	require.NoError(t, runEncode(path, "", nil, &buf))
	assert.Equal(t, encodeHex(t, udpDescription)+"\n", buf.String())

	err := runEncode(filepath.Join(t.TempDir(), "missing.yaml"), "", nil, &buf)
	assert.Error(t, err)
}

func TestRunValidate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runValidate("-", strings.NewReader(udpDescription), &buf))
	assert.Equal(t, "VALID: Ethernet>IPv4>UDP, 47 octets, 3 layer(s) decoded\n", buf.String())

	buf.Reset()
	err := runValidate("-", strings.NewReader("layers: [{type: vlan, vid: 5000}]"), &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID")
	assert.Contains(t, err.Error(), "vid")
	assert.Empty(t, buf.String())
}

func TestRunDecodeText(t *testing.T) {
	frame := encodeHex(t, udpDescription)
	var buf bytes.Buffer
	err := runDecode(context.Background(), config.Default(), decodeOptions{
		Frames: []string{frame},
		Output: "text",
	}, &buf)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "#1 ")
	assert.Contains(t, out, "layers=Ethernet>IPv4>UDP")
	assert.Contains(t, out, "ip.src=10.0.0.1")
	assert.Contains(t, out, "l4.dst_port=5080")
	assert.Contains(t, out, "payload: 5 octets 68656c6c6f")
}

func TestRunDecodeYAML(t *testing.T) {
	frame := encodeHex(t, udpDescription)
	var buf bytes.Buffer
	err := runDecode(context.Background(), config.Default(), decodeOptions{
		Frames: []string{frame},
		Output: "yaml",
	}, &buf)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(buf.String(), "--- # frame 1\n"))

	d, err := craft.ParseBytes([]byte(strings.TrimPrefix(buf.String(), "--- # frame 1\n")))
	require.NoError(t, err)
	wire, err := d.Encode()
	require.NoError(t, err)
	want, err := parseHex(frame)
	require.NoError(t, err)
	assert.Equal(t, want, wire)
}

func TestRunDecodeLinkOverride(t *testing.T) {
	var buf bytes.Buffer
	err := runDecode(context.Background(), config.Default(), decodeOptions{
		Frames:  []string{"4500003c1c4640004006b1e6ac100a63ac100a0c"},
		Link:    "IPv4",
		LinkSet: true,
		Output:  "text",
	}, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "layers=IPv4\n")
	assert.Contains(t, buf.String(), "ip.dst=172.16.10.12")

	err = runDecode(context.Background(), config.Default(), decodeOptions{
		Frames:  []string{"00"},
		Link:    "ipv6",
		LinkSet: true,
	}, &buf)
	assert.Error(t, err)
}

func TestRunDecodeErrors(t *testing.T) {
	cfg := config.Default()

	var buf bytes.Buffer
	require.NoError(t, runDecode(context.Background(), cfg, decodeOptions{
		Frames: []string{"0011", encodeHex(t, udpDescription)},
	}, &buf))
	assert.True(t, strings.HasPrefix(buf.String(), "#1 error: "), buf.String())
	assert.Contains(t, buf.String(), "#2 ")

	err := runDecode(context.Background(), cfg, decodeOptions{
		Frames:         []string{"0011"},
		StopOnError:    true,
		StopOnErrorSet: true,
	}, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frame 1")

	assert.Error(t, runDecode(context.Background(), cfg, decodeOptions{}, &buf))
	assert.Error(t, runDecode(context.Background(), cfg, decodeOptions{Frames: []string{"00"}, Output: "xml"}, &buf))
	assert.Error(t, runDecode(context.Background(), cfg, decodeOptions{Frames: []string{"zz"}}, &buf))
	assert.Error(t, runDecode(context.Background(), cfg, decodeOptions{Frames: []string{"00"}, PcapFile: "x.pcap"}, &buf))
}

func TestRunDecodePcap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.pcap")
	var hexOut bytes.Buffer
	require.NoError(t, runEncode("-", path, strings.NewReader(udpDescription), &hexOut))

	var buf bytes.Buffer
	err := runDecode(context.Background(), config.Default(), decodeOptions{PcapFile: path}, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "layers=Ethernet>IPv4>UDP")
	assert.NotContains(t, buf.String(), "#2")
}

func TestParseHex(t *testing.T) {
	b, err := parseHex("0x0a:0b-0c 0d\n")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0x0b, 0x0c, 0x0d}, b)
}

func TestRunDecodeFilter(t *testing.T) {
	arp := encodeHex(t, `
layers:
  - type: ethernet
    destination_mac: ff:ff:ff:ff:ff:ff
  - type: arp
    hardware_type: 1
    protocol_type: 0x0800
    op_code: 1
    sender_protocol_address: 192.168.1.1
    target_protocol_address: 192.168.1.2
`)
	udp := encodeHex(t, udpDescription)

	var buf bytes.Buffer
	err := runDecode(context.Background(), config.Default(), decodeOptions{
		Frames: []string{udp, arp, udp},
		Filter: "4,40 0 0 12,21 0 1 2054,6 0 0 262144,6 0 0 0",
	}, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "layers=Ethernet>ARP")
	assert.Contains(t, buf.String(), "arp.op=request")
	assert.NotContains(t, buf.String(), "UDP")

	path := filepath.Join(t.TempDir(), "arp.bpf")
	require.NoError(t, os.WriteFile(path, []byte("1\n6 0 0 0\n"), 0o644))
	buf.Reset()
	require.NoError(t, runDecode(context.Background(), config.Default(), decodeOptions{
		Frames: []string{udp, arp},
		Filter: "@" + path,
	}, &buf))
	assert.Empty(t, buf.String())

	assert.Error(t, runDecode(context.Background(), config.Default(), decodeOptions{
		Frames: []string{udp},
		Filter: "bogus",
	}, &buf))
}
