package audio

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	cases := []Frame{
		{Type: FrameTypeAudioIn, Final: false, Format: FormatWebM, Payload: []byte{1, 2, 3}},
		{Type: FrameTypeAudioIn, Final: true, Format: FormatPCM16LE, Payload: nil},
		{Type: FrameTypeTTSOut, Final: true, Format: FormatOpus, Payload: []byte{0xAA, 0xBB}},
	}

	for _, want := range cases {
		got, err := DecodeFrame(EncodeFrame(want))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Type != want.Type || got.Final != want.Final || got.Format != want.Format {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
		}
		if !bytes.Equal(got.Payload, want.Payload) {
			t.Fatalf("payload mismatch: got %v, want %v", got.Payload, want.Payload)
		}
	}
}

func TestDecodeFrameTooShort(t *testing.T) {
	_, err := DecodeFrame([]byte{0x01, 0x4D, 0x00})
	if err == nil {
		t.Fatal("expected MalformedFrame for short input")
	}
	if _, ok := err.(*MalformedFrame); !ok {
		t.Fatalf("expected *MalformedFrame, got %T", err)
	}
}

func TestDecodeFrameBadMagic(t *testing.T) {
	_, err := DecodeFrame([]byte{0x01, 0xFF, 0x00, 0x02, 0x00})
	if err == nil {
		t.Fatal("expected MalformedFrame for bad magic")
	}
}

func TestDecodeFrameUnknownType(t *testing.T) {
	_, err := DecodeFrame([]byte{0x09, 0x4D, 0x00, 0x02, 0x00})
	if err == nil {
		t.Fatal("expected MalformedFrame for unknown type byte")
	}
}

func TestEncodeTTSFrame(t *testing.T) {
	data := EncodeTTSFrame([]byte{1, 2, 3}, true)
	f, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Type != FrameTypeTTSOut || !f.Final || f.Format != FormatOpus {
		t.Fatalf("unexpected frame: %+v", f)
	}
}
