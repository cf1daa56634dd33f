package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeKnownVectors(t *testing.T) {
	// RFC 4648 section 10.
	vectors := map[string]string{
		"":       "",
		"f":      "Zg==",
		"fo":     "Zm8=",
		"foo":    "Zm9v",
		"foob":   "Zm9vYg==",
		"fooba":  "Zm9vYmE=",
		"foobar": "Zm9vYmFy",
	}
	for in, want := range vectors {
		assert.Equal(t, want, Encode([]byte(in)), "Encode(%q)", in)
		got, err := Decode(want)
		require.NoError(t, err, "Decode(%q)", want)
		assert.Equal(t, in, string(got))
	}
}

func TestDecodeRoundTripAllLengths(t *testing.T) {
	for n := 0; n < 70; n++ {
		b := randBytes(t, n)
		got, err := Decode(Encode(b))
		require.NoError(t, err)
		require.Equal(t, len(b), len(got))
		require.Equal(t, b, append([]byte{}, got...))
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"short":             "Zm9",
		"long":              "Zm9vY",
		"bad char":          "Zm9*",
		"url alphabet":      "Zm9-",
		"padding mid":       "Zg==Zm9v",
		"padding first":     "=m9v",
		"embedded newline":  "Zm9v\nZm9v",
		"crlf pair":         "Zm\r\n",
		"space":             "Zm9 ",
		"non-zero tail bit": "Zh==",
	}
	for name, in := range cases {
		_, err := Decode(in)
		assert.ErrorIs(t, err, ErrMalformedEnvelope, name)
	}
}

func FuzzCodecRoundTrip(f *testing.F) {
	f.Add([]byte("hello"))
	f.Add([]byte{})
	f.Add([]byte{0xff, 0x00, 0xfe})
	f.Fuzz(func(t *testing.T, b []byte) {
		got, err := Decode(Encode(b))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if string(got) != string(b) {
			t.Fatalf("roundtrip mismatch")
		}
	})
}
