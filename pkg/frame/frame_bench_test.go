//go:build bench
// +build bench

package frame

import (
	"bytes"
	"testing"
)

var benchPayloads = []struct {
	name    string
	payload []byte
}{
	{name: "small", payload: []byte("john@example.com")},
	{name: "medium", payload: bytes.Repeat([]byte("v"), 1000)},
	{name: "large", payload: bytes.Repeat([]byte("v"), 100000)},
}

func BenchmarkCodec_Encode(b *testing.B) {
	codec := NewCodec()

	for _, bm := range benchPayloads {
		b.Run(bm.name, func(b *testing.B) {
			b.SetBytes(int64(len(bm.payload)))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := codec.Encode(KindState, bm.payload); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkCodec_Decode(b *testing.B) {
	codec := NewCodec()

	for _, bm := range benchPayloads {
		b.Run(bm.name, func(b *testing.B) {
			// Pre-encode the data
			encoded, err := codec.Encode(KindState, bm.payload)
			if err != nil {
				b.Fatal(err)
			}

			b.SetBytes(int64(len(encoded)))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := codec.Decode(encoded); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
