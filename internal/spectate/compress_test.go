package spectate

import "testing"

func TestGZIPRoundTrip(t *testing.T) {
	compressor := NewGZIPCompressor()
	payload := []byte(`{"tick":42,"score":300}`)

	compressed, err := compressor.Compress(payload)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if len(compressed) == 0 {
		t.Fatal("compressed payload empty")
	}
	decompressed, err := compressor.Decompress(compressed)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if string(decompressed) != string(payload) {
		t.Fatalf("round trip mismatch: got %q want %q", decompressed, payload)
	}
}

func TestGZIPDecompressEmpty(t *testing.T) {
	if _, err := NewGZIPCompressor().Decompress(nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestCompressorFor(t *testing.T) {
	for _, name := range []string{"", "gzip", "identity"} {
		if _, err := CompressorFor(name); err != nil {
			t.Fatalf("CompressorFor(%q): %v", name, err)
		}
	}
	if _, err := CompressorFor("brotli"); err == nil {
		t.Fatal("expected unsupported encoding error")
	}
}
