package codec

// PipelineConfig carries the compression algorithm and optional encryption
// passphrase applied to every snapshot and WAL segment.
type PipelineConfig struct {
	Compression   Algorithm
	EncryptionKey *string
}

// EncodePipeline compresses then, if a key is configured, encrypts. Order
// matters: compressing ciphertext would not shrink it, so compression always
// runs first.
func EncodePipeline(data []byte, cfg PipelineConfig) ([]byte, error) {
	compressed, err := Compress(data, cfg.Compression)
	if err != nil {
		return nil, err
	}
	if cfg.EncryptionKey != nil {
		return Encrypt(compressed, *cfg.EncryptionKey)
	}
	return compressed, nil
}

// DecodePipeline reverses EncodePipeline: decrypt (if a key is configured),
// then decompress. Decompression auto-detects the algorithm from magic
// bytes, so it doesn't need cfg.Compression.
func DecodePipeline(data []byte, cfg PipelineConfig) ([]byte, error) {
	decrypted := data
	if cfg.EncryptionKey != nil {
		var err error
		decrypted, err = Decrypt(data, *cfg.EncryptionKey)
		if err != nil {
			return nil, err
		}
	}
	return Decompress(decrypted)
}
