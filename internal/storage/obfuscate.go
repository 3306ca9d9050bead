package storage

// obfuscationKey is XORed over persisted chat payloads. This only keeps the
// data from being casually readable; it is not encryption.
const obfuscationKey = "togpt-secure-storage-key"

// Obfuscate XORs data with the repeating obfuscation key.
func Obfuscate(data []byte) []byte {
	return xorKey(data, obfuscationKey)
}

// Deobfuscate reverses Obfuscate.
func Deobfuscate(data []byte) []byte {
	return xorKey(data, obfuscationKey)
}

func xorKey(data []byte, key string) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}
