package store

import (
	"encoding/base64"
	"fmt"
)

// Obfuscator XOR-scrambles the API credential before it lands in the store
// file. This is not encryption; it only keeps the key from being readable
// by a casual `cat` of the settings file. Using the OS keychain was
// rejected upstream because it prompts for admin credentials.
type Obfuscator struct {
	salt []byte
}

const defaultSalt = "jot.settings.store"

func NewObfuscator() *Obfuscator {
	return &Obfuscator{salt: []byte(defaultSalt)}
}

func NewObfuscatorWithSalt(salt string) *Obfuscator {
	return &Obfuscator{salt: []byte(salt)}
}

func (o *Obfuscator) xor(in []byte) []byte {
	out := make([]byte, len(in))
	for i, b := range in {
		out[i] = b ^ o.salt[i%len(o.salt)]
	}
	return out
}

// Conceal returns the base64 form of the XOR-scrambled plaintext.
func (o *Obfuscator) Conceal(plain string) string {
	return base64.StdEncoding.EncodeToString(o.xor([]byte(plain)))
}

// Reveal reverses Conceal. An empty input reveals to an empty string.
func (o *Obfuscator) Reveal(concealed string) (string, error) {
	if concealed == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(concealed)
	if err != nil {
		return "", fmt.Errorf("decoding credential: %w", err)
	}
	return string(o.xor(raw)), nil
}
