package configs

import (
	"bytes"

	"github.com/BurntSushi/toml"
)

// Decode .
func Decode(raw string, conf *Config) (err error) {
	_, err = toml.Decode(raw, conf)
	return
}

// DecodeFile .
func DecodeFile(file string, conf *Config) (err error) {
	_, err = toml.DecodeFile(file, conf)
	return
}

// Encode .
func Encode(conf *Config) (string, error) {
	var buf bytes.Buffer
	var enc = toml.NewEncoder(&buf)

	if err := enc.Encode(conf); err != nil {
		return "", err
	}

	return buf.String(), nil
}
