package cipher

import (
	"bytes"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - (len(data) % blockSize)
	padded := make([]byte, len(data), len(data)+padding)
	copy(padded, data)
	return append(padded, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	length := len(data)
	if length == 0 || length%blockSize != 0 {
		log.WithField("data_length", length).Debug("pkcs7_bad_length")
		return nil, oops.Errorf("padded data length %d is not a positive multiple of %d", length, blockSize)
	}
	padding := int(data[length-1])
	if padding == 0 || padding > blockSize {
		log.WithField("padding", padding).Debug("pkcs7_invalid_padding")
		return nil, oops.Errorf("invalid padding")
	}
	paddingStart := length - padding
	for i := paddingStart; i < length; i++ {
		if data[i] != byte(padding) {
			log.WithFields(logger.Fields{
				"padding": padding,
				"offset":  i,
			}).Debug("pkcs7_invalid_padding")
			return nil, oops.Errorf("invalid padding")
		}
	}
	return data[:paddingStart], nil
}
