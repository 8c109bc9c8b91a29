package common

// WipeByteArray zeroes b in place. Used for PIN buffers read from the terminal.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
