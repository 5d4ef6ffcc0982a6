package protocol

// IsValidKey reports whether key satisfies the protocol constraints:
// 1-250 bytes, no control characters, no whitespace. Keys are byte sequences
// and need not be valid text.
func IsValidKey(key string) bool {
	if len(key) < MinKeyLength || len(key) > MaxKeyLength {
		return false
	}

	for i := 0; i < len(key); i++ {
		if key[i] <= 32 || key[i] == 127 {
			return false
		}
	}

	return true
}

// ValidateKey checks a key and returns an InvalidArgumentError describing the
// first violation found, or nil.
func ValidateKey(key string) error {
	if len(key) < MinKeyLength {
		return &InvalidArgumentError{Message: "key is empty"}
	}
	if len(key) > MaxKeyLength {
		return &InvalidArgumentError{Message: "key exceeds maximum length of 250 bytes"}
	}
	for i := 0; i < len(key); i++ {
		if key[i] <= 32 || key[i] == 127 {
			return &InvalidArgumentError{Message: "key contains whitespace or control characters"}
		}
	}
	return nil
}
