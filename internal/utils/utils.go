package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

// Die is the unified exit strategy for the CLI layer. Library packages
// return errors; only commands call Die.
func Die(context string, err error) {
	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "🚨 PIGMENT ERROR: %s\n", context)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DETAILS: %v\n", err)
	}
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
	os.Exit(1)
}

// DatasetID creates a deterministic hash for a record file based on its
// path, size, and modification time. Rebuilding a record file changes its
// ID, so a stale index entry never aliases fresh data.
func DatasetID(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	input := fmt.Sprintf("%s-%d-%d", path, info.Size(), info.ModTime().UnixNano())
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:]), nil
}
