package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	pepperMu sync.Mutex
	pepper   string
)

// LoadPepper reads the password pepper from file, generating and saving a
// new one when the file does not exist yet. Call it once at startup before
// any password is hashed.
func LoadPepper(file string) error {
	file = filepath.Clean(file)
	if err := os.MkdirAll(filepath.Dir(file), 0o750); err != nil {
		return err
	}

	data, err := os.ReadFile(file)
	switch {
	case err == nil:
		setPepper(strings.TrimSpace(string(data)))
		return nil
	case !os.IsNotExist(err):
		return err
	}

	generated, err := newPepper()
	if err != nil {
		return err
	}
	if err := os.WriteFile(file, []byte(generated), 0o600); err != nil {
		return err
	}
	setPepper(generated)
	return nil
}

// GetPepper returns the loaded pepper. Without LoadPepper (tests, tools) a
// process-local pepper is generated on first use.
func GetPepper() string {
	pepperMu.Lock()
	defer pepperMu.Unlock()

	if pepper == "" {
		generated, err := newPepper()
		if err != nil {
			panic("cryptox: cannot generate pepper: " + err.Error())
		}
		pepper = generated
	}
	return pepper
}

func setPepper(p string) {
	pepperMu.Lock()
	defer pepperMu.Unlock()
	pepper = p
}

func newPepper() (string, error) {
	b := make([]byte, keyLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
