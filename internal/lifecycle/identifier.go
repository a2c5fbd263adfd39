package lifecycle

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/opswatch/coalmine/internal/store"
)

const idLength = 8

var idAlphabet = []byte("abcdefghijklmnopqrstuvwxyz")

// generateIdentifier uniformly samples 8 lowercase letters and retries
// until the result is absent from the store, per spec.md §4.4.
func generateIdentifier(ctx context.Context, st store.Store) (string, error) {
	for {
		id, err := randomID()
		if err != nil {
			return "", err
		}
		if _, err := st.Get(ctx, id); err == store.ErrNotFound {
			return id, nil
		} else if err != nil {
			return "", err
		}
	}
}

func randomID() (string, error) {
	buf := make([]byte, idLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(idAlphabet))))
		if err != nil {
			return "", err
		}
		buf[i] = idAlphabet[n.Int64()]
	}
	return string(buf), nil
}
