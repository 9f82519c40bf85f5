package memzero_test

import (
	"testing"

	"tcncore/internal/util/memzero"
)

func TestZeroAll(t *testing.T) {
	a := []byte{1, 2, 3}
	b := []byte{4}
	memzero.ZeroAll(a, b, nil)
	for _, v := range append(a, b...) {
		if v != 0 {
			t.Fatalf("buffer not wiped: %v %v", a, b)
		}
	}
}
