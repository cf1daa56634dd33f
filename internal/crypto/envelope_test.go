package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func randBytes(t testing.TB, n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	return b
}

func TestSealAuthenticatedRoundTrip(t *testing.T) {
	master := randBytes(t, KeySize)
	for _, n := range []int{0, 1, 15, 16, 17, 4096} {
		pt := randBytes(t, n)
		ct, err := SealAuthenticated(master, pt)
		require.NoError(t, err)
		require.True(t, IsAuthenticated(ct), "length %d", len(ct))

		out, err := OpenAuthenticated(master, ct)
		require.NoError(t, err)
		require.True(t, bytes.Equal(pt, out), "plaintext mismatch for %d bytes", n)
	}
}

func TestSealAuthenticatedTagTamper(t *testing.T) {
	master := randBytes(t, KeySize)
	ct, err := SealAuthenticated(master, []byte("hello"))
	require.NoError(t, err)

	for _, idx := range []int{1, 1 + IVSize, len(ct) - 1} {
		mut := append([]byte(nil), ct...)
		mut[idx] ^= 0xFF
		_, err := OpenAuthenticated(master, mut)
		require.ErrorIs(t, err, ErrInvalidMAC, "mutation at %d", idx)
	}
}

func TestSealAuthenticatedWrongKey(t *testing.T) {
	ct, err := SealAuthenticated(randBytes(t, KeySize), []byte("hello"))
	require.NoError(t, err)

	_, err = OpenAuthenticated(randBytes(t, KeySize), ct)
	require.ErrorIs(t, err, ErrInvalidMAC)
}

func TestSealAuthenticatedTruncation(t *testing.T) {
	master := randBytes(t, KeySize)
	ct, err := SealAuthenticated(master, []byte("hello"))
	require.NoError(t, err)

	_, err = OpenAuthenticated(master, ct[:len(ct)-1])
	require.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestSealAuthenticatedUniqueIV(t *testing.T) {
	master := randBytes(t, KeySize)
	ct1, err := SealAuthenticated(master, []byte("data"))
	require.NoError(t, err)
	ct2, err := SealAuthenticated(master, []byte("data"))
	require.NoError(t, err)

	require.NotEqual(t, ct1[1:1+IVSize], ct2[1:1+IVSize], "expected distinct ivs")
	require.NotEqual(t, ct1, ct2)
}

func TestSessionIVCiphertextIsNotAuthenticatedShape(t *testing.T) {
	key := randBytes(t, KeySize)
	iv := make([]byte, IVSize)
	for _, n := range []int{0, 48, 49, 100} {
		ct, err := SealCBC(key, iv, randBytes(t, n))
		require.NoError(t, err)
		require.False(t, IsAuthenticated(ct))
	}
}

func FuzzAuthenticatedRejectMutations(f *testing.F) {
	f.Add([]byte("hello"))
	f.Add([]byte(""))
	f.Fuzz(func(t *testing.T, pt []byte) {
		master := randBytes(t, KeySize)
		ct, err := SealAuthenticated(master, pt)
		if err != nil {
			t.Fatalf("seal: %v", err)
		}
		if _, err := OpenAuthenticated(master, ct); err != nil {
			t.Fatalf("open baseline: %v", err)
		}
		mut := append([]byte(nil), ct...)
		idx := 1 + len(pt)%(len(mut)-1)
		mut[idx] ^= 0xFF
		if _, err := OpenAuthenticated(master, mut); err == nil {
			t.Fatalf("mutation at %d succeeded", idx)
		}
	})
}

func BenchmarkSealAuthenticated1KB(b *testing.B) {
	master := randBytes(b, KeySize)
	pt := randBytes(b, 1024)
	b.SetBytes(int64(len(pt)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := SealAuthenticated(master, pt); err != nil {
			b.Fatalf("seal failed: %v", err)
		}
	}
}

func BenchmarkOpenAuthenticated1KB(b *testing.B) {
	master := randBytes(b, KeySize)
	pt := randBytes(b, 1024)
	ct, err := SealAuthenticated(master, pt)
	if err != nil {
		b.Fatalf("seal failed: %v", err)
	}
	b.SetBytes(int64(len(pt)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := OpenAuthenticated(master, ct); err != nil {
			b.Fatalf("open failed: %v", err)
		}
	}
}
