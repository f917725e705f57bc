package delta

import (
	"bytes"
	"math/rand"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randBytes(r *rand.Rand, n int) []byte {
	b := make([]byte, n)
	r.Read(b)
	return b
}

func TestEncodeShortSource(t *testing.T) {
	// A source shorter than one hash window forces the single-literal
	// fast path.
	d := Encode([]byte("abc"), []byte("hello"))
	assert.True(t, bytes.HasPrefix(d, []byte("5\n5:hello")))
	assert.True(t, bytes.HasSuffix(d, []byte(";")))

	out, err := Apply([]byte("abc"), d)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), out)
}

func TestEncodeEmptyTarget(t *testing.T) {
	d := Encode([]byte("abc"), nil)
	assert.Equal(t, "0\n0:0;", string(d))

	out, err := Apply([]byte("abc"), d)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestEncodeSelfMatch(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	src := randBytes(r, 256)

	d := Encode(src, src)
	// One copy command covering the whole target: 256 is "40" in the
	// delta's base-64 notation.
	assert.Regexp(t, regexp.MustCompile(`^40\n40@0,[0-9A-Za-z_~]+;$`), string(d))
	assert.Less(t, len(d), 20)

	out, err := Apply(src, d)
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	big := randBytes(r, 4096)
	mutated := append([]byte(nil), big...)
	mutated[100] = ^mutated[100]
	mutated[2048] = ^mutated[2048]
	inserted := append(append(append([]byte(nil), big[:1000]...), []byte("wedge")...), big[1000:]...)

	cases := []struct {
		name        string
		src, target []byte
	}{
		{"empty both", nil, nil},
		{"empty source", nil, randBytes(r, 100)},
		{"empty target", big, nil},
		{"short source", []byte("abc"), []byte("hello")},
		{"identical", big, big},
		{"pointwise mutation", big, mutated},
		{"insertion", big, inserted},
		{"unrelated", big, randBytes(r, 3000)},
		{"shrunk", big, big[512:1024]},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Encode(tc.src, tc.target)
			out, err := Apply(tc.src, d)
			require.NoError(t, err)
			assert.Equal(t, append([]byte(nil), tc.target...), append([]byte(nil), out...))
		})
	}
}

func TestRoundTripShrinks(t *testing.T) {
	// A point mutation of a large blob must encode far smaller than the
	// blob itself; this is what makes staged blob updates worthwhile.
	r := rand.New(rand.NewSource(3))
	src := randBytes(r, 4096)
	target := append([]byte(nil), src...)
	target[500] = ^target[500]

	d := Encode(src, target)
	assert.Less(t, len(d), len(target)/10)
}

func TestApplyChecksumMismatch(t *testing.T) {
	d := Encode([]byte("abc"), []byte("hello world"))
	d[4] ^= 0x01 // corrupt a literal byte
	_, err := Apply([]byte("abc"), d)
	assert.ErrorIs(t, err, errChecksum)
}

func TestApplyCorruptCopy(t *testing.T) {
	_, err := Apply([]byte("abc"), []byte("5\nz@Q,0;"))
	assert.Error(t, err)
}

func TestPutIntGetInt(t *testing.T) {
	for _, v := range []uint32{0, 1, 9, 10, 63, 64, 4095, 4096, 1 << 20, 1<<31 + 12345, 0xffffffff} {
		var b bytes.Buffer
		putInt(&b, v)
		r := reader{z: b.Bytes()}
		assert.Equal(t, v, r.getInt())
		assert.False(t, r.haveBytes())
	}
}

func TestChecksumTailFold(t *testing.T) {
	// The final 1-3 bytes fold into the low lane with byte shifts; the
	// lengths around the 4-byte boundary all hash differently.
	seen := map[uint32]bool{}
	z := []byte("abcdefg")
	for n := 0; n <= len(z); n++ {
		seen[Checksum(z[:n])] = true
	}
	assert.Len(t, seen, len(z)+1)
}
