// Package delta implements the rolling-hash copy/insert delta format used
// to shrink blob updates in staged-update diffs.
//
// A delta is mostly-ASCII text: a base-64 target length and newline,
// followed by literal segments "<n>:<n bytes>" and copy segments
// "<n>@<offset>,", and terminated by a "<checksum>;" trailer over the
// target bytes. Replaying a delta against its source with Apply yields the
// target exactly.
package delta

import "bytes"

// nHash is the width of the rolling-hash window. Must be a power of two.
const nHash = 16

// searchLimit bounds how many landmark collisions are probed per window.
const searchLimit = 250

const zDigits = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz~"

var digitValue [256]int16

func init() {
	for i := range digitValue {
		digitValue[i] = -1
	}
	for i := 0; i < len(zDigits); i++ {
		digitValue[zDigits[i]] = int16(i)
	}
}

// putInt appends v in base-64 notation, most significant digit first.
// Zero is a single "0".
func putInt(b *bytes.Buffer, v uint32) {
	if v == 0 {
		b.WriteByte('0')
		return
	}
	var scratch [6]byte
	n := 0
	for ; v > 0; v >>= 6 {
		scratch[n] = zDigits[v&0x3f]
		n++
	}
	for i := n - 1; i >= 0; i-- {
		b.WriteByte(scratch[i])
	}
}

// digitCount returns the number of base-64 digits putInt emits for v.
func digitCount(v int) int {
	n := 1
	for x := 64; v >= x; x *= 64 {
		n++
	}
	return n
}

// Checksum returns the 32-bit checksum embedded in the delta trailer.
// Four byte-lane sums are folded together before the final 1-3 byte tail
// flows into the low lane; the arithmetic must not be reordered, replays
// bit-match against it.
func Checksum(z []byte) uint32 {
	var sum0, sum1, sum2, sum3 uint32
	n := len(z)
	p := 0
	for n >= 16 {
		sum0 += uint32(z[p]) + uint32(z[p+4]) + uint32(z[p+8]) + uint32(z[p+12])
		sum1 += uint32(z[p+1]) + uint32(z[p+5]) + uint32(z[p+9]) + uint32(z[p+13])
		sum2 += uint32(z[p+2]) + uint32(z[p+6]) + uint32(z[p+10]) + uint32(z[p+14])
		sum3 += uint32(z[p+3]) + uint32(z[p+7]) + uint32(z[p+11]) + uint32(z[p+15])
		p += 16
		n -= 16
	}
	for n >= 4 {
		sum0 += uint32(z[p])
		sum1 += uint32(z[p+1])
		sum2 += uint32(z[p+2])
		sum3 += uint32(z[p+3])
		p += 4
		n -= 4
	}
	sum3 += sum2<<8 + sum1<<16 + sum0<<24
	switch n {
	case 3:
		sum3 += uint32(z[p+2]) << 8
		fallthrough
	case 2:
		sum3 += uint32(z[p+1]) << 16
		fallthrough
	case 1:
		sum3 += uint32(z[p]) << 24
	}
	return sum3
}

// rollHash is a 16-byte circular window with two 16-bit running sums. The
// 32-bit hash is a|b<<16 where a sums the window bytes and b weights each
// byte by its distance from the window end.
type rollHash struct {
	a, b uint16
	i    int
	z    [nHash]byte
}

func (h *rollHash) init(z []byte) {
	var a, b uint16
	for i := 0; i < nHash; i++ {
		a += uint16(z[i])
		b += a
	}
	copy(h.z[:], z[:nHash])
	h.a, h.b, h.i = a, b, 0
}

// next slides the window forward by one byte.
func (h *rollHash) next(c byte) {
	old := uint16(h.z[h.i])
	h.z[h.i] = c
	h.i = (h.i + 1) & (nHash - 1)
	h.a = h.a - old + uint16(c)
	h.b = h.b - nHash*old + h.a
}

func (h *rollHash) value() uint32 {
	return uint32(h.a) | uint32(h.b)<<16
}

// Encode produces a delta that transforms src into target.
func Encode(src, target []byte) []byte {
	var b bytes.Buffer
	b.Grow(len(target) + 60)
	putInt(&b, uint32(len(target)))
	b.WriteByte('\n')

	// A source shorter than one hash window has no landmarks; emit the
	// whole target as a single literal.
	if len(src) <= nHash {
		putInt(&b, uint32(len(target)))
		b.WriteByte(':')
		b.Write(target)
		putInt(&b, Checksum(target))
		b.WriteByte(';')
		return b.Bytes()
	}

	// Index the source: one landmark per non-overlapping window, with a
	// collision chain for buckets holding more than one window.
	nBlock := len(src) / nHash
	landmark := make([]int, nBlock)
	collide := make([]int, nBlock)
	for i := 0; i < nBlock; i++ {
		landmark[i] = -1
		collide[i] = -1
	}
	var h rollHash
	for i := 0; i < len(src)-nHash; i += nHash {
		h.init(src[i:])
		hv := int(h.value() % uint32(nBlock))
		collide[i/nHash] = landmark[hv]
		landmark[hv] = i / nHash
	}

	base := 0
	for base+nHash < len(target) {
		bestCnt, bestOfst, bestLitsz := 0, 0, 0
		h.init(target[base:])
		i := 0 // trying to match a landmark against target[base+i]
		for {
			limit := searchLimit
			hv := int(h.value() % uint32(nBlock))
			for iBlock := landmark[hv]; iBlock >= 0 && limit > 0; iBlock = collide[iBlock] {
				limit--
				iSrc := iBlock * nHash

				// Extend the candidate match forwards from the block
				// start, then backwards, staying inside both buffers and
				// after the part of the target already emitted.
				j := 0
				for x, y := iSrc, base+i; x < len(src) && y < len(target); x, y = x+1, y+1 {
					if src[x] != target[y] {
						break
					}
					j++
				}
				j--
				k := 1
				for ; k < iSrc && k <= i; k++ {
					if src[iSrc-k] != target[base+i-k] {
						break
					}
				}
				k--

				ofst := iSrc - k
				cnt := j + k + 1
				litsz := i - k // literal bytes needed before the copy
				// Encoding overhead of the literal and copy commands, not
				// counting the literal text itself.
				sz := digitCount(litsz) + digitCount(cnt) + digitCount(ofst) + 3
				if cnt >= sz && cnt > bestCnt {
					bestCnt, bestOfst, bestLitsz = cnt, ofst, litsz
				}
			}

			if bestCnt > 0 {
				if bestLitsz > 0 {
					putInt(&b, uint32(bestLitsz))
					b.WriteByte(':')
					b.Write(target[base : base+bestLitsz])
					base += bestLitsz
				}
				base += bestCnt
				putInt(&b, uint32(bestCnt))
				b.WriteByte('@')
				putInt(&b, uint32(bestOfst))
				b.WriteByte(',')
				break
			}

			if base+i+nHash >= len(target) {
				// End of the target with no match; emit the remainder as
				// one literal.
				putInt(&b, uint32(len(target)-base))
				b.WriteByte(':')
				b.Write(target[base:])
				base = len(target)
				break
			}

			h.next(target[base+i+nHash])
			i++
		}
	}

	if base < len(target) {
		putInt(&b, uint32(len(target)-base))
		b.WriteByte(':')
		b.Write(target[base:])
	}
	putInt(&b, Checksum(target))
	b.WriteByte(';')
	return b.Bytes()
}
