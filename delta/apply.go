package delta

import (
	"errors"
	"fmt"
)

var (
	errCorrupt  = errors.New("corrupt delta")
	errChecksum = errors.New("delta checksum mismatch")
)

type reader struct {
	z   []byte
	pos int
}

func (r *reader) haveBytes() bool {
	return r.pos < len(r.z)
}

func (r *reader) getByte() (byte, error) {
	if !r.haveBytes() {
		return 0, errCorrupt
	}
	c := r.z[r.pos]
	r.pos++
	return c, nil
}

// getInt reads a base-64 integer, leaving pos on the first non-digit.
func (r *reader) getInt() uint32 {
	var v uint32
	for r.haveBytes() {
		d := digitValue[r.z[r.pos]]
		if d < 0 {
			break
		}
		v = v<<6 + uint32(d)
		r.pos++
	}
	return v
}

// Apply replays a delta produced by Encode against src and returns the
// reconstructed target. The embedded checksum and length are verified.
func Apply(src, delta []byte) ([]byte, error) {
	r := reader{z: delta}

	total := int(r.getInt())
	if c, err := r.getByte(); err != nil || c != '\n' {
		return nil, fmt.Errorf("%w: size integer not terminated by newline", errCorrupt)
	}

	out := make([]byte, 0, total)
	for r.haveBytes() {
		cnt := int(r.getInt())
		op, err := r.getByte()
		if err != nil {
			return nil, err
		}
		switch op {
		case '@':
			ofst := int(r.getInt())
			if c, err := r.getByte(); err != nil || c != ',' {
				return nil, fmt.Errorf("%w: copy command not terminated by comma", errCorrupt)
			}
			if ofst+cnt > len(src) || ofst+cnt < ofst {
				return nil, fmt.Errorf("%w: copy extends past end of input", errCorrupt)
			}
			out = append(out, src[ofst:ofst+cnt]...)
		case ':':
			if r.pos+cnt > len(delta) {
				return nil, fmt.Errorf("%w: insert count exceeds size of delta", errCorrupt)
			}
			out = append(out, delta[r.pos:r.pos+cnt]...)
			r.pos += cnt
		case ';':
			if uint32(cnt) != Checksum(out) {
				return nil, errChecksum
			}
			if len(out) != total {
				return nil, fmt.Errorf("%w: generated size does not match predicted size", errCorrupt)
			}
			return out, nil
		default:
			return nil, fmt.Errorf("%w: unknown delta operator", errCorrupt)
		}
	}
	return nil, fmt.Errorf("%w: unterminated delta", errCorrupt)
}
