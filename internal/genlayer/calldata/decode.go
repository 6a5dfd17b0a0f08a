package calldata

import (
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
)

// Decode parses a single calldata value. Integers decode to *big.Int,
// strings to string, bytes to []byte, addresses to common.Address, arrays to
// []any and maps to map[string]any.
func Decode(data []byte) (any, error) {
	d := decoder{buf: data}
	v, err := d.value()
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.buf) {
		return nil, fmt.Errorf("%w: %d unread", ErrTrailing, len(d.buf)-d.pos)
	}
	return v, nil
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) uleb() (*big.Int, error) {
	out := new(big.Int)
	var shift uint
	for {
		if d.pos >= len(d.buf) {
			return nil, ErrTruncated
		}
		b := d.buf[d.pos]
		d.pos++
		chunk := new(big.Int).SetUint64(uint64(b & 0x7f))
		out.Or(out, chunk.Lsh(chunk, shift))
		if b&0x80 == 0 {
			return out, nil
		}
		shift += 7
	}
}

func (d *decoder) take(n *big.Int) ([]byte, error) {
	if !n.IsInt64() || n.Int64() > int64(len(d.buf)-d.pos) {
		return nil, ErrTruncated
	}
	l := int(n.Int64())
	b := d.buf[d.pos : d.pos+l]
	d.pos += l
	return b, nil
}

func (d *decoder) value() (any, error) {
	code, err := d.uleb()
	if err != nil {
		return nil, err
	}
	typ := new(big.Int).And(code, big.NewInt(7)).Int64()
	payload := new(big.Int).Rsh(code, 3)

	switch typ {
	case typeSpecial:
		if !payload.IsInt64() {
			return nil, fmt.Errorf("calldata: unknown special %s", payload)
		}
		switch payload.Int64() {
		case specialNull:
			return nil, nil
		case specialFalse:
			return false, nil
		case specialTrue:
			return true, nil
		case specialAddr:
			b, err := d.take(big.NewInt(common.AddressLength))
			if err != nil {
				return nil, err
			}
			return common.BytesToAddress(b), nil
		}
		return nil, fmt.Errorf("calldata: unknown special %s", payload)
	case typePInt:
		return payload, nil
	case typeNInt:
		n := new(big.Int).Neg(payload)
		return n.Sub(n, big.NewInt(1)), nil
	case typeBytes:
		b, err := d.take(payload)
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), b...), nil
	case typeStr:
		b, err := d.take(payload)
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(b) {
			return nil, fmt.Errorf("calldata: invalid utf-8 string")
		}
		return string(b), nil
	case typeArr:
		if !payload.IsInt64() || payload.Int64() > int64(len(d.buf)-d.pos) {
			return nil, ErrTruncated
		}
		arr := make([]any, 0, payload.Int64())
		for i := int64(0); i < payload.Int64(); i++ {
			v, err := d.value()
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case typeMap:
		if !payload.IsInt64() || payload.Int64() > int64(len(d.buf)-d.pos) {
			return nil, ErrTruncated
		}
		m := make(map[string]any, payload.Int64())
		for i := int64(0); i < payload.Int64(); i++ {
			klen, err := d.uleb()
			if err != nil {
				return nil, err
			}
			kb, err := d.take(klen)
			if err != nil {
				return nil, err
			}
			v, err := d.value()
			if err != nil {
				return nil, err
			}
			m[string(kb)] = v
		}
		return m, nil
	}
	return nil, fmt.Errorf("calldata: unknown type tag %d", typ)
}
