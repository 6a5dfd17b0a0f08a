// Package calldata implements the GenLayer calldata encoding used for
// contract method invocations and view results.
//
// Every value starts with a ULEB128 integer whose low three bits carry the
// type tag and whose remaining bits carry a type-specific payload (the value
// itself, a length, or a special constant).
package calldata

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
)

const (
	typeSpecial = 0
	typePInt    = 1
	typeNInt    = 2
	typeBytes   = 3
	typeStr     = 4
	typeArr     = 5
	typeMap     = 6

	specialNull  = 0
	specialFalse = 1
	specialTrue  = 2
	specialAddr  = 3
)

var (
	ErrTruncated   = errors.New("calldata: truncated input")
	ErrTrailing    = errors.New("calldata: trailing bytes")
	ErrUnsupported = errors.New("calldata: unsupported value")
)

// MakeCalldataObject builds the invocation object for method with positional
// args and keyword args. Empty parts are omitted; a deployment passes an empty
// method.
func MakeCalldataObject(method string, args []any, kwargs map[string]any) map[string]any {
	obj := make(map[string]any, 3)
	if method != "" {
		obj["method"] = method
	}
	if len(args) > 0 {
		obj["args"] = args
	}
	if len(kwargs) > 0 {
		obj["kwargs"] = kwargs
	}
	return obj
}

// Encode serializes v. Supported values are nil, bool, signed and unsigned
// integers, *big.Int, string, []byte, common.Address, slices, arrays and maps
// with string keys.
func Encode(v any) ([]byte, error) {
	var out []byte
	if err := encodeValue(&out, reflect.ValueOf(v)); err != nil {
		return nil, err
	}
	return out, nil
}

var (
	bigIntType  = reflect.TypeOf((*big.Int)(nil))
	addressType = reflect.TypeOf(common.Address{})
	bytesType   = reflect.TypeOf([]byte(nil))
)

func encodeValue(out *[]byte, rv reflect.Value) error {
	if !rv.IsValid() {
		writeSpecial(out, specialNull)
		return nil
	}

	switch rv.Type() {
	case bigIntType:
		if rv.IsNil() {
			writeSpecial(out, specialNull)
			return nil
		}
		writeInt(out, rv.Interface().(*big.Int))
		return nil
	case addressType:
		writeSpecial(out, specialAddr)
		addr := rv.Interface().(common.Address)
		*out = append(*out, addr.Bytes()...)
		return nil
	case bytesType:
		b := rv.Bytes()
		writeNumWithType(out, big.NewInt(int64(len(b))), typeBytes)
		*out = append(*out, b...)
		return nil
	}

	switch rv.Kind() {
	case reflect.Interface, reflect.Pointer:
		if rv.IsNil() {
			writeSpecial(out, specialNull)
			return nil
		}
		return encodeValue(out, rv.Elem())
	case reflect.Bool:
		if rv.Bool() {
			writeSpecial(out, specialTrue)
		} else {
			writeSpecial(out, specialFalse)
		}
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		writeInt(out, big.NewInt(rv.Int()))
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		writeInt(out, new(big.Int).SetUint64(rv.Uint()))
		return nil
	case reflect.String:
		s := rv.String()
		if !utf8.ValidString(s) {
			return fmt.Errorf("%w: string is not valid utf-8", ErrUnsupported)
		}
		writeNumWithType(out, big.NewInt(int64(len(s))), typeStr)
		*out = append(*out, s...)
		return nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(b), rv)
			writeNumWithType(out, big.NewInt(int64(len(b))), typeBytes)
			*out = append(*out, b...)
			return nil
		}
		writeNumWithType(out, big.NewInt(int64(rv.Len())), typeArr)
		for i := 0; i < rv.Len(); i++ {
			if err := encodeValue(out, rv.Index(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("%w: map key type %s", ErrUnsupported, rv.Type().Key())
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		writeNumWithType(out, big.NewInt(int64(len(keys))), typeMap)
		for _, k := range keys {
			writeUleb(out, big.NewInt(int64(len(k))))
			*out = append(*out, k...)
			if err := encodeValue(out, rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key()))); err != nil {
				return err
			}
		}
		return nil
	}

	return fmt.Errorf("%w: %s", ErrUnsupported, rv.Type())
}

func writeSpecial(out *[]byte, code int64) {
	writeNumWithType(out, big.NewInt(code), typeSpecial)
}

func writeInt(out *[]byte, n *big.Int) {
	if n.Sign() >= 0 {
		writeNumWithType(out, n, typePInt)
		return
	}
	// negative n is stored as -n-1
	abs := new(big.Int).Neg(n)
	abs.Sub(abs, big.NewInt(1))
	writeNumWithType(out, abs, typeNInt)
}

func writeNumWithType(out *[]byte, n *big.Int, typ uint) {
	v := new(big.Int).Lsh(n, 3)
	v.Or(v, big.NewInt(int64(typ)))
	writeUleb(out, v)
}

func writeUleb(out *[]byte, n *big.Int) {
	v := new(big.Int).Set(n)
	low := new(big.Int)
	mask := big.NewInt(0x7f)
	for {
		low.And(v, mask)
		b := byte(low.Uint64())
		v.Rsh(v, 7)
		if v.Sign() != 0 {
			*out = append(*out, b|0x80)
			continue
		}
		*out = append(*out, b)
		return
	}
}
