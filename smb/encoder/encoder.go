// Package encoder implements the struct-tag driven binary wire codec used
// across the SMB2 packet structures, in the style expected by the teacher's
// original SMB1 negotiate structures (encoder.Marshal/encoder.Unmarshal).
//
// A struct field may carry an `smb:"..."` tag with comma-separated options:
//
//	fixed:N   - the field is a []byte/string of exactly N bytes on the wire
//	skip      - the field is ignored for marshalling (computed separately)
//
// Any other option is ignored; there is no count, length or offset linkage
// between sibling fields.
//
// Types implementing encoding.BinaryMarshaler/BinaryUnmarshaler with the
// extended (meta *Metadata) signature used by this package are delegated to
// directly, matching how SMB1NegotiateReq/SMB1NegotiateRes hand-roll their
// own (Un)MarshalBinary.
package encoder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Metadata carries parent-structure context down into nested (Un)MarshalBinary
// calls (e.g. the structure's own byte-length so a sibling field can be
// self-referential the way ByteCount fields are in SMB).
type Metadata struct {
	Lens map[string]int
	Tag  reflect.StructTag
}

// BinaryMarshallable is implemented by types with bespoke wire encoding.
type BinaryMarshallable interface {
	MarshalBinary(meta *Metadata) ([]byte, error)
	UnmarshalBinary(buf []byte, meta *Metadata) error
}

type fieldTag struct {
	fixed int
	hasFixed bool
	skip bool
}

func parseTag(tag reflect.StructTag) fieldTag {
	var ft fieldTag
	raw, ok := tag.Lookup("smb")
	if !ok {
		return ft
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "skip":
			ft.skip = true
		case strings.HasPrefix(part, "fixed:"):
			n, err := strconv.Atoi(strings.TrimPrefix(part, "fixed:"))
			if err == nil {
				ft.fixed = n
				ft.hasFixed = true
			}
		}
	}
	return ft
}

// Marshal encodes v (a struct, pointer to struct, or BinaryMarshallable) to
// its little-endian wire representation.
func Marshal(v interface{}) ([]byte, error) {
	return marshalValue(reflect.ValueOf(v), &Metadata{Lens: map[string]int{}})
}

func marshalValue(v reflect.Value, meta *Metadata) ([]byte, error) {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}

	if v.CanInterface() {
		if bm, ok := v.Interface().(BinaryMarshallable); ok {
			return bm.MarshalBinary(meta)
		}
		if v.CanAddr() {
			if bm, ok := v.Addr().Interface().(BinaryMarshallable); ok {
				return bm.MarshalBinary(meta)
			}
		}
	}

	switch v.Kind() {
	case reflect.Struct:
		return marshalStruct(v, meta)
	case reflect.Slice, reflect.Array:
		return marshalSlice(v, meta)
	default:
		return marshalScalar(v)
	}
}

func marshalStruct(v reflect.Value, meta *Metadata) ([]byte, error) {
	buf := new(bytes.Buffer)
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" { // unexported
			continue
		}
		ft := parseTag(sf.Tag)
		if ft.skip {
			continue
		}
		fv := v.Field(i)
		b, err := marshalValue(fv, &Metadata{Lens: meta.Lens, Tag: sf.Tag})
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", sf.Name, err)
		}
		if ft.hasFixed && len(b) != ft.fixed {
			padded := make([]byte, ft.fixed)
			copy(padded, b)
			b = padded
		}
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

func marshalSlice(v reflect.Value, meta *Metadata) ([]byte, error) {
	if v.Kind() == reflect.Array && v.Type().Elem().Kind() == reflect.Uint8 {
		b := make([]byte, v.Len())
		reflect.Copy(reflect.ValueOf(b), v)
		return b, nil
	}
	if v.Type().Elem().Kind() == reflect.Uint8 {
		b, ok := v.Interface().([]byte)
		if ok {
			return b, nil
		}
	}
	buf := new(bytes.Buffer)
	for i := 0; i < v.Len(); i++ {
		b, err := marshalValue(v.Index(i), meta)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

func marshalScalar(v reflect.Value) ([]byte, error) {
	switch v.Kind() {
	case reflect.String:
		return []byte(v.String()), nil
	case reflect.Uint8:
		return []byte{byte(v.Uint())}, nil
	case reflect.Uint16:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(v.Uint()))
		return b, nil
	case reflect.Uint32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(v.Uint()))
		return b, nil
	case reflect.Uint64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v.Uint())
		return b, nil
	case reflect.Int16:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(v.Int()))
		return b, nil
	case reflect.Int32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(v.Int()))
		return b, nil
	case reflect.Bool:
		if v.Bool() {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	default:
		return nil, fmt.Errorf("encoder: unsupported scalar kind %s", v.Kind())
	}
}

// Unmarshal decodes buf into v (a pointer to struct or BinaryMarshallable).
func Unmarshal(buf []byte, v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("encoder: Unmarshal requires a non-nil pointer")
	}
	if bm, ok := v.(BinaryMarshallable); ok {
		return bm.UnmarshalBinary(buf, &Metadata{Lens: map[string]int{}})
	}
	_, err := unmarshalValue(buf, rv.Elem(), &Metadata{Lens: map[string]int{}})
	return err
}

// unmarshalValue returns the number of bytes consumed.
func unmarshalValue(buf []byte, v reflect.Value, meta *Metadata) (int, error) {
	if v.CanAddr() {
		if bm, ok := v.Addr().Interface().(BinaryMarshallable); ok {
			if err := bm.UnmarshalBinary(buf, meta); err != nil {
				return 0, err
			}
			return len(buf), nil
		}
	}

	switch v.Kind() {
	case reflect.Struct:
		return unmarshalStruct(buf, v, meta)
	case reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			n := v.Len()
			if len(buf) < n {
				return 0, fmt.Errorf("encoder: short buffer for fixed array of %d", n)
			}
			reflect.Copy(v, reflect.ValueOf(buf[:n]))
			return n, nil
		}
		return 0, fmt.Errorf("encoder: unsupported array element kind %s", v.Type().Elem().Kind())
	default:
		return unmarshalScalar(buf, v)
	}
}

func unmarshalStruct(buf []byte, v reflect.Value, meta *Metadata) (int, error) {
	t := v.Type()
	off := 0
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue
		}
		ft := parseTag(sf.Tag)
		if ft.skip {
			continue
		}
		fv := v.Field(i)
		if ft.hasFixed {
			if off+ft.fixed > len(buf) {
				return 0, fmt.Errorf("encoder: short buffer for fixed field %s (%d bytes)", sf.Name, ft.fixed)
			}
			chunk := buf[off : off+ft.fixed]
			switch fv.Kind() {
			case reflect.Slice:
				b := make([]byte, ft.fixed)
				copy(b, chunk)
				fv.SetBytes(b)
			case reflect.String:
				fv.SetString(string(bytes.TrimRight(chunk, "\x00")))
			default:
				n, err := unmarshalValue(chunk, fv, &Metadata{Lens: meta.Lens, Tag: sf.Tag})
				if err != nil {
					return 0, err
				}
				_ = n
			}
			off += ft.fixed
			continue
		}
		n, err := unmarshalValue(buf[off:], fv, &Metadata{Lens: meta.Lens, Tag: sf.Tag})
		if err != nil {
			return 0, fmt.Errorf("field %s: %w", sf.Name, err)
		}
		off += n
	}
	return off, nil
}

func unmarshalScalar(buf []byte, v reflect.Value) (int, error) {
	switch v.Kind() {
	case reflect.Uint8:
		if len(buf) < 1 {
			return 0, fmt.Errorf("encoder: short buffer for uint8")
		}
		v.SetUint(uint64(buf[0]))
		return 1, nil
	case reflect.Uint16:
		if len(buf) < 2 {
			return 0, fmt.Errorf("encoder: short buffer for uint16")
		}
		v.SetUint(uint64(binary.LittleEndian.Uint16(buf)))
		return 2, nil
	case reflect.Uint32:
		if len(buf) < 4 {
			return 0, fmt.Errorf("encoder: short buffer for uint32")
		}
		v.SetUint(uint64(binary.LittleEndian.Uint32(buf)))
		return 4, nil
	case reflect.Uint64:
		if len(buf) < 8 {
			return 0, fmt.Errorf("encoder: short buffer for uint64")
		}
		v.SetUint(binary.LittleEndian.Uint64(buf))
		return 8, nil
	case reflect.Int16:
		if len(buf) < 2 {
			return 0, fmt.Errorf("encoder: short buffer for int16")
		}
		v.SetInt(int64(int16(binary.LittleEndian.Uint16(buf))))
		return 2, nil
	case reflect.Int32:
		if len(buf) < 4 {
			return 0, fmt.Errorf("encoder: short buffer for int32")
		}
		v.SetInt(int64(int32(binary.LittleEndian.Uint32(buf))))
		return 4, nil
	case reflect.Bool:
		if len(buf) < 1 {
			return 0, fmt.Errorf("encoder: short buffer for bool")
		}
		v.SetBool(buf[0] != 0)
		return 1, nil
	default:
		return 0, fmt.Errorf("encoder: unsupported scalar kind %s", v.Kind())
	}
}
