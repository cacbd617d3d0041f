package sqlite

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/garyjia/pe-report-extractor/internal/record"
)

// encodeRecord writes rec as msgpack, walking maps in insertion order so the
// decoded record renders exactly like the one that was stored.
func encodeRecord(rec record.Value) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := encodeValue(enc, rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(enc *msgpack.Encoder, v record.Value) error {
	switch v.Kind() {
	case record.KindString:
		s, _ := v.AsString()
		return enc.EncodeString(s)
	case record.KindNumber:
		n, _ := v.AsNumber()
		return enc.EncodeFloat64(n)
	case record.KindBool:
		b, _ := v.AsBool()
		return enc.EncodeBool(b)
	case record.KindList:
		items, _ := v.AsList()
		if err := enc.EncodeArrayLen(len(items)); err != nil {
			return err
		}
		for _, item := range items {
			if err := encodeValue(enc, item); err != nil {
				return err
			}
		}
		return nil
	case record.KindMap:
		m, _ := v.AsMap()
		keys := m.Keys()
		if err := enc.EncodeMapLen(len(keys)); err != nil {
			return err
		}
		for _, k := range keys {
			if err := enc.EncodeString(k); err != nil {
				return err
			}
			child, _ := m.Get(k)
			if err := encodeValue(enc, child); err != nil {
				return err
			}
		}
		return nil
	default:
		return enc.EncodeNil()
	}
}

func decodeRecord(data []byte) (record.Value, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	v, err := decodeValue(dec)
	if err != nil {
		return record.Value{}, fmt.Errorf("failed to decode cached record: %w", err)
	}
	return v, nil
}

func decodeValue(dec *msgpack.Decoder) (record.Value, error) {
	code, err := dec.PeekCode()
	if err != nil {
		return record.Value{}, err
	}

	switch {
	case code == msgpcode.Nil:
		return record.Null(), dec.DecodeNil()
	case code == msgpcode.True || code == msgpcode.False:
		b, err := dec.DecodeBool()
		return record.Bool(b), err
	case msgpcode.IsString(code):
		s, err := dec.DecodeString()
		return record.String(s), err
	case msgpcode.IsFixedArray(code) || code == msgpcode.Array16 || code == msgpcode.Array32:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return record.Value{}, err
		}
		items := make([]record.Value, 0, max(n, 0))
		for i := 0; i < n; i++ {
			item, err := decodeValue(dec)
			if err != nil {
				return record.Value{}, err
			}
			items = append(items, item)
		}
		return record.List(items...), nil
	case msgpcode.IsFixedMap(code) || code == msgpcode.Map16 || code == msgpcode.Map32:
		n, err := dec.DecodeMapLen()
		if err != nil {
			return record.Value{}, err
		}
		m := record.NewMap()
		for i := 0; i < n; i++ {
			k, err := dec.DecodeString()
			if err != nil {
				return record.Value{}, err
			}
			child, err := decodeValue(dec)
			if err != nil {
				return record.Value{}, err
			}
			m.Set(k, child)
		}
		return record.MapValue(m), nil
	default:
		n, err := dec.DecodeFloat64()
		return record.Number(n), err
	}
}
