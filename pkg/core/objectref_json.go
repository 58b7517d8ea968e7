package core

import (
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// DecodeObjectRef reads {"objectId": ..., "version": ..., "digest": ...}.
// The version may come as a number or as a decimal string.
func DecodeObjectRef(d *jx.Decoder) (ObjectRef, error) {
	var ref ObjectRef
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "objectId":
			s, err := d.Str()
			if err != nil {
				return err
			}
			ref.ObjectID, err = ParseAddress(s)
			return err
		case "version":
			v, err := decodeUint(d)
			if err != nil {
				return err
			}
			ref.Version = v
			return nil
		case "digest":
			s, err := d.Str()
			if err != nil {
				return err
			}
			ref.Digest, err = ParseObjectDigest(s)
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return ObjectRef{}, errors.Wrap(err, "decode object ref")
	}
	return ref, nil
}

func EncodeObjectRef(e *jx.Encoder, ref ObjectRef) {
	e.ObjStart()
	e.FieldStart("objectId")
	e.Str(ref.ObjectID.String())
	e.FieldStart("version")
	e.UInt64(ref.Version)
	e.FieldStart("digest")
	e.Str(ref.Digest.String())
	e.ObjEnd()
}

func decodeUint(d *jx.Decoder) (uint64, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		return strconv.ParseUint(s, 10, 64)
	}
	return d.UInt64()
}
