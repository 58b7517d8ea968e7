package core

import (
	"regexp"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

const EffectsStatusSuccess = "success"

// Effects is the network report of an executed transaction.
// Raw keeps the original JSON so that it can be handed back to a wallet untouched.
type Effects struct {
	Raw         []byte
	Digest      string
	Status      string
	StatusError string
	// Changed lists the new versions of every object the transaction mutated or created, gas coins included.
	Changed []ObjectRef
}

// Succeeded is false for any status other than "success", a missing one included.
func (e Effects) Succeeded() bool {
	return e.Status == EffectsStatusSuccess
}

var moveAbortRe = regexp.MustCompile(`MoveAbort\(.*,\s*(\d+)\)`)

// AbortCode extracts the Move abort code from a failed status, if there is one.
func (e Effects) AbortCode() (uint64, bool) {
	return ParseAbortCode(e.StatusError)
}

func ParseAbortCode(msg string) (uint64, bool) {
	m := moveAbortRe.FindStringSubmatch(msg)
	if len(m) != 2 {
		return 0, false
	}
	code, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return code, true
}

// ParseEffects decodes transaction effects as returned by a gas station or a fullnode.
func ParseEffects(raw []byte) (Effects, error) {
	effects := Effects{Raw: append([]byte(nil), raw...)}
	d := jx.DecodeBytes(raw)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "transactionDigest":
			s, err := d.Str()
			if err != nil {
				return err
			}
			effects.Digest = s
			return nil
		case "status":
			return decodeStatus(d, &effects)
		case "mutated", "created", "unwrapped":
			return d.Arr(func(d *jx.Decoder) error {
				ref, err := decodeOwnedObjectRef(d)
				if err != nil {
					return err
				}
				effects.Changed = append(effects.Changed, ref)
				return nil
			})
		case "gasObject":
			ref, err := decodeOwnedObjectRef(d)
			if err != nil {
				return err
			}
			effects.Changed = append(effects.Changed, ref)
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return Effects{}, errors.Wrapf(ErrMalformedEffects, "%v", err)
	}
	if effects.Digest == "" {
		return Effects{}, errors.Wrap(ErrMalformedEffects, "missing transactionDigest")
	}
	if effects.Status == "" {
		return Effects{}, errors.Wrap(ErrMalformedEffects, "missing status")
	}
	return effects, nil
}

func decodeStatus(d *jx.Decoder, effects *Effects) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			s, err := d.Str()
			if err != nil {
				return err
			}
			effects.Status = s
			return nil
		case "error":
			if d.Next() == jx.Null {
				return d.Null()
			}
			s, err := d.Str()
			if err != nil {
				return err
			}
			effects.StatusError = s
			return nil
		default:
			return d.Skip()
		}
	})
}

func decodeOwnedObjectRef(d *jx.Decoder) (ObjectRef, error) {
	var ref ObjectRef
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "reference" {
			return d.Skip()
		}
		var err error
		ref, err = DecodeObjectRef(d)
		return err
	})
	return ref, err
}
