package gasstation

import (
	"encoding/base64"
	"time"

	"github.com/go-faster/jx"

	"github.com/iota-community/workshops/pkg/core"
)

type reserveGasResult struct {
	SponsorAddress core.Address
	ReservationID  uint64
	GasCoins       []core.ObjectRef
}

type reserveGasResponse struct {
	Result *reserveGasResult
	Error  string
}

type executeTxResponse struct {
	Effects *core.Effects
	Error   string
}

func encodeReserveGasRequest(budget uint64, lifetime time.Duration) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.ObjStart()
	e.FieldStart("gas_budget")
	e.UInt64(budget)
	e.FieldStart("reserve_duration_secs")
	e.UInt64(uint64(lifetime / time.Second))
	e.ObjEnd()
	return append([]byte(nil), e.Bytes()...)
}

func encodeExecuteTxRequest(s core.SignedSubmission) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.ObjStart()
	e.FieldStart("reservation_id")
	e.UInt64(s.ReservationID)
	e.FieldStart("tx_bytes")
	e.Str(base64.StdEncoding.EncodeToString(s.TxBytes))
	e.FieldStart("user_sig")
	e.Str(s.UserSignature)
	e.ObjEnd()
	return append([]byte(nil), e.Bytes()...)
}

func decodeErrorField(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

func decodeReserveGasResponse(body []byte) (reserveGasResponse, error) {
	var resp reserveGasResponse
	err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "error":
			msg, err := decodeErrorField(d)
			resp.Error = msg
			return err
		case "result":
			if d.Next() == jx.Null {
				return d.Null()
			}
			result, err := decodeReserveGasResult(d)
			if err != nil {
				return err
			}
			resp.Result = &result
			return nil
		default:
			return d.Skip()
		}
	})
	return resp, err
}

func decodeReserveGasResult(d *jx.Decoder) (reserveGasResult, error) {
	var result reserveGasResult
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "sponsor_address":
			s, err := d.Str()
			if err != nil {
				return err
			}
			result.SponsorAddress, err = core.ParseAddress(s)
			return err
		case "reservation_id":
			id, err := d.UInt64()
			result.ReservationID = id
			return err
		case "gas_coins":
			return d.Arr(func(d *jx.Decoder) error {
				ref, err := core.DecodeObjectRef(d)
				if err != nil {
					return err
				}
				result.GasCoins = append(result.GasCoins, ref)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	return result, err
}

func decodeExecuteTxResponse(body []byte) (executeTxResponse, error) {
	var resp executeTxResponse
	err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "error":
			msg, err := decodeErrorField(d)
			resp.Error = msg
			return err
		case "effects":
			if d.Next() == jx.Null {
				return d.Null()
			}
			raw, err := d.Raw()
			if err != nil {
				return err
			}
			effects, err := core.ParseEffects(raw)
			if err != nil {
				return err
			}
			resp.Effects = &effects
			return nil
		default:
			return d.Skip()
		}
	})
	return resp, err
}
