package blockchain

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	ht "github.com/ogen-go/ogen/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/iota-community/workshops/pkg/cache"
	"github.com/iota-community/workshops/pkg/core"
)

var nodeTimeHistogramVec = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "fullnode_rpc_duration_seconds",
		Help:    "Fullnode JSON-RPC calls duration distribution in seconds",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 1, 5, 10},
	},
	[]string{"method"},
)

const gasPriceKey = "reference_gas_price"

// RPCError is an error object returned by the fullnode.
type RPCError struct {
	Code    int64
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NodeClient reads network parameters from an IOTA fullnode over JSON-RPC.
type NodeClient struct {
	logger     *zap.Logger
	url        string
	client     ht.Client
	priceCache cache.Cache[string, uint64]
	priceTTL   time.Duration
	attempts   uint
	delay      time.Duration
	requestID  atomic.Uint64
}

type Options struct {
	client   ht.Client
	priceTTL time.Duration
	attempts uint
	delay    time.Duration
}

type Option func(o *Options)

func WithHTTPClient(client ht.Client) Option {
	return func(o *Options) {
		o.client = client
	}
}

// WithGasPriceTTL configures how long the reference gas price is reused.
// The price changes only at epoch boundaries.
func WithGasPriceTTL(ttl time.Duration) Option {
	return func(o *Options) {
		o.priceTTL = ttl
	}
}

// WithRetry configures how many times a failed call is attempted and the initial delay between attempts.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(o *Options) {
		o.attempts = attempts
		o.delay = delay
	}
}

func NewNodeClient(logger *zap.Logger, url string, opts ...Option) *NodeClient {
	o := &Options{
		client:   &http.Client{Timeout: 10 * time.Second},
		priceTTL: time.Minute,
		attempts: 3,
		delay:    100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.attempts == 0 {
		o.attempts = 1
	}
	return &NodeClient{
		logger:     logger,
		url:        url,
		client:     o.client,
		priceCache: cache.NewLRUCache[string, uint64](1, "gas_price"),
		priceTTL:   o.priceTTL,
		attempts:   o.attempts,
		delay:      o.delay,
	}
}

// ReferenceGasPrice returns the gas price of the current epoch.
func (c *NodeClient) ReferenceGasPrice(ctx context.Context) (uint64, error) {
	return c.priceCache.GetOrLoad(gasPriceKey, c.priceTTL, func() (uint64, error) {
		var price uint64
		err := c.call(ctx, "iotax_getReferenceGasPrice", []byte(`[]`), func(d *jx.Decoder) error {
			var err error
			price, err = decodeBigUint(d)
			return err
		})
		if err != nil {
			return 0, err
		}
		c.logger.Debug("reference gas price", zap.Uint64("price", price))
		return price, nil
	})
}

// GetObjectRef returns the latest version of an object.
func (c *NodeClient) GetObjectRef(ctx context.Context, id core.ObjectID) (core.ObjectRef, error) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.ArrStart()
	e.Str(id.String())
	e.ObjStart()
	e.FieldStart("showContent")
	e.Bool(false)
	e.ObjEnd()
	e.ArrEnd()
	params := append([]byte(nil), e.Bytes()...)

	var ref core.ObjectRef
	var found bool
	err := c.call(ctx, "iota_getObject", params, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "data":
				if d.Next() == jx.Null {
					return d.Null()
				}
				var err error
				ref, err = core.DecodeObjectRef(d)
				found = err == nil
				return err
			default:
				return d.Skip()
			}
		})
	})
	if err != nil {
		return core.ObjectRef{}, err
	}
	if !found {
		return core.ObjectRef{}, errors.Wrapf(core.ErrEntityNotFound, "object %v", id)
	}
	return ref, nil
}

func (c *NodeClient) call(ctx context.Context, method string, params []byte, decodeResult func(d *jx.Decoder) error) error {
	timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		nodeTimeHistogramVec.WithLabelValues(method).Observe(v)
	}))
	defer timer.ObserveDuration()

	return retry.Do(func() error {
		body, err := c.roundTrip(ctx, method, params)
		if err != nil {
			return err
		}
		var rpcErr *RPCError
		err = jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "result":
				return decodeResult(d)
			case "error":
				if d.Next() == jx.Null {
					return d.Null()
				}
				var err error
				rpcErr, err = decodeRPCError(d)
				return err
			default:
				return d.Skip()
			}
		})
		if err != nil {
			return errors.Wrapf(err, "decode %v response", method)
		}
		if rpcErr != nil {
			return retry.Unrecoverable(rpcErr)
		}
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("fullnode call failed",
				zap.String("method", method),
				zap.Uint("attempt", n+1),
				zap.Error(err))
		}),
	)
}

func (c *NodeClient) roundTrip(ctx context.Context, method string, params []byte) ([]byte, error) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.ObjStart()
	e.FieldStart("jsonrpc")
	e.Str("2.0")
	e.FieldStart("id")
	e.UInt64(c.requestID.Add(1))
	e.FieldStart("method")
	e.Str(method)
	e.FieldStart("params")
	e.Raw(params)
	e.ObjEnd()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(append([]byte(nil), e.Bytes()...)))
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.Errorf("fullnode %v: http status %d", method, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, retry.Unrecoverable(errors.Errorf("fullnode %v: http status %d", method, resp.StatusCode))
	}
	return body, nil
}

func decodeRPCError(d *jx.Decoder) (*RPCError, error) {
	var rpcErr RPCError
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			v, err := d.Int64()
			rpcErr.Code = v
			return err
		case "message":
			v, err := d.Str()
			rpcErr.Message = v
			return err
		default:
			return d.Skip()
		}
	})
	return &rpcErr, err
}

// decodeBigUint reads a u64 encoded either as a JSON number or as a decimal string, the fullnode uses both.
func decodeBigUint(d *jx.Decoder) (uint64, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		return strconv.ParseUint(s, 10, 64)
	}
	return d.UInt64()
}
