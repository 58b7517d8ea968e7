// Package gasstation is a client of the gas sponsorship service:
// it reserves sponsor gas coins and submits user signed transactions for co-signing and execution.
package gasstation

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	ht "github.com/ogen-go/ogen/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iota-community/workshops/pkg/core"
)

const (
	// DefaultMaxGasBudget is 2 IOTA in nanos, the default limit of the station.
	DefaultMaxGasBudget uint64 = 2_000_000_000

	MinReserveDuration = time.Second
	MaxReserveDuration = 10 * time.Minute

	reserveGasPath = "/v1/reserve_gas"
	executeTxPath  = "/v1/execute_tx"

	maxResponseSize = 8 << 20
)

var requestTimeHistogramVec = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "gas_station_request_duration_seconds",
		Help:    "Gas station requests duration distribution in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	},
	[]string{"method"},
)

// Client talks to a gas station over HTTP.
type Client struct {
	baseURL      string
	client       ht.Client
	maxGasBudget uint64
	now          func() time.Time
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	o := &Options{
		timeout:      30 * time.Second,
		maxGasBudget: DefaultMaxGasBudget,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil, errors.New("gas station url is empty")
	}
	return &Client{
		baseURL:      baseURL,
		client:       o.httpClient(),
		maxGasBudget: o.maxGasBudget,
		now:          o.now,
	}, nil
}

// ReserveGas asks the station to lock gas coins covering budget for the given lifetime.
// The returned reservation expires lifetime after the request was sent.
func (c *Client) ReserveGas(ctx context.Context, budget uint64, lifetime time.Duration) (core.GasReservation, error) {
	if budget == 0 || budget > c.maxGasBudget {
		return core.GasReservation{}, errors.Wrapf(ErrInvalidBudget, "%d is out of (0, %d]", budget, c.maxGasBudget)
	}
	if lifetime < MinReserveDuration || lifetime > MaxReserveDuration {
		return core.GasReservation{}, errors.Wrapf(ErrInvalidDuration, "%v is out of [%v, %v]", lifetime, MinReserveDuration, MaxReserveDuration)
	}
	sentAt := c.now()
	body, status, err := c.post(ctx, "reserve_gas", reserveGasPath, encodeReserveGasRequest(budget, lifetime))
	if err != nil {
		return core.GasReservation{}, err
	}
	resp, err := decodeReserveGasResponse(body)
	if err != nil {
		if !isSuccess(status) {
			return core.GasReservation{}, &Error{StatusCode: status, Message: responseText(body)}
		}
		return core.GasReservation{}, errors.Wrap(err, "decode reserve_gas response")
	}
	if resp.Error != "" || !isSuccess(status) {
		return core.GasReservation{}, &Error{StatusCode: status, Message: firstNonEmpty(resp.Error, responseText(body))}
	}
	if resp.Result == nil {
		return core.GasReservation{}, ErrEmptyResult
	}
	return core.GasReservation{
		SponsorAddress: resp.Result.SponsorAddress,
		ReservationID:  resp.Result.ReservationID,
		GasCoins:       resp.Result.GasCoins,
		Budget:         budget,
		ExpiresAt:      sentAt.Add(lifetime),
	}, nil
}

// ExecuteTx sends a user signed transaction to be co-signed by the sponsor and broadcast.
// The reservation is consumed whatever the outcome.
func (c *Client) ExecuteTx(ctx context.Context, submission core.SignedSubmission) (core.Effects, error) {
	body, status, err := c.post(ctx, "execute_tx", executeTxPath, encodeExecuteTxRequest(submission))
	if err != nil {
		return core.Effects{}, err
	}
	resp, err := decodeExecuteTxResponse(body)
	if err != nil {
		if !isSuccess(status) {
			return core.Effects{}, &Error{StatusCode: status, Message: responseText(body)}
		}
		return core.Effects{}, errors.Wrap(err, "decode execute_tx response")
	}
	if resp.Error != "" || !isSuccess(status) {
		return core.Effects{}, &Error{StatusCode: status, Message: firstNonEmpty(resp.Error, responseText(body))}
	}
	if resp.Effects == nil {
		return core.Effects{}, ErrEmptyResult
	}
	return *resp.Effects, nil
}

func (c *Client) post(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		requestTimeHistogramVec.WithLabelValues(method).Observe(v)
	}))
	defer timer.ObserveDuration()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, errors.Wrapf(err, "%v request", method)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "%v request", method)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, resp.StatusCode, errors.Wrapf(err, "read %v response", method)
	}
	return body, resp.StatusCode, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func responseText(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "empty response"
	}
	return text
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
