package sse

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-community/workshops/pkg/core"
	"github.com/iota-community/workshops/pkg/pusher/sources"
)

type mockPostSource struct {
	options    sources.SubscribeToPostsOptions
	deliveryFn sources.DeliveryFn
}

func (m *mockPostSource) SubscribeToPosts(deliveryFn sources.DeliveryFn, opts sources.SubscribeToPostsOptions) sources.CancelFn {
	m.options = opts
	m.deliveryFn = deliveryFn
	return func() {}
}

var _ sources.PostSource = (*mockPostSource)(nil)

func TestHandler_SubscribeToPosts(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		wantErr     string
		wantOptions sources.SubscribeToPostsOptions
	}{
		{
			name:        "no authors",
			url:         "/v1/sse/posts",
			wantOptions: sources.SubscribeToPostsOptions{AllAuthors: true},
		},
		{
			name:        "all authors",
			url:         "/v1/sse/posts?authors=all",
			wantOptions: sources.SubscribeToPostsOptions{AllAuthors: true},
		},
		{
			name: "specific authors",
			url:  "/v1/sse/posts?authors=0xa11ce,0x7573c697fa68450f04fa0dee2d39dcdc8a5ccf5db547f3e47638a6f8eeeec110",
			wantOptions: sources.SubscribeToPostsOptions{
				Authors: []core.Address{
					core.MustParseAddress("0xa11ce"),
					core.MustParseAddress("0x7573c697fa68450f04fa0dee2d39dcdc8a5ccf5db547f3e47638a6f8eeeec110"),
				},
			},
		},
		{
			name:    "bad authors parameter",
			url:     "/v1/sse/posts?authors=xyz",
			wantErr: "failed to parse 'authors' parameter in query",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &mockPostSource{}
			h := NewHandler(source)
			s := newSession()
			request := httptest.NewRequest(http.MethodGet, tt.url, nil)
			err := h.SubscribeToPosts(s, request)
			if tt.wantErr != "" {
				require.NotNil(t, err)
				require.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.Nil(t, err)
			require.Equal(t, tt.wantOptions, source.options)

			source.deliveryFn([]byte("post"))
			event := <-s.eventCh
			require.Equal(t, []byte("post"), event.Data)
		})
	}
}
