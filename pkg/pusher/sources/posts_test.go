package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iota-community/workshops/pkg/core"
)

var (
	testAuthor1 = core.MustParseAddress("0x7573c697fa68450f04fa0dee2d39dcdc8a5ccf5db547f3e47638a6f8eeeec110")
	testAuthor2 = core.MustParseAddress("0x2fe369414fa9dff6349989668af1fce51ca655031845ea47ad15ac1936638949")
	testTime    = time.UnixMilli(1_700_000_000_000)
)

func TestPostHub_Run(t *testing.T) {
	hub := NewPostHub(zap.L())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := hub.Run(ctx)
	const eventsNumber = 10

	var wg sync.WaitGroup
	wg.Add(eventsNumber * 3)

	allCh := make(chan []byte, eventsNumber*2)
	cancelAll := hub.SubscribeToPosts(func(eventData []byte) {
		allCh <- eventData
		wg.Done()
	}, SubscribeToPostsOptions{AllAuthors: true})
	defer cancelAll()

	authorCh := make(chan []byte, eventsNumber)
	cancelAuthor := hub.SubscribeToPosts(func(eventData []byte) {
		authorCh <- eventData
		wg.Done()
	}, SubscribeToPostsOptions{Authors: []core.Address{testAuthor1}})
	defer cancelAuthor()

	var expected, expectedAuthor [][]byte
	for i := 0; i < eventsNumber; i++ {
		for _, author := range []core.Address{testAuthor1, testAuthor2} {
			post := core.NewPost(fmt.Sprintf("post-%d", i), author, fmt.Sprintf("digest-%d", i), testTime)
			ch <- post
			eventData, err := json.Marshal(PostEventData{
				Content:       post.Content,
				Author:        post.Author,
				TransactionID: post.TransactionID,
				Timestamp:     post.Timestamp,
			})
			require.Nil(t, err)
			expected = append(expected, eventData)
			if author == testAuthor1 {
				expectedAuthor = append(expectedAuthor, eventData)
			}
		}
	}
	wg.Wait()
	close(allCh)
	close(authorCh)

	var got, gotAuthor [][]byte
	for data := range allCh {
		got = append(got, data)
	}
	for data := range authorCh {
		gotAuthor = append(gotAuthor, data)
	}
	require.Equal(t, expected, got)
	require.Equal(t, expectedAuthor, gotAuthor)
}

func TestPostHub_AuthorFilterMatchesFullAddress(t *testing.T) {
	subscribed := core.MustParseAddress("0x1234567800000000000000000000000000000000000000000000000000000001")
	sameLabel := core.MustParseAddress("0x12345678ffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	require.Equal(t, core.ShortAddress(subscribed.String()), core.ShortAddress(sameLabel.String()))
	tests := []struct {
		name          string
		sender        core.Address
		wantDelivered int
	}{
		{name: "same address", sender: subscribed, wantDelivered: 1},
		{name: "same author label", sender: sameLabel, wantDelivered: 0},
		{name: "unrelated address", sender: testAuthor2, wantDelivered: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := NewPostHub(zap.L())
			var delivered int
			cancel := hub.SubscribeToPosts(func(eventData []byte) {
				delivered += 1
			}, SubscribeToPostsOptions{Authors: []core.Address{subscribed}})
			defer cancel()

			hub.sendPostToSubscribers(core.NewPost("gm", tt.sender, "0xabc", testTime))
			require.Equal(t, tt.wantDelivered, delivered)
		})
	}
}

func TestPostHub_Cancel(t *testing.T) {
	hub := NewPostHub(zap.L())
	var delivered int
	cancel := hub.SubscribeToPosts(func(eventData []byte) {
		delivered += 1
	}, SubscribeToPostsOptions{})

	hub.sendPostToSubscribers(core.Post{Content: "one", TransactionID: "a"})
	cancel()
	hub.sendPostToSubscribers(core.Post{Content: "two", TransactionID: "b"})

	require.Equal(t, 1, delivered)
	require.Len(t, hub.subscribers, 0)
}
