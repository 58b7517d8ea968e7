package core

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewPost(t *testing.T) {
	author := MustParseAddress("0x2fe369414fa9dff6349989668af1fce51ca655031845ea47ad15ac1936638949")
	now := time.UnixMilli(1_700_000_000_123)
	post := NewPost("hello chain", author, "0xabc", now)
	require.Equal(t, Post{
		Content:       "hello chain",
		Author:        "0x2fe36941...",
		TransactionID: "0xabc",
		Timestamp:     1_700_000_000_123,
		Sender:        author,
	}, post)
}

func TestShortAddress(t *testing.T) {
	require.Equal(t, "0x12345678...", ShortAddress("0x1234567890abcdef"))
	require.Equal(t, "0x1...", ShortAddress("0x1"))
}

func TestValidateContent(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		maxLength int
		wantErr   bool
	}{
		{name: "ok", content: "hello chain", maxLength: 280},
		{name: "exactly at limit", content: strings.Repeat("a", 280), maxLength: 280},
		{name: "multibyte characters count once", content: strings.Repeat("ü", 280), maxLength: 280},
		{name: "over limit", content: strings.Repeat("a", 281), maxLength: 280, wantErr: true},
		{name: "no limit", content: strings.Repeat("a", 1000), maxLength: 0},
		{name: "empty", content: "", maxLength: 280, wantErr: true},
		{name: "blank", content: " \n\t", maxLength: 280, wantErr: true},
		{name: "invalid utf-8", content: "\xff\xfe", maxLength: 280, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateContent(tt.content, tt.maxLength)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidContent)
				return
			}
			require.Nil(t, err)
		})
	}
}
