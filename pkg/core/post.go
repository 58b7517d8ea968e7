package core

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
)

// Post is the feed record produced by a successfully executed submission.
type Post struct {
	Content       string `json:"content"`
	Author        string `json:"author"`
	TransactionID string `json:"txid"`
	// Timestamp is the client side time in unix milliseconds.
	Timestamp int64 `json:"timestamp"`
	// Sender is the full address behind Author, kept for filtering.
	Sender Address `json:"-"`
}

const authorLabelLength = 10

// ShortAddress renders the author label shown next to a post: the first ten characters and an ellipsis.
func ShortAddress(addr string) string {
	if len(addr) > authorLabelLength {
		addr = addr[:authorLabelLength]
	}
	return addr + "..."
}

func NewPost(content string, author Address, digest string, now time.Time) Post {
	return Post{
		Content:       content,
		Author:        ShortAddress(author.String()),
		TransactionID: digest,
		Timestamp:     now.UnixMilli(),
		Sender:        author,
	}
}

// ValidateContent checks that content is not blank and, when maxLength is positive,
// that it has at most maxLength characters.
func ValidateContent(content string, maxLength int) error {
	if strings.TrimSpace(content) == "" {
		return errors.Wrap(ErrInvalidContent, "content is empty")
	}
	if !utf8.ValidString(content) {
		return errors.Wrap(ErrInvalidContent, "content is not valid utf-8")
	}
	if n := utf8.RuneCountInString(content); maxLength > 0 && n > maxLength {
		return errors.Wrapf(ErrInvalidContent, "content has %d characters, limit is %d", n, maxLength)
	}
	return nil
}
