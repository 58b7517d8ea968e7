package i18n

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestT(t *testing.T) {
	tests := []struct {
		name string
		want string
		lang string
		data Template
	}{
		{
			name: "SignatureRejected",
			want: "The signature request was cancelled.",
			lang: "en-US,de;q=0.5",
		},
		{
			name: "SignatureRejected",
			want: "Die Signaturanfrage wurde abgebrochen.",
			lang: "de-DE,de;q=0.9",
		},
		{
			name: "MoveAbort",
			want: "Der Vertrag hat den Beitrag abgelehnt (Abbruchcode 1).",
			lang: "de",
			data: Template{"Code": 1},
		},
		{
			name: "ExecutionFailure",
			want: "The sponsor could not execute the transaction: reservation 7 not found",
			lang: "en",
			data: Template{"Payload": "reservation 7 not found"},
		},
		{
			name: "unknownName",
			want: "",
			lang: "de",
		},
		{
			name: "RateLimit",
			want: "Too many requests. Please slow down.",
			lang: "unknownLang", // default en
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Message(tt.lang, tt.name, tt.data)
			require.Equal(t, tt.want, got)
		})
	}
}
