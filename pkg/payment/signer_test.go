package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimestamp(t *testing.T) {
	t.Parallel()
	// Nairobi is UTC+3 year-round.
	got := Timestamp(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	require.Equal(t, "20240102060405", got)
	require.Len(t, got, 14)
}

func TestPassword(t *testing.T) {
	t.Parallel()
	got := Password("600981", "testkey", "20231115103000")
	require.Equal(t, "NjAwOTgxdGVzdGtleTIwMjMxMTE1MTAzMDAw", got)

	// Pure function: same inputs, same output; any input change, different output.
	require.Equal(t, got, Password("600981", "testkey", "20231115103000"))
	require.NotEqual(t, got, Password("600982", "testkey", "20231115103000"))
	require.NotEqual(t, got, Password("600981", "testkex", "20231115103000"))
	require.NotEqual(t, got, Password("600981", "testkey", "20231115103001"))
}

func TestNormalizePhoneNumber(t *testing.T) {
	t.Parallel()
	var tests = []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "local zero prefix", input: "0712345678", want: "254712345678"},
		{name: "country prefix", input: "254712345678", want: "254712345678"},
		{name: "plus country prefix", input: "+254712345678", want: "254712345678"},
		{name: "bare subscriber number", input: "712345678", want: "254712345678"},
		{name: "airtel style 1xx", input: "0110123456", want: "254110123456"},
		{name: "spaces and dashes", input: "+254 712-345-678", want: "254712345678"},
		{name: "too short", input: "07123", wantErr: true},
		{name: "too long", input: "07123456789", wantErr: true},
		{name: "bad subscriber prefix", input: "0812345678", wantErr: true},
		{name: "letters only", input: "not-a-number", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizePhoneNumber(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPhoneNumber)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizePhoneNumber_AllPrefixFormsAgree(t *testing.T) {
	t.Parallel()
	for _, form := range []string{"0712345678", "254712345678", "+254712345678"} {
		got, err := NormalizePhoneNumber(form)
		require.NoError(t, err)
		require.Equal(t, "254712345678", got, "form %q", form)
	}
}
