package ingest

import (
	"errors"
	"testing"
)

func TestExtractAddress(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		want    string
		wantErr error
	}{
		{
			name:  "pumpportal create event",
			event: Event{Chain: ChainSolana, Raw: []byte(`{"signature":"x","mint":"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v","txType":"create","pool":"pump"}`)},
			want:  "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		},
		{
			name:    "subscription ack",
			event:   Event{Chain: ChainSolana, Raw: []byte(`{"message":"Successfully subscribed to token creation events."}`)},
			wantErr: ErrNoAddress,
		},
		{
			name:    "not base58",
			event:   Event{Chain: ChainSolana, Raw: []byte(`{"mint":"0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl"}`)},
			wantErr: ErrInvalidAddress,
		},
		{
			name:    "wrong length",
			event:   Event{Chain: ChainSolana, Raw: []byte(`{"mint":"abc"}`)},
			wantErr: ErrInvalidAddress,
		},
		{
			name:  "evm address is checksummed",
			event: Event{Chain: ChainEVM, Address: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"},
			want:  "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		},
		{
			name:    "evm garbage",
			event:   Event{Chain: ChainEVM, Address: "0xnothex"},
			wantErr: ErrInvalidAddress,
		},
		{
			name:    "evm empty",
			event:   Event{Chain: ChainEVM},
			wantErr: ErrNoAddress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractAddress(tt.event)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got error %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractAddressMalformedJSON(t *testing.T) {
	if _, err := ExtractAddress(Event{Chain: ChainSolana, Raw: []byte(`{not json`)}); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestIsSolanaAddress(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"So11111111111111111111111111111111111111112", true},
		{"11111111111111111111111111111111", true},
		{"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", true},
		{"", false},
		{"So1111111111111111111111111111111111111111211111", false},
	}
	for _, tt := range tests {
		if got := IsSolanaAddress(tt.addr); got != tt.want {
			t.Errorf("IsSolanaAddress(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}
