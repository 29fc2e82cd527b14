package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealerhq/dealer-be/internal/store"
)

func TestJobCursorRoundTrip(t *testing.T) {
	original := &store.JobCursor{
		CreatedAt: time.Date(2025, 6, 10, 9, 30, 0, 123456789, time.UTC),
		JobID:     "7f3c2a1e-9d4b-4c8f-b2a6-5e1d0c9b8a7f",
	}

	encoded := EncodeJobCursor(original)
	decoded, err := DecodeJobCursor(encoded)
	require.NoError(t, err)

	assert.True(t, decoded.CreatedAt.Equal(original.CreatedAt))
	assert.Equal(t, original.JobID, decoded.JobID)
}

func TestDecodeJobCursor(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantNil bool
		wantErr bool
	}{
		{
			name:    "empty means first page",
			input:   "",
			wantNil: true,
		},
		{
			name:    "not base64",
			input:   "!!!not-base64!!!",
			wantErr: true,
		},
		{
			name:    "wrong part count",
			input:   "bm8tcGlwZS1oZXJl", // "no-pipe-here"
			wantErr: true,
		},
		{
			name:    "non-numeric timestamp",
			input:   "YWJjfGpvYi0x", // "abc|job-1"
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cursor, err := DecodeJobCursor(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, cursor)
			}
		})
	}
}
