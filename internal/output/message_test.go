package output_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mrz1836/walletlink/internal/output"
)

func TestMessenger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		format  output.Format
		wantOut string
		wantErr string
	}{
		{
			name:    "text",
			format:  output.FormatText,
			wantOut: "ℹ️  watching localhost\n✅ connected 2\n",
			wantErr: "⚠️  no provider\n",
		},
		{
			name:    "json suppresses notices",
			format:  output.FormatJSON,
			wantOut: "",
			wantErr: "⚠️  no provider\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var out, errw bytes.Buffer
			m := output.NewMessenger(&out, &errw, tt.format)

			m.Infof("watching %s", "localhost")
			m.Warn("no provider")
			m.Successf("connected %d", 2)

			assert.Equal(t, tt.wantOut, out.String())
			assert.Equal(t, tt.wantErr, errw.String())
		})
	}
}
