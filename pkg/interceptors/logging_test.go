package interceptors

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-extractor/pkg/logger"
)

type ping struct {
	Text string `json:"text"`
}

func TestLoggingInterceptor(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel string
		wantCode  string
	}{
		{"success", nil, `"level":"DEBUG"`, ""},
		{"client error", connect.NewError(connect.CodeNotFound, errors.New("missing")), `"level":"WARN"`, `"code":"not_found"`},
		{"server error", connect.NewError(connect.CodeInternal, errors.New("boom")), `"level":"ERROR"`, `"code":"internal"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			wrap := NewLoggingInterceptor(logger.New(&buf, "debug", "json"))

			call := wrap(func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				return connect.NewResponse(&ping{Text: "pong"}), nil
			})

			res, err := call(context.Background(), connect.NewRequest(&ping{Text: "ping"}))
			if tt.err != nil {
				assert.Equal(t, connect.CodeOf(tt.err), connect.CodeOf(err))
				assert.Nil(t, res)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "pong", res.Any().(*ping).Text)
			}

			assert.Contains(t, buf.String(), tt.wantLevel)
			assert.Contains(t, buf.String(), `"duration"`)
			if tt.wantCode != "" {
				assert.Contains(t, buf.String(), tt.wantCode)
			}
		})
	}
}
