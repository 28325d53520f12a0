package transport

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const body = "Div,Date,HomeTeam,AwayTeam\nE0,12/08/2023,Arsenal,Forest\n"

func encoded(t *testing.T, encoding string) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch encoding {
	case "gzip":
		w := gzip.NewWriter(&buf)
		_, err := w.Write([]byte(body))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case "br":
		w := brotli.NewWriter(&buf)
		_, err := w.Write([]byte(body))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	default:
		buf.WriteString(body)
	}
	return buf.Bytes()
}

func TestGetDecodesContentEncoding(t *testing.T) {
	for _, encoding := range []string{"", "gzip", "br"} {
		t.Run("encoding="+encoding, func(t *testing.T) {
			payload := encoded(t, encoding)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "gzip, deflate, br", r.Header.Get("Accept-Encoding"))
				if encoding != "" {
					w.Header().Set("Content-Encoding", encoding)
				}
				w.Write(payload)
			}))
			defer srv.Close()

			c := NewClient(WithRateLimit(1000, 10))
			data, err := c.Get(context.Background(), srv.URL)
			require.NoError(t, err)
			assert.Equal(t, body, string(data))
		})
	}
}

func TestGetReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := NewClient(WithRateLimit(1000, 10)).Get(context.Background(), srv.URL+"/mmz4281/9900/X9.csv")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestGetHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient().Get(ctx, "http://127.0.0.1:1/")
	assert.Error(t, err)
}
