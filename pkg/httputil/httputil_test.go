package httputil

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeBrosOfficial/redismux/pkg/errors"
)

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]any{"receivers": 2})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(2), body["receivers"])
}

func TestDecodeJSONStrict_RejectsUnknownFields(t *testing.T) {
	var v struct {
		Channel string `json:"channel"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"channel":"a","extra":1}`))
	assert.Error(t, DecodeJSONStrict(r, &v))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"channel":"a"}`))
	require.NoError(t, DecodeJSONStrict(r, &v))
	assert.Equal(t, "a", v.Channel)
}

func TestBase64RoundTrip(t *testing.T) {
	data := []byte{0x00, 0xff, 'h', 'i'}
	got, err := DecodeBase64(EncodeBase64(data))
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = DecodeBase64("not base64!")
	assert.Error(t, err)
}

func TestQueryValues(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?channel=a,b&channel=c&channel=&pattern=x.*", nil)
	assert.Equal(t, []string{"a", "b", "c"}, QueryValues(r, "channel"))
	assert.Equal(t, []string{"x.*"}, QueryValues(r, "pattern"))
	assert.Nil(t, QueryValues(r, "missing"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"disabled", errors.NewPubSubDisabledError(), http.StatusServiceUnavailable},
		{"not connected", errors.NewNotConnectedError("down", nil), http.StatusServiceUnavailable},
		{"closed", errors.ErrClosed, http.StatusServiceUnavailable},
		{"not subscribed", errors.NewNotSubscribedError("a", false), http.StatusBadRequest},
		{"connection", errors.NewConnectionError("subscribe", stderrors.New("reset")), http.StatusBadGateway},
		{"cancelled", context.Canceled, http.StatusRequestTimeout},
		{"other", stderrors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}
