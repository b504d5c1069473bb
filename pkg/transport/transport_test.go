package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woopsa-protocol/woopsa-go/pkg/interaction"
	"github.com/woopsa-protocol/woopsa-go/pkg/model"
	"github.com/woopsa-protocol/woopsa-go/pkg/value"
	"github.com/woopsa-protocol/woopsa-go/pkg/version"
	"github.com/woopsa-protocol/woopsa-go/pkg/wire"
)

func newTestServer(t *testing.T) *interaction.Server {
	t.Helper()

	root := model.NewObject("Root")
	require.NoError(t, root.AddProperty(model.NewProperty(&model.PropertyMetadata{
		Name: "Votes",
		Type: value.TypeInteger,
	})))
	require.NoError(t, root.AddProperty(model.NewProperty(&model.PropertyMetadata{
		Name:     "Serial",
		Type:     value.TypeText,
		ReadOnly: true,
	})))
	plant := model.NewObject("Plant Room")
	require.NoError(t, plant.AddProperty(model.NewProperty(&model.PropertyMetadata{
		Name:    "Label",
		Type:    value.TypeText,
		Default: value.Text("boiler"),
	})))
	require.NoError(t, root.AddItem(plant))
	require.NoError(t, root.AddMethod(model.NewMethod(&model.MethodMetadata{
		Name:       "Echo",
		ReturnType: value.TypeText,
		Arguments:  []model.ArgumentMetadata{{Name: "Text", Type: value.TypeText}},
	}, func(_ context.Context, args map[string]value.Value) (value.Value, error) {
		return args["Text"], nil
	})))

	server := interaction.NewServer(root)
	require.NoError(t, server.InstallMultiRequest())
	return server
}

func TestHandlerStatusCodes(t *testing.T) {
	h := NewHandler(newTestServer(t), "", nil)

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
		wantType   string
	}{
		{"read", http.MethodGet, "/woopsa/read/Votes", "", http.StatusOK, ""},
		{"read missing", http.MethodGet, "/woopsa/read/Missing", "", http.StatusNotFound, wire.TypeNotFound},
		{"write read-only", http.MethodPost, "/woopsa/write/Serial", "value=x", http.StatusBadRequest, wire.TypeReadOnly},
		{"write bad value", http.MethodPost, "/woopsa/write/Votes", "value=abc", http.StatusBadRequest, wire.TypeInvalidArgument},
		{"unknown verb", http.MethodGet, "/woopsa/delete/Votes", "", http.StatusBadRequest, wire.TypeInvalidArgument},
		{"method not allowed", http.MethodDelete, "/woopsa/read/Votes", "", http.StatusMethodNotAllowed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, version.Current, rec.Header().Get(version.Header))
			if tt.wantType != "" {
				e, ok := wire.DecodeError(rec.Body.Bytes())
				require.True(t, ok, "body %s is not an error", rec.Body.String())
				assert.Equal(t, tt.wantType, e.Type)
			}
		})
	}
}

func TestHandlerReadBody(t *testing.T) {
	h := NewHandler(newTestServer(t), "/api/woopsa/", nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/woopsa/read/Votes", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var v value.Value
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.True(t, v.Equal(value.Integer(0)))
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestClientAgainstServer(t *testing.T) {
	hs := httptest.NewServer(NewHandler(newTestServer(t), "", nil).Compressed())
	defer hs.Close()

	tc, err := NewClient(hs.URL+"/woopsa", ClientConfig{})
	require.NoError(t, err)
	client := interaction.NewClient(tc)
	ctx := context.Background()

	require.NoError(t, client.Write(ctx, "/Votes", value.Integer(2)))
	v, err := client.Read(ctx, "/Votes")
	require.NoError(t, err)
	assert.True(t, v.Equal(value.Integer(2)), "Read() = %v", v)

	v, err = client.Read(ctx, "/Plant Room/Label")
	require.NoError(t, err)
	assert.Equal(t, "boiler", v.Text())

	got, err := client.Invoke(ctx, "/Echo", map[string]value.Value{"Text": value.Text("a&b=c")})
	require.NoError(t, err)
	assert.Equal(t, "a&b=c", got.Text())

	_, err = client.Read(ctx, "/Missing")
	assert.ErrorIs(t, err, wire.ErrNotFound)

	m, err := client.Meta(ctx, "/")
	require.NoError(t, err)
	assert.True(t, m.HasItem("Plant Room"))

	b := interaction.NewBatch(client)
	r1 := b.Read("/Votes")
	r2 := b.Read("/Serial")
	require.NoError(t, b.Send(ctx))
	assert.NoError(t, r1.Err())
	assert.NoError(t, r2.Err())
}

func TestClientRejectsForeignErrors(t *testing.T) {
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer hs.Close()

	tc, err := NewClient(hs.URL, ClientConfig{})
	require.NoError(t, err)

	_, err = tc.RoundTrip(context.Background(), wire.ActionRead, "/Votes", nil)
	assert.ErrorIs(t, err, ErrBadResponse)
	assert.False(t, wire.IsProtocolError(err))
}

func TestClientRejectsIncompatibleVersion(t *testing.T) {
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(version.Header, "2.0")
		w.Write([]byte(`{"Value":1,"Type":"Integer"}`))
	}))
	defer hs.Close()

	tc, err := NewClient(hs.URL, ClientConfig{})
	require.NoError(t, err)

	_, err = tc.RoundTrip(context.Background(), wire.ActionRead, "/Votes", url.Values{})
	assert.True(t, errors.Is(err, version.ErrIncompatible), "error = %v", err)
}

func TestNewClientValidatesURL(t *testing.T) {
	_, err := NewClient("ftp://host/woopsa", ClientConfig{})
	assert.Error(t, err)
}

func TestServerLifecycle(t *testing.T) {
	s := NewServer(newTestServer(t), ServerConfig{Address: "127.0.0.1:0"})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Error(t, s.Start(context.Background()), "second Start should fail")

	tc, err := NewClient(s.URL(), ClientConfig{})
	require.NoError(t, err)
	v, err := interaction.NewClient(tc).Read(context.Background(), "/Votes")
	require.NoError(t, err)
	assert.True(t, v.Equal(value.Integer(0)))

	require.NoError(t, s.Stop())
	assert.NoError(t, s.Stop(), "second Stop should be a no-op")
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusCode(wire.ErrNotFound))
	assert.Equal(t, http.StatusBadRequest, StatusCode(wire.ErrReadOnly))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(wire.ErrInvalidSubscriptionChannel))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("boom")))
}
