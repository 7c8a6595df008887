package svclink_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amal-vs-thoughtminds/svclink/dispatch"
	"github.com/amal-vs-thoughtminds/svclink/metric"
	"github.com/amal-vs-thoughtminds/svclink/middleware"
	"github.com/amal-vs-thoughtminds/svclink/registry"
	"github.com/amal-vs-thoughtminds/svclink/testutil"
	"github.com/amal-vs-thoughtminds/svclink/wire"
)

// Two services talking through the full stack: order-service dispatches an
// encrypted request, user-service's middleware opens it, the handler echoes,
// and the response comes back sealed with user-service's own key.
func TestEncryptedRoundTrip(t *testing.T) {
	orderRing, userRing := testutil.PairedRings(t, "order-service", "user-service")

	router := chi.NewRouter()
	router.Use(middleware.Encryption(userRing))
	router.Post("/echo", func(w http.ResponseWriter, r *http.Request) {
		// Middleware contract: the handler only ever sees plaintext
		assert.Equal(t, wire.ValueEncrypted, r.Header.Get(wire.HeaderCommunication))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"order_id":7}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	})

	srv := httptest.NewServer(router)
	defer srv.Close()

	reg := registry.New()
	require.NoError(t, reg.Register(registry.Descriptor{Name: "user-service", BaseURL: srv.URL}))

	events := &testutil.RecordingSink{}
	client, err := dispatch.NewClient(reg, orderRing,
		dispatch.WithSink(events),
		dispatch.WithMetrics(metric.New()),
	)
	require.NoError(t, err)

	res, err := client.Call(context.Background(), "user-service", "/echo", []byte(`{"order_id":7}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.Status)
	assert.True(t, res.Decrypted, "response must have been sealed on the wire")
	assert.JSONEq(t, `{"order_id":7}`, string(res.Body))
	assert.Equal(t, []string{"success"}, events.Outcomes())
}

// A caller without the responder's key can deliver an encrypted request but
// must not be able to read an encrypted reply, and a responder never accepts
// ciphertext from a peer it does not know.
func TestStrangerIsRejected(t *testing.T) {
	_, userRing := testutil.PairedRings(t, "order-service", "user-service")
	strangerRing, _ := testutil.PairedRings(t, "stranger-service", "user-service")

	var handlerCalls int
	router := chi.NewRouter()
	router.Use(middleware.Encryption(userRing))
	router.Post("/echo", func(w http.ResponseWriter, r *http.Request) {
		handlerCalls++
	})

	srv := httptest.NewServer(router)
	defer srv.Close()

	reg := registry.New()
	require.NoError(t, reg.Register(registry.Descriptor{Name: "user-service", BaseURL: srv.URL}))

	client, err := dispatch.NewClient(reg, strangerRing)
	require.NoError(t, err)

	_, err = client.Call(context.Background(), "user-service", "/echo", []byte(`{"x":1}`))
	require.Error(t, err)
	assert.Equal(t, 0, handlerCalls, "unknown peers must be rejected before the handler")
}
