package health

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amal-vs-thoughtminds/svclink/breaker"
	"github.com/amal-vs-thoughtminds/svclink/registry"
)

func TestCheck_AllHealthy(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(registry.Descriptor{Name: "user-service", BaseURL: "http://user:8000"}))

	brk := breaker.New(breaker.DefaultConfig())
	require.NoError(t, brk.Allow("user-service"))
	brk.RecordSuccess("user-service")

	st := Check("order-service", reg, brk)
	assert.Equal(t, StatusHealthy, st.Status)
	assert.Equal(t, "order-service", st.Service)
	require.Len(t, st.Peers, 1)
	require.Len(t, st.Circuits, 1)
	assert.Equal(t, "closed", st.Circuits[0].State)
}

func TestCheck_UnhealthyPeerDegrades(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(registry.Descriptor{Name: "user-service", BaseURL: "http://user:8000"}))
	require.NoError(t, reg.MarkHealth("user-service", false, time.Now()))

	st := Check("order-service", reg, nil)
	assert.Equal(t, StatusDegraded, st.Status)
}

func TestCheck_OpenCircuitDegrades(t *testing.T) {
	brk := breaker.New(breaker.Config{FailureThreshold: 1, Cooldown: time.Minute})
	brk.RecordFailure("user-service")

	st := Check("order-service", nil, brk)
	assert.Equal(t, StatusDegraded, st.Status)
}

func TestHandler(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(registry.Descriptor{Name: "user-service", BaseURL: "http://user:8000"}))

	rr := httptest.NewRecorder()
	Handler("order-service", reg, breaker.New(breaker.DefaultConfig()))(rr, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, 200, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var st Status
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, StatusHealthy, st.Status)
	assert.Len(t, st.Peers, 1)
}
