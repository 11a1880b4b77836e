package paygate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurahive/paygate/flow"
	"github.com/aurahive/paygate/tools"
	"github.com/aurahive/paygate/types"
	"github.com/aurahive/paygate/utils"
)

const (
	testKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	payerAddr   = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	testNonce   = "0xf408d6d1f1d1bca7c6396ed30f00a46ca4e5b073fff983e42b348776a5aa651c"
	usdcSepolia = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
	merchant    = "0x384Aa214be0B279cbf211e9b2C992d8633F77848"
)

type stubBackend struct{ consumed bool }

func (s *stubBackend) AuthorizationState(ctx context.Context, asset, payer, nonce string) (bool, error) {
	return s.consumed, nil
}
func (s *stubBackend) Close() {}

type chanSink struct{ ch chan string }

func (s *chanSink) Emit(ctx context.Context, content string) error {
	s.ch <- content
	return nil
}

func testConfig() *types.Config {
	cfg := types.DefaultConfig()
	cfg.PrivateKeyHex = testKey
	return cfg
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrConfigError, types.CodeOf(err))

	// A credential alone is not enough without a settlement endpoint.
	_, err = New(testConfig())
	require.Error(t, err)
	assert.Equal(t, types.ErrConfigError, types.CodeOf(err))
}

func TestNewWithBackend(t *testing.T) {
	p, err := New(testConfig(), WithBackend(&stubBackend{}))
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, payerAddr, p.PayerAddress())
}

func TestEndToEndPaymentCycle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(flow.PaymentHeader)
		if header == "" {
			pr := types.PaymentRequired{
				Version: types.ProtocolVersion,
				Accepts: []types.PaymentChallenge{{
					Scheme:  "exact",
					Network: "base-sepolia",
					Amount:  "10000",
					Asset:   usdcSepolia,
					PayTo:   merchant,
					Nonce:   testNonce,
					Expiry:  time.Now().Add(time.Hour).Unix(),
					Extra:   map[string]string{"name": "USDC", "version": "2"},
				}},
			}
			body, _ := json.Marshal(pr)
			w.WriteHeader(http.StatusPaymentRequired)
			w.Write(body)
			return
		}

		auth, err := utils.DecodeAuthorizationHeader(header)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, payerAddr, auth.Authorization.From)
		assert.Equal(t, testNonce, auth.Authorization.Nonce)
		assert.Equal(t, "0", auth.Authorization.ValidAfter)

		echo, _ := json.Marshal(types.SettleResponse{
			Success: true, Transaction: "0xfeedface", Network: "base-sepolia", Payer: auth.Authorization.From,
		})
		w.Header().Set(flow.SettlementHeader, base64.StdEncoding.EncodeToString(echo))
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"make":"Toyota","model":"Camry","year":2021,"color":"Silver","estimated_price":18500,"confidence_score":0.93}`)
	}))
	defer srv.Close()

	sink := &chanSink{ch: make(chan string, 4)}
	p, err := New(testConfig(),
		WithBackend(&stubBackend{consumed: true}),
		WithHTTPClient(srv.Client()),
		WithSink(sink),
		WithTool(&tools.VisionTool{BaseURL: srv.URL}),
	)
	require.NoError(t, err)
	defer p.Close()

	result, err := p.Call(context.Background(), "verify_asset_quality", map[string]any{
		"image_source": "https://img.example.com/camry.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, "ASSET_DOMAIN_VEHICLE", result["domain"])

	// Both the payment signal and the tool report reach the sink.
	received := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case content := <-sink.ch:
			if strings.HasPrefix(content, "[Payment Settled]") {
				received["payment"] = true
				assert.Contains(t, content, "10000")
			} else {
				received["report"] = true
				assert.Contains(t, content, "Savant Report")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("sink signal missing")
		}
	}
	assert.True(t, received["payment"])
	assert.True(t, received["report"])
}

func TestExecuteDirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"free":true}`)
	}))
	defer srv.Close()

	p, err := New(testConfig(), WithBackend(&stubBackend{}), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	defer p.Close()

	res, err := p.Execute(context.Background(), &flow.Request{Method: "GET", URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.False(t, res.Paid)
}
