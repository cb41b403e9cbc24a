package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaplex-go/bubblegum/pkg/cnft"
	"github.com/metaplex-go/bubblegum/pkg/solana"
)

func testServer(t *testing.T) *httptest.Server {
	s := httptest.NewServer(New().Router())
	t.Cleanup(s.Close)
	return s
}

func post(t *testing.T, url string, body interface{}) (*http.Response, map[string]interface{}) {
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestServer_SerializeMetadata(t *testing.T) {
	s := testServer(t)

	resp, body := post(t, s.URL+"/v1/serialize-metadata", map[string]interface{}{
		"metadata": map[string]interface{}{
			"name":                    "Test NFT",
			"symbol":                  "TNFT",
			"uri":                     "https://example.com/metadata.json",
			"seller_fee_basis_points": 500,
			"creators": []map[string]interface{}{
				{"address": "11111111111111111111111111111111", "verified": false, "share": 100},
			},
			"primary_sale_happened": false,
			"is_mutable":            true,
		},
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["metadata_base64"])
}

func TestServer_SerializeMetadata_Invalid(t *testing.T) {
	s := testServer(t)

	resp, body := post(t, s.URL+"/v1/serialize-metadata", map[string]interface{}{
		"metadata": map[string]interface{}{
			"name":                    "x",
			"seller_fee_basis_points": 10001,
		},
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(cnft.CodeInvalidMetadata), body["code"])
	assert.NotEmpty(t, body["message"])
}

func TestServer_Mint_InvalidPubkey(t *testing.T) {
	s := testServer(t)

	kp, err := solana.NewKeyPair()
	require.NoError(t, err)

	resp, body := post(t, s.URL+"/v1/mint", map[string]interface{}{
		"endpoint":          "http://127.0.0.1:0",
		"tree_pubkey":       "invalid_tree_pubkey",
		"leaf_owner_pubkey": base58.Encode(kp.Public()),
		"metadata":          "AAAAAA==",
		"payer_secret_key":  kp.ToBase58(),
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(cnft.CodeInvalidPubkey), body["code"])

	// The secret key must never be echoed back.
	msg, _ := body["message"].(string)
	assert.NotContains(t, msg, kp.ToBase58())
}

func TestServer_Mint_InvalidKeypair(t *testing.T) {
	s := testServer(t)

	kp, err := solana.NewKeyPair()
	require.NoError(t, err)

	resp, body := post(t, s.URL+"/v1/mint", map[string]interface{}{
		"endpoint":          "http://127.0.0.1:0",
		"tree_pubkey":       base58.Encode(kp.Public()),
		"leaf_owner_pubkey": base58.Encode(kp.Public()),
		"metadata":          "AAAAAA==",
		"payer_secret_key":  "garbage",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(cnft.CodeInvalidKeypair), body["code"])
}

func TestServer_Transfer_InvalidPubkey(t *testing.T) {
	s := testServer(t)

	kp, err := solana.NewKeyPair()
	require.NoError(t, err)
	pub := base58.Encode(kp.Public())

	resp, body := post(t, s.URL+"/v1/transfer", map[string]interface{}{
		"endpoint":              "http://127.0.0.1:0",
		"tree_pubkey":           pub,
		"leaf_owner_pubkey":     pub,
		"new_owner_pubkey":      "bogus",
		"root":                  pub,
		"data_hash":             pub,
		"creator_hash":          pub,
		"nonce":                 0,
		"index":                 0,
		"payer_secret_key":      kp.ToBase58(),
		"leaf_owner_secret_key": kp.ToBase58(),
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(cnft.CodeInvalidPubkey), body["code"])
}

func TestServer_MalformedBody(t *testing.T) {
	s := testServer(t)

	resp, err := http.Post(s.URL+"/v1/create-tree", "application/json", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	s := testServer(t)

	resp, err := http.Get(s.URL + "/v1/mint")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
