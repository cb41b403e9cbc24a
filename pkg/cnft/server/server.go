// Package server exposes the compressed NFT operations over HTTP for
// hosts that embed the library out of process.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/metaplex-go/bubblegum/pkg/cnft"
)

type Server struct {
	log *logrus.Entry
}

// New returns a server with no shared state; every request carries its
// own endpoint and key material.
func New() *Server {
	return &Server{
		log: logrus.StandardLogger().WithField("type", "cnft/server"),
	}
}

// Router mounts the operation handlers.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/v1/create-tree", s.createTree).Methods(http.MethodPost)
	r.HandleFunc("/v1/mint", s.mint).Methods(http.MethodPost)
	r.HandleFunc("/v1/transfer", s.transfer).Methods(http.MethodPost)
	r.HandleFunc("/v1/serialize-metadata", s.serializeMetadata).Methods(http.MethodPost)
	return r
}

type createTreeRequest struct {
	Endpoint             string `json:"endpoint"`
	PayerPubkey          string `json:"payer_pubkey"`
	TreeCreatorPubkey    string `json:"tree_creator_pubkey"`
	MaxDepth             uint32 `json:"max_depth"`
	MaxBufferSize        uint32 `json:"max_buffer_size"`
	PayerSecretKey       string `json:"payer_secret_key"`
	TreeCreatorSecretKey string `json:"tree_creator_secret_key"`
}

type createTreeResponse struct {
	Signature  string `json:"signature"`
	Tree       string `json:"tree"`
	TreeConfig string `json:"tree_config"`
}

func (s *Server) createTree(w http.ResponseWriter, r *http.Request) {
	var req createTreeRequest
	if !s.decode(w, r, &req) {
		return
	}

	result, err := cnft.CreateTree(
		req.Endpoint,
		req.PayerPubkey,
		req.TreeCreatorPubkey,
		req.MaxDepth,
		req.MaxBufferSize,
		req.PayerSecretKey,
		req.TreeCreatorSecretKey,
	)
	if err != nil {
		s.writeError(w, "create-tree", err)
		return
	}

	s.writeJSON(w, http.StatusOK, createTreeResponse{
		Signature:  result.Signature,
		Tree:       result.Tree,
		TreeConfig: result.TreeConfig,
	})
}

type mintRequest struct {
	Endpoint           string `json:"endpoint"`
	TreePubkey         string `json:"tree_pubkey"`
	LeafOwnerPubkey    string `json:"leaf_owner_pubkey"`
	LeafDelegatePubkey string `json:"leaf_delegate_pubkey,omitempty"`
	Metadata           string `json:"metadata"`
	PayerSecretKey     string `json:"payer_secret_key"`
	LeafOwnerSecretKey string `json:"leaf_owner_secret_key,omitempty"`
}

func (s *Server) mint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if !s.decode(w, r, &req) {
		return
	}

	sig, err := cnft.Mint(
		req.Endpoint,
		req.TreePubkey,
		req.LeafOwnerPubkey,
		req.LeafDelegatePubkey,
		req.Metadata,
		req.PayerSecretKey,
		req.LeafOwnerSecretKey,
	)
	if err != nil {
		s.writeError(w, "mint", err)
		return
	}

	s.writeJSON(w, http.StatusOK, signatureResponse{Signature: sig})
}

type transferRequest struct {
	Endpoint           string   `json:"endpoint"`
	TreePubkey         string   `json:"tree_pubkey"`
	LeafOwnerPubkey    string   `json:"leaf_owner_pubkey"`
	NewOwnerPubkey     string   `json:"new_owner_pubkey"`
	Root               string   `json:"root"`
	DataHash           string   `json:"data_hash"`
	CreatorHash        string   `json:"creator_hash"`
	Nonce              uint64   `json:"nonce"`
	Index              uint32   `json:"index"`
	Proof              []string `json:"proof"`
	PayerSecretKey     string   `json:"payer_secret_key"`
	LeafOwnerSecretKey string   `json:"leaf_owner_secret_key"`
}

type signatureResponse struct {
	Signature string `json:"signature"`
}

func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !s.decode(w, r, &req) {
		return
	}

	sig, err := cnft.Transfer(
		req.Endpoint,
		req.TreePubkey,
		req.LeafOwnerPubkey,
		req.NewOwnerPubkey,
		req.Index,
		cnft.TransferProof{
			Root:        req.Root,
			DataHash:    req.DataHash,
			CreatorHash: req.CreatorHash,
			Nonce:       req.Nonce,
			Proof:       req.Proof,
		},
		req.PayerSecretKey,
		req.LeafOwnerSecretKey,
	)
	if err != nil {
		s.writeError(w, "transfer", err)
		return
	}

	s.writeJSON(w, http.StatusOK, signatureResponse{Signature: sig})
}

type serializeMetadataRequest struct {
	Metadata json.RawMessage `json:"metadata"`
}

type serializeMetadataResponse struct {
	MetadataBase64 string `json:"metadata_base64"`
}

func (s *Server) serializeMetadata(w http.ResponseWriter, r *http.Request) {
	var req serializeMetadataRequest
	if !s.decode(w, r, &req) {
		return
	}

	serialized, err := cnft.SerializeMetadata(string(req.Metadata))
	if err != nil {
		s.writeError(w, "serialize-metadata", err)
		return
	}

	s.writeJSON(w, http.StatusOK, serializeMetadataResponse{MetadataBase64: serialized})
}

type errorResponse struct {
	Code    cnft.Code `json:"code"`
	Message string    `json:"message"`
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    cnft.CodeInvalidMetadata,
			Message: "malformed request body",
		})
		return false
	}

	return true
}

// writeError maps the taxonomy code onto an HTTP status. The error
// message may quote public inputs but never secret key material; the
// operations guarantee secrets don't reach their error chains.
func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	code := cnft.ErrorCode(err)

	status := http.StatusInternalServerError
	switch code {
	case cnft.CodeInvalidPubkey, cnft.CodeInvalidKeypair, cnft.CodeInvalidMetadata:
		status = http.StatusBadRequest
	case cnft.CodeRpcError:
		status = http.StatusBadGateway
	}

	s.log.WithFields(logrus.Fields{
		"operation": op,
		"code":      code,
	}).WithError(err).Warn("operation failed")

	s.writeJSON(w, status, errorResponse{
		Code:    code,
		Message: err.Error(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.WithError(err).Warn("failed to write response")
	}
}
