// Package relay implements the relayer role of the mixer: an HTTP node that
// accepts encoded Withdraw operations from anonymous senders and submits them
// to the execution runtime, so the withdrawal recipient never has to appear
// as a transaction sender. Submissions are rate limited.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"mixer/internal/mixer"
	"mixer/internal/runtime"
)

// Node is a relayer endpoint bound to one runtime and mixer program.
type Node struct {
	ID      string
	Address string

	// OnSubmission, when set, observes the outcome of every relayed
	// withdrawal that reached the runtime.
	OnSubmission func(accepted bool)

	rt       *runtime.Runtime
	program  *runtime.MixerProgram
	limiter  *RateLimiter
	log      zerolog.Logger
	server   *http.Server
	listener net.Listener
}

// NewNode creates a relay node. The limiter may be nil to disable limiting.
func NewNode(id, address string, rt *runtime.Runtime, program *runtime.MixerProgram, limiter *RateLimiter, log zerolog.Logger) *Node {
	return &Node{
		ID:      id,
		Address: address,
		rt:      rt,
		program: program,
		limiter: limiter,
		log:     log,
	}
}

// Start binds the listener and begins serving in the background. After a
// nil return, Addr reports the bound address and the node accepts requests.
func (n *Node) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/message", n.messageHandler)
	n.server = &http.Server{Addr: n.Address, Handler: mux}

	listener, err := net.Listen("tcp", n.Address)
	if err != nil {
		return fmt.Errorf("relay listen on %s: %w", n.Address, err)
	}
	n.listener = listener
	go func() {
		n.log.Info().Str("addr", n.Addr()).Msg("relay listening")
		if err := n.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			n.log.Error().Err(err).Msg("relay server stopped")
		}
	}()
	return nil
}

// Addr returns the bound listen address, useful when Address named port 0.
func (n *Node) Addr() string {
	if n.listener == nil {
		return n.Address
	}
	return n.listener.Addr().String()
}

// Stop shuts the node down.
func (n *Node) Stop(ctx context.Context) error {
	if n.server == nil {
		return nil
	}
	return n.server.Shutdown(ctx)
}

// messageHandler decodes the message envelope and dispatches on its type.
func (n *Node) messageHandler(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		n.log.Warn().Err(err).Msg("bad relay request")
		return
	}
	n.log.Debug().Str("type", msg.Type).Str("sender", msg.SenderID).Msg("relay message")

	switch msg.Type {
	case "withdraw_submit":
		var payload WithdrawSubmitPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			http.Error(w, "invalid withdraw payload", http.StatusBadRequest)
			return
		}
		n.handleWithdrawSubmit(w, &payload)
	default:
		http.Error(w, fmt.Sprintf("unknown message type %q", msg.Type), http.StatusBadRequest)
	}
}

func (n *Node) handleWithdrawSubmit(w http.ResponseWriter, payload *WithdrawSubmitPayload) {
	if n.limiter != nil && !n.limiter.Allow() {
		writeResult(w, http.StatusTooManyRequests, SubmitResultPayload{
			Accepted: false, Error: "rate limited",
		})
		return
	}
	recipient, err := parseRecipient(payload.Recipient)
	if err != nil {
		writeResult(w, http.StatusBadRequest, SubmitResultPayload{Accepted: false, Error: err.Error()})
		return
	}
	// Reject malformed operations before touching the runtime.
	ins, err := mixer.DecodeInstruction(payload.Operation)
	if err != nil {
		writeResult(w, http.StatusBadRequest, SubmitResultPayload{Accepted: false, Error: err.Error()})
		return
	}
	if ins.Tag() != mixer.TagWithdraw {
		writeResult(w, http.StatusBadRequest, SubmitResultPayload{
			Accepted: false, Error: "relay only accepts withdraw operations",
		})
		return
	}

	err = n.rt.Execute(func(tx *runtime.Txn) error {
		return n.program.Process(tx, []runtime.Address{recipient}, payload.Operation)
	})
	if n.OnSubmission != nil {
		n.OnSubmission(err == nil)
	}
	if err != nil {
		n.log.Warn().Err(err).Msg("relayed withdrawal rejected")
		writeResult(w, http.StatusConflict, SubmitResultPayload{Accepted: false, Error: err.Error()})
		return
	}
	n.log.Info().Str("recipient", recipient.String()).Msg("relayed withdrawal confirmed")
	writeResult(w, http.StatusOK, SubmitResultPayload{Accepted: true})
}

func writeResult(w http.ResponseWriter, status int, res SubmitResultPayload) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(res)
}

// SubmitWithdraw sends an encoded Withdraw operation to a relay node and
// returns its answer.
func SubmitWithdraw(addr, senderID string, operation []byte, recipient runtime.Address) (*SubmitResultPayload, error) {
	payload, err := json.Marshal(WithdrawSubmitPayload{
		Operation: operation,
		Recipient: fmt.Sprintf("%x", recipient[:]),
	})
	if err != nil {
		return nil, err
	}
	msg, err := json.Marshal(Message{Type: "withdraw_submit", Payload: payload, SenderID: senderID})
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(fmt.Sprintf("http://%s/message", addr), "application/json", bytes.NewReader(msg))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var res SubmitResultPayload
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("unexpected relay response: %s", string(body))
	}
	return &res, nil
}
