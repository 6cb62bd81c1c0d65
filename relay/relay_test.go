// relay_test.go - Relay envelope, handler, and rate limiting tests.

package relay

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"mixer/internal/mixer"
	"mixer/internal/runtime"
	"mixer/internal/transactions/withdraw"
)

const denomination = 1000

// relayFixture holds a relay node over an initialized pool with one
// deposited note.
type relayFixture struct {
	node      *Node
	rt        *runtime.Runtime
	program   *runtime.MixerProgram
	note      *mixer.Note
	tree      *mixer.Tree
	recipient runtime.Address
}

func newFixture(t *testing.T, limiter *RateLimiter) *relayFixture {
	t.Helper()

	log := zerolog.Nop()
	rt := runtime.New(log)
	id, err := runtime.NewAddress()
	require.NoError(t, err)
	p := &runtime.MixerProgram{ID: id, Verifier: withdraw.FakeVerifier{}, Log: log}
	err = rt.Execute(func(tx *runtime.Txn) error {
		return p.Process(tx, nil, mixer.EncodeInitialize(denomination))
	})
	require.NoError(t, err)

	note, err := mixer.NewNote()
	require.NoError(t, err)
	tree := mixer.NewTree()
	_, err = tree.Insert(note.Commitment)
	require.NoError(t, err)
	root := tree.Root()
	data, err := mixer.EncodePushRoot(root[:])
	require.NoError(t, err)
	err = rt.Execute(func(tx *runtime.Txn) error {
		return p.Process(tx, nil, data)
	})
	require.NoError(t, err)
	rt.Fund(p.VaultAddress(), denomination)

	recipient, err := runtime.NewAddress()
	require.NoError(t, err)

	return &relayFixture{
		node:      NewNode("relay-test", "127.0.0.1:0", rt, p, limiter, log),
		rt:        rt,
		program:   p,
		note:      note,
		tree:      tree,
		recipient: recipient,
	}
}

// withdrawOperation builds an encoded Withdraw operation for the fixture's
// note using the fake prover.
func (f *relayFixture) withdrawOperation(t *testing.T) []byte {
	t.Helper()

	path, err := f.tree.Proof(0)
	require.NoError(t, err)
	req := &withdraw.ProofRequest{
		Root:           path.Root,
		NullifierHash:  f.note.NullifierHash(),
		RecipientField: mixer.RecipientFieldFromAddress(f.recipient[:]),
		Nullifier:      f.note.Nullifier,
		Secret:         f.note.Secret,
		Siblings:       path.Siblings,
		IsEven:         path.IsEven,
	}
	proof, witness, err := withdraw.FakeProver{}.Prove(context.Background(), req)
	require.NoError(t, err)
	root := req.Root
	nh := req.NullifierHash
	rf := req.RecipientField
	op, err := mixer.EncodeWithdraw(root[:], nh[:], rf[:], append(proof, witness...))
	require.NoError(t, err)
	return op
}

// post sends a message envelope straight at the handler.
func (f *relayFixture) post(t *testing.T, msgType string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	body, err := json.Marshal(Message{Type: msgType, Payload: raw, SenderID: "test"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/message", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.node.messageHandler(rec, req)
	return rec
}

func TestMessageEnvelope(t *testing.T) {
	t.Run("Operation Bytes Round Trip", func(t *testing.T) {
		op := OperationBytes{1, 2, 3, 255}
		data, err := json.Marshal(op)
		require.NoError(t, err)
		var got OperationBytes
		require.NoError(t, json.Unmarshal(data, &got))
		require.Equal(t, op, got)
	})

	t.Run("Operation Bytes Rejects Non Strings", func(t *testing.T) {
		var got OperationBytes
		require.Error(t, json.Unmarshal([]byte(`42`), &got))
	})

	t.Run("Recipient Parsing", func(t *testing.T) {
		addr, err := runtime.NewAddress()
		require.NoError(t, err)
		got, err := parseRecipient(hex.EncodeToString(addr[:]))
		require.NoError(t, err)
		require.Equal(t, addr, got)

		_, err = parseRecipient("zz")
		require.Error(t, err)
		_, err = parseRecipient("abcd")
		require.Error(t, err)
	})
}

func TestWithdrawSubmit(t *testing.T) {
	t.Run("Accepted", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.post(t, "withdraw_submit", WithdrawSubmitPayload{
			Operation: f.withdrawOperation(t),
			Recipient: hex.EncodeToString(f.recipient[:]),
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var res SubmitResultPayload
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.True(t, res.Accepted)
		require.EqualValues(t, denomination, f.rt.Balance(f.recipient))
	})

	t.Run("Replay Conflicts", func(t *testing.T) {
		f := newFixture(t, nil)
		op := f.withdrawOperation(t)
		payload := WithdrawSubmitPayload{Operation: op, Recipient: hex.EncodeToString(f.recipient[:])}

		require.Equal(t, http.StatusOK, f.post(t, "withdraw_submit", payload).Code)
		rec := f.post(t, "withdraw_submit", payload)
		require.Equal(t, http.StatusConflict, rec.Code)

		var res SubmitResultPayload
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.False(t, res.Accepted)
		require.EqualValues(t, denomination, f.rt.Balance(f.recipient))
	})

	t.Run("Only Withdraw Operations", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.post(t, "withdraw_submit", WithdrawSubmitPayload{
			Operation: mixer.EncodeInitialize(1),
			Recipient: hex.EncodeToString(f.recipient[:]),
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Bad Recipient", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.post(t, "withdraw_submit", WithdrawSubmitPayload{
			Operation: f.withdrawOperation(t),
			Recipient: "not-hex",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Unknown Message Type", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.post(t, "root_gossip", struct{}{})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Rate Limited", func(t *testing.T) {
		f := newFixture(t, NewRateLimiter(1, 1, time.Hour))
		payload := WithdrawSubmitPayload{
			Operation: f.withdrawOperation(t),
			Recipient: hex.EncodeToString(f.recipient[:]),
		}
		require.Equal(t, http.StatusOK, f.post(t, "withdraw_submit", payload).Code)
		require.Equal(t, http.StatusTooManyRequests, f.post(t, "withdraw_submit", payload).Code)
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("Consumes Tokens", func(t *testing.T) {
		rl := NewRateLimiter(2, 1, time.Hour)
		require.True(t, rl.Allow())
		require.True(t, rl.Allow())
		require.False(t, rl.Allow())
		require.Equal(t, 0, rl.Tokens())
	})

	t.Run("Refills Over Time", func(t *testing.T) {
		rl := NewRateLimiter(1, 1, 10*time.Millisecond)
		require.True(t, rl.Allow())
		require.False(t, rl.Allow())
		time.Sleep(25 * time.Millisecond)
		require.True(t, rl.Allow())
	})

	t.Run("Never Exceeds Capacity", func(t *testing.T) {
		rl := NewRateLimiter(3, 10, time.Millisecond)
		time.Sleep(10 * time.Millisecond)
		require.True(t, rl.Allow())
		require.LessOrEqual(t, rl.Tokens(), 3)
	})
}

func TestSubmitOverWire(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.node.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, f.node.Stop(ctx))
	}()

	res, err := SubmitWithdraw(f.node.Addr(), "client-test", f.withdrawOperation(t), f.recipient)
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.EqualValues(t, denomination, f.rt.Balance(f.recipient))

	// Same operation again arrives the same way and is refused.
	res, err = SubmitWithdraw(f.node.Addr(), "client-test", f.withdrawOperation(t), f.recipient)
	require.NoError(t, err)
	require.False(t, res.Accepted)
	require.Contains(t, res.Error, "nullifier")
}
