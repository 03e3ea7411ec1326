package chainsync

import (
	"sync"
	"testing"
	"time"

	"github.com/tobysharp/timechain/internal/chain"
	"github.com/tobysharp/timechain/internal/consensus"
	"github.com/tobysharp/timechain/pkg/block"
	"github.com/tobysharp/timechain/pkg/types"
)

// testBits is the loosest valid compact target: mining a header against it
// succeeds within a handful of nonces.
const testBits = 0x207fffff

func mineTestHeader(t *testing.T, prevHash types.Hash, timestamp uint32) *block.Header {
	t.Helper()
	h := &block.Header{PrevBlockHash: prevHash, Timestamp: timestamp, Bits: testBits, Version: 1}
	for nonce := uint32(0); ; nonce++ {
		h.Nonce = nonce
		if h.IsProofOfWork() {
			return h
		}
	}
}

func newTestValidator() *consensus.HeaderValidator {
	v := consensus.NewHeaderValidator()
	v.Now = func() time.Time { return time.Unix(2_000_000_000, 0) }
	return v
}

func newGenesisTimechain(t *testing.T) (*chain.HeaderTimechain, chain.HeaderContext) {
	t.Helper()
	tc := chain.NewHeaderTimechain(chain.DefaultMaxKeepDepth)
	gen := chain.GenesisContext(&block.Header{Timestamp: 1_000_000_000, Bits: testBits, Nonce: 0})
	if err := tc.AddGenesis(gen); err != nil {
		t.Fatalf("AddGenesis: %v", err)
	}
	return tc, gen
}

type fakeHeaderHandler struct {
	mu        sync.Mutex
	requested []types.Hash
	errs      []error
	completed []string
	reqFunc   func(peer string, locator types.Hash) error
}

func (h *fakeHeaderHandler) RequestHeaders(peer string, locator types.Hash) error {
	h.mu.Lock()
	h.requested = append(h.requested, locator)
	fn := h.reqFunc
	h.mu.Unlock()
	if fn != nil {
		return fn(peer, locator)
	}
	return nil
}

func (h *fakeHeaderHandler) ReportHeaderError(peer string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}

func (h *fakeHeaderHandler) ReportHeaderComplete(peer string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.completed = append(h.completed, peer)
}

func waitForCondition(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestHeaderSync_StartSyncRequestsFromTip(t *testing.T) {
	tc, gen := newGenesisTimechain(t)
	handler := &fakeHeaderHandler{}
	hs := NewHeaderSync[string](tc, newTestValidator(), handler)
	defer hs.Stop()

	if err := hs.StartSync("peer1"); err != nil {
		t.Fatalf("StartSync: %v", err)
	}
	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.requested) != 1 || handler.requested[0] != gen.Hash {
		t.Fatalf("requested = %v, want [%v]", handler.requested, gen.Hash)
	}
}

func TestHeaderSync_OnHeadersAdmitsValidBatchAndCompletes(t *testing.T) {
	tc, gen := newGenesisTimechain(t)
	handler := &fakeHeaderHandler{}
	hs := NewHeaderSync[string](tc, newTestValidator(), handler)
	defer hs.Stop()

	if err := hs.StartSync("peer1"); err != nil {
		t.Fatalf("StartSync: %v", err)
	}

	var headers []*block.Header
	prevHash := gen.Hash
	ts := gen.Header.Timestamp
	for i := 0; i < 3; i++ {
		ts += 600
		h := mineTestHeader(t, prevHash, ts)
		headers = append(headers, h)
		prevHash = h.ComputeHash()
	}

	if err := hs.OnHeaders("peer1", headers); err != nil {
		t.Fatalf("OnHeaders: %v", err)
	}

	waitForCondition(t, time.Second, func() bool { return tc.Height() == 3 })

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.completed) != 1 || handler.completed[0] != "peer1" {
		t.Fatalf("completed = %v, want [peer1]", handler.completed)
	}
	if len(handler.errs) != 0 {
		t.Fatalf("unexpected errors: %v", handler.errs)
	}
}

func TestHeaderSync_OnHeadersWithoutOutstandingRequestErrors(t *testing.T) {
	tc, _ := newGenesisTimechain(t)
	handler := &fakeHeaderHandler{}
	hs := NewHeaderSync[string](tc, newTestValidator(), handler)
	defer hs.Stop()

	if err := hs.OnHeaders("peer1", nil); err == nil {
		t.Fatal("expected error for unsolicited headers")
	}
}

func TestHeaderSync_InvalidHeaderReportsErrorAndDropsPeerQueue(t *testing.T) {
	tc, gen := newGenesisTimechain(t)
	handler := &fakeHeaderHandler{}
	hs := NewHeaderSync[string](tc, newTestValidator(), handler)
	defer hs.Stop()

	if err := hs.StartSync("peer1"); err != nil {
		t.Fatalf("StartSync: %v", err)
	}

	// A header whose prev_block_hash names no header in the timechain fails
	// the parent lookup on the batch's first and only entry.
	bad := mineTestHeader(t, types.Hash{0xee}, gen.Header.Timestamp+600)

	if err := hs.OnHeaders("peer1", []*block.Header{bad}); err != nil {
		t.Fatalf("OnHeaders: %v", err)
	}

	waitForCondition(t, time.Second, func() bool {
		handler.mu.Lock()
		defer handler.mu.Unlock()
		return len(handler.errs) == 1
	})

	if tc.Height() != 0 {
		t.Fatalf("chain height = %d, want 0 (invalid header must not be admitted)", tc.Height())
	}
}

func TestHeaderSync_FullBatchRequestsMore(t *testing.T) {
	tc, gen := newGenesisTimechain(t)
	handler := &fakeHeaderHandler{}
	hs := NewHeaderSync[string](tc, newTestValidator(), handler)
	defer hs.Stop()

	if err := hs.StartSync("peer1"); err != nil {
		t.Fatalf("StartSync: %v", err)
	}

	headers := make([]*block.Header, MaxHeadersPerMessage)
	prevHash := gen.Hash
	ts := gen.Header.Timestamp
	for i := range headers {
		ts += 600
		h := mineTestHeader(t, prevHash, ts)
		headers[i] = h
		prevHash = h.ComputeHash()
	}

	if err := hs.OnHeaders("peer1", headers); err != nil {
		t.Fatalf("OnHeaders: %v", err)
	}

	handler.mu.Lock()
	requestCount := len(handler.requested)
	handler.mu.Unlock()
	if requestCount != 2 {
		t.Fatalf("requested %d times, want 2 (initial + follow-up for a full batch)", requestCount)
	}
}
