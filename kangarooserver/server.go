// Package kangarooserver is the distributed-mode counterpart to
// rpcclient: it owns a process-lifetime DP index for a configured
// search, hands out work ranges, and resolves collisions submitted by
// any number of clients — the Go translation of kangaroo_server.py.
package kangarooserver

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/tos-network/kangaroo/dp"
	"github.com/tos-network/kangaroo/ec"
	"github.com/tos-network/kangaroo/kangarooserver/storedb"
	"github.com/tos-network/kangaroo/solve"
	"github.com/tos-network/kangaroo/walk"
)

// DefaultRangeSize is used by ConfigureSearch when the caller passes a
// zero range size.
const DefaultRangeSize = uint64(1) << 40

// Server holds one configured search's state: its range ledger, DP
// index, and the global solved/solution pair. A single Server instance
// is process-lifetime; restart picks the configuration, range ledger and
// solved state back up from storedb. The DP index is held in memory only
// and starts empty after a restart.
type Server struct {
	store  *storedb.Store
	index  *dp.Index
	ledger *RangeLedger

	// mu guards the configuration block and the solved/solution pair, per
	// the "first solve wins" contract — one global mutex, not per-field
	// atomics, since configure/submit/status all need a consistent view.
	mu sync.Mutex

	configured bool
	pubKeyHex  string
	startHex   string
	endHex     string
	dpBits     int
	bitRange   int

	q      ec.Point // absolute target, parsed from pubKeyHex
	s      ec.Scalar
	localQ ec.Point
	h      ec.Scalar

	solved   bool
	solution ec.Scalar
}

// NewServer returns a Server backed by store, restoring any previously
// configured search.
func NewServer(store *storedb.Store) (*Server, error) {
	srv := &Server{
		store:  store,
		index:  dp.NewIndex(),
		ledger: NewRangeLedger(),
	}
	if err := srv.restore(); err != nil {
		return nil, err
	}
	return srv, nil
}

func (s *Server) restore() error {
	cfg, ok, err := s.store.LoadConfig()
	if err != nil {
		return fmt.Errorf("kangarooserver: restore config: %w", err)
	}
	if ok {
		if err := s.applyConfig(cfg); err != nil {
			return fmt.Errorf("kangarooserver: restore config: %w", err)
		}
		records, err := s.store.LoadRanges()
		if err != nil {
			return fmt.Errorf("kangarooserver: restore ranges: %w", err)
		}
		restored := make([]WorkRange, len(records))
		for i, r := range records {
			start, err := ec.ScalarFromHex(r.StartHex)
			if err != nil {
				return fmt.Errorf("kangarooserver: restore range %s: %w", r.ID, err)
			}
			end, err := ec.ScalarFromHex(r.EndHex)
			if err != nil {
				return fmt.Errorf("kangarooserver: restore range %s: %w", r.ID, err)
			}
			restored[i] = WorkRange{
				ID: r.ID, Start: start, End: end,
				BitRange: r.BitRange, DPBits: r.DPBits,
				Status: RangeStatus(r.Status), AssignedTo: r.AssignedTo,
			}
		}
		s.ledger.Restore(restored)
	}

	solved, solution, err := s.store.LoadSolved()
	if err != nil {
		return fmt.Errorf("kangarooserver: restore solved state: %w", err)
	}
	if solved {
		k, err := ec.ScalarFromHex(solution)
		if err != nil {
			return fmt.Errorf("kangarooserver: restore solution: %w", err)
		}
		s.solved = true
		s.solution = k
	}
	return nil
}

func (s *Server) applyConfig(cfg storedb.Config) error {
	start, err := ec.ScalarFromHex(cfg.StartRange)
	if err != nil {
		return fmt.Errorf("start_range: %w", err)
	}
	q, err := ec.PointFromHex(cfg.PubKey)
	if err != nil {
		return fmt.Errorf("pubkey: %w", err)
	}
	s.pubKeyHex = cfg.PubKey
	s.startHex = cfg.StartRange
	s.endHex = cfg.EndRange
	s.dpBits = cfg.DPBits
	s.bitRange = cfg.BitRange
	s.q = q
	s.s = start
	s.localQ, s.h = walk.RangeConstants(q, start, cfg.BitRange)
	s.configured = true
	return nil
}

// ConfigureSearch partitions [startHex, endHex) into per-client chunks
// of rangeSize and resets the DP index for a fresh search. Mirrors
// KangarooServer.configure_search.
func (s *Server) ConfigureSearch(startHex, endHex, pubKeyHex string, dpBits int, rangeSizeHex string) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.solved {
		return false, "search already solved"
	}

	start, err := ec.ScalarFromHex(startHex)
	if err != nil {
		return false, fmt.Sprintf("invalid start_range: %v", err)
	}
	end, err := ec.ScalarFromHex(endHex)
	if err != nil {
		return false, fmt.Sprintf("invalid end_range: %v", err)
	}
	q, err := ec.PointFromHex(pubKeyHex)
	if err != nil {
		return false, fmt.Sprintf("invalid pubkey: %v", err)
	}
	rangeSize, err := ec.ScalarFromHex(rangeSizeHex)
	if err != nil {
		return false, fmt.Sprintf("invalid range_size: %v", err)
	}
	if rangeSize.IsZero() {
		rangeSize = ec.ScalarFromUint64(DefaultRangeSize)
	}
	if dpBits < 14 || dpBits > 60 {
		return false, "dp_bits out of range [14,60]"
	}

	// bitRange (R) is chosen so that 2^R approximates the range width,
	// which keeps H = 2^(R-1) centered on it — width.BitLen() itself is
	// one more than that (it counts the bit needed to represent width as
	// an unsigned magnitude, not log2 of it).
	width := end.Sub(start)
	bitRange := width.BitLen() - 1

	s.pubKeyHex = pubKeyHex
	s.startHex = startHex
	s.endHex = endHex
	s.dpBits = dpBits
	s.bitRange = bitRange
	s.q = q
	s.s = start
	s.localQ, s.h = walk.RangeConstants(q, start, bitRange)
	s.configured = true

	s.index = dp.NewIndex()
	n := s.ledger.Generate(start, end, rangeSize, bitRange, dpBits)

	if err := s.store.SaveConfig(storedb.Config{
		StartRange: startHex, EndRange: endHex, PubKey: pubKeyHex,
		DPBits: dpBits, BitRange: bitRange, RangeSize: rangeSizeHex,
	}); err != nil {
		log.Error("kangarooserver: failed to persist config", "err", err)
	}
	if err := s.store.ClearRanges(); err != nil {
		log.Error("kangarooserver: failed to clear persisted ranges", "err", err)
	}
	for _, r := range s.ledger.Snapshot() {
		if err := s.store.SaveRange(toRangeRecord(r)); err != nil {
			log.Error("kangarooserver: failed to persist range", "id", r.ID, "err", err)
		}
	}

	log.Info("kangarooserver: search configured", "start", startHex, "end", endHex, "pubkey", pubKeyHex, "dpBits", dpBits, "ranges", n)
	return true, "search configured successfully"
}

func toRangeRecord(r WorkRange) storedb.RangeRecord {
	return storedb.RangeRecord{
		ID: r.ID, StartHex: r.Start.Hex(), EndHex: r.End.Hex(),
		BitRange: r.BitRange, DPBits: r.DPBits,
		Status: string(r.Status), AssignedTo: r.AssignedTo,
	}
}

// GetWork assigns the next pending range to clientID.
func (s *Server) GetWork(clientID string) (WorkRange, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.solved {
		return WorkRange{}, false
	}
	r, ok := s.ledger.Assign(clientID)
	if !ok {
		return WorkRange{}, false
	}
	if err := s.store.SaveRange(toRangeRecord(r)); err != nil {
		log.Error("kangarooserver: failed to persist range assignment", "id", r.ID, "err", err)
	}
	log.Info("kangarooserver: assigned work", "range", r.ID, "client", clientID)
	return r, true
}

// SubmitResult is the outcome of SubmitPoints: either "ok" (more points
// needed), or "solved" with a solution hex.
type SubmitResult struct {
	Status   string
	Solution string
}

// SubmitPoints ingests records from clientID, resolving any collision
// against the server's global index. Mirrors submit_points + 4.E.
func (s *Server) SubmitPoints(clientID string, records []dp.Record) SubmitResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.solved {
		return SubmitResult{Status: "solved", Solution: s.solution.Hex()}
	}
	if !s.configured {
		return SubmitResult{Status: "ok"}
	}

	for _, rec := range records {
		prior := s.index.FindOrInsert(rec)
		if prior == nil {
			continue
		}
		class := solve.Classify(*prior, rec)
		if class == solve.Ignored {
			continue
		}
		if class == solve.Inconsistent {
			log.Warn("kangarooserver: inconsistent same-type collision", "client", clientID)
			continue
		}

		k, ok := solve.Resolve(*prior, rec, s.localQ, s.h)
		if !ok {
			continue
		}
		absolute := s.s.Add(k)
		if !ec.MultiplyG(absolute).Equal(s.q) {
			log.Warn("kangarooserver: candidate solution failed verification", "client", clientID)
			continue
		}

		s.solved = true
		s.solution = absolute
		if err := s.store.SaveSolved(true, absolute.Hex()); err != nil {
			log.Error("kangarooserver: failed to persist solution", "err", err)
		}
		log.Info("kangarooserver: collision resolved", "client", clientID, "solution", absolute.Hex())
		return SubmitResult{Status: "solved", Solution: absolute.Hex()}
	}

	return SubmitResult{Status: "ok"}
}

// Status reports the global solved flag and solution hex.
func (s *Server) Status() (solved bool, solution string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.solved {
		return false, ""
	}
	return true, s.solution.Hex()
}

// --- HTTP transport ---

type configureRequest struct {
	StartRange string `json:"start_range"`
	EndRange   string `json:"end_range"`
	PubKey     string `json:"pubkey"`
	DPBits     int    `json:"dp_bits"`
	RangeSize  string `json:"range_size"`
}

type configureResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type getWorkRequest struct {
	ClientID string `json:"client_id"`
}

type workPayload struct {
	RangeID    string `json:"range_id"`
	StartRange string `json:"start_range"`
	EndRange   string `json:"end_range"`
	BitRange   int    `json:"bit_range"`
	DPBits     int    `json:"dp_bits"`
	PubKey     string `json:"pubkey"`
}

type getWorkResponse struct {
	Success bool         `json:"success"`
	Work    *workPayload `json:"work,omitempty"`
	Message string       `json:"message,omitempty"`
}

type pointPayload struct {
	XCoord   string `json:"x_coord"`
	Distance string `json:"distance"`
	KangType int    `json:"kang_type"`
}

type submitPointsRequest struct {
	ClientID string         `json:"client_id"`
	Points   []pointPayload `json:"points"`
}

type submitPointsResponse struct {
	Status          string `json:"status"`
	Solution        string `json:"solution,omitempty"`
	PointsProcessed int    `json:"points_processed,omitempty"`
}

type statusResponse struct {
	Solved         bool   `json:"solved"`
	Solution       string `json:"solution,omitempty"`
	DPCount        int    `json:"dp_count"`
	RangesPending  int    `json:"ranges_pending"`
	RangesAssigned int    `json:"ranges_assigned"`
}

// Handler builds the server's net/http.ServeMux, matching the teacher's
// plain net/http routing style (no extra router dependency).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/configure", s.handleConfigure)
	mux.HandleFunc("/api/get_work", s.handleGetWork)
	mux.HandleFunc("/api/submit_points", s.handleSubmitPoints)
	mux.HandleFunc("/api/status", s.handleStatus)
	return mux
}

func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req configureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, configureResponse{Success: false, Message: err.Error()})
		return
	}
	ok, msg := s.ConfigureSearch(req.StartRange, req.EndRange, req.PubKey, req.DPBits, req.RangeSize)
	writeJSON(w, configureResponse{Success: ok, Message: msg})
}

func (s *Server) handleGetWork(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req getWorkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, getWorkResponse{Success: false, Message: err.Error()})
		return
	}
	work, ok := s.GetWork(req.ClientID)
	if !ok {
		writeJSON(w, getWorkResponse{Success: false, Message: "no work available"})
		return
	}
	writeJSON(w, getWorkResponse{Success: true, Work: &workPayload{
		RangeID: work.ID, StartRange: work.Start.Hex(), EndRange: work.End.Hex(),
		BitRange: work.BitRange, DPBits: work.DPBits, PubKey: s.pubKeyHex,
	}})
}

func (s *Server) handleSubmitPoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req submitPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records := make([]dp.Record, 0, len(req.Points))
	for _, p := range req.Points {
		rec, err := pointToRecord(p)
		if err != nil {
			log.Warn("kangarooserver: dropping malformed submitted point", "client", req.ClientID, "err", err)
			continue
		}
		records = append(records, rec)
	}

	result := s.SubmitPoints(req.ClientID, records)
	writeJSON(w, submitPointsResponse{Status: result.Status, Solution: result.Solution, PointsProcessed: len(records)})
}

func pointToRecord(p pointPayload) (dp.Record, error) {
	keyBytes, err := hexDecodeFixed(p.XCoord, dp.KeySize)
	if err != nil {
		return dp.Record{}, fmt.Errorf("x_coord: %w", err)
	}
	dist, err := ec.ScalarFromHex(p.Distance)
	if err != nil {
		return dp.Record{}, fmt.Errorf("distance: %w", err)
	}
	kind := dp.KangarooType(p.KangType)
	if !kind.Valid() {
		return dp.Record{}, fmt.Errorf("kang_type: invalid value %d", p.KangType)
	}
	var key [dp.KeySize]byte
	copy(key[:], keyBytes)
	return dp.NewRecord(key, dist, kind), nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	solved, solution := s.Status()
	counts := s.ledger.CountByStatus()
	writeJSON(w, statusResponse{
		Solved:         solved,
		Solution:       solution,
		DPCount:        s.index.Len(),
		RangesPending:  counts[RangePending],
		RangesAssigned: counts[RangeAssigned],
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("kangarooserver: failed to encode response", "err", err)
	}
}

// ListenAndServe starts the HTTP server on addr with sane timeouts,
// blocking until it returns an error (including on graceful shutdown).
func ListenAndServe(addr string, s *Server) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return srv.ListenAndServe()
}

func hexDecodeFixed(s string, n int) ([]byte, error) {
	s = trimHexPrefix(s)
	if len(s)%2 != 0 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(raw) > n {
		return nil, fmt.Errorf("hex value %q overflows %d bytes", s, n)
	}
	out := make([]byte, n)
	copy(out[n-len(raw):], raw)
	return out, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		return s[2:]
	}
	return s
}
