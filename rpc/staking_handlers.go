package rpc

import (
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"defiledger/core/types"
	"defiledger/native/common"
)

const (
	// Request bodies are tiny JSON objects; anything near the cap is abuse.
	maxRequestBytes = 1 << 20
	// 2^256-1 is 78 decimal digits, plus slack for whitespace and a sign.
	maxAmountDigits = 80
)

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return common.Validation("rpc: malformed request body")
	}
	return nil
}

func parseOwner(raw string) (types.Address, error) {
	addr, err := types.ParseAddress(raw)
	if err != nil {
		return types.Address{}, common.Validation("rpc: invalid address")
	}
	return addr, nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) > maxAmountDigits {
		return nil, common.Validation("rpc: amount exceeds 80 digits")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, common.Validation("rpc: invalid decimal amount")
	}
	return amount, nil
}

func parseID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, common.Validation("rpc: invalid numeric id")
	}
	return id, nil
}

func (s *Server) handleStakingPools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.staking.Pools())
}

func (s *Server) handleStakingPool(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	pool, err := s.staking.PoolByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

func (s *Server) handleStakingPositions(w http.ResponseWriter, r *http.Request) {
	owner, err := parseOwner(chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.staking.Positions(owner))
}

func (s *Server) handleStakingRewards(w http.ResponseWriter, r *http.Request) {
	owner, err := parseOwner(chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, err)
		return
	}
	total, err := s.staking.TotalPendingRewards(owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pendingRewards": total.String()})
}

type createPoolRequest struct {
	Caller            string `json:"caller"`
	LockPeriodSeconds uint64 `json:"lockPeriodSeconds"`
	RateBps           uint64 `json:"rateBps"`
}

func (s *Server) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseOwner(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := s.staking.CreatePool(caller, req.LockPeriodSeconds, req.RateBps)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"poolId": id})
}

type callerRequest struct {
	Caller string `json:"caller"`
}

func (s *Server) handleTogglePool(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req callerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseOwner(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	active, err := s.staking.TogglePool(caller, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": active})
}

type stakeRequest struct {
	Caller string `json:"caller"`
	PoolID uint64 `json:"poolId"`
	Amount string `json:"amount"`
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseOwner(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	stakeID, err := s.staking.Stake(caller, req.PoolID, amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"stakeId": stakeID})
}

type stakeRefRequest struct {
	Caller  string `json:"caller"`
	StakeID uint64 `json:"stakeId"`
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	var req stakeRefRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseOwner(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	principal, reward, err := s.staking.Unstake(caller, req.StakeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"principal": principal.String(),
		"reward":    reward.String(),
	})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req stakeRefRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseOwner(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	reward, err := s.staking.ClaimRewards(caller, req.StakeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reward": reward.String()})
}
