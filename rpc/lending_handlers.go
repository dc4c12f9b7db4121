package rpc

import (
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	"defiledger/core/types"
	"defiledger/native/common"
)

func (s *Server) handleMarkets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.lending.Markets())
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	market, err := s.lending.MarketByToken(chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, market)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	owner, err := parseOwner(chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, err)
		return
	}
	info, err := s.lending.AccountInfo(owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type listMarketRequest struct {
	Caller              string `json:"caller"`
	Token               string `json:"token"`
	CollateralFactorBps uint64 `json:"collateralFactorBps"`
	BorrowRateBps       uint64 `json:"borrowRateBps"`
	SupplyRateBps       uint64 `json:"supplyRateBps"`
}

func (s *Server) handleListMarket(w http.ResponseWriter, r *http.Request) {
	var req listMarketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseOwner(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.lending.ListMarket(caller, req.Token, req.CollateralFactorBps, req.BorrowRateBps, req.SupplyRateBps); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"token": req.Token})
}

func (s *Server) handleToggleMarket(w http.ResponseWriter, r *http.Request) {
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
	active, err := s.lending.ToggleMarket(caller, chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": active})
}

type balanceRequest struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// decodeBalanceRequest parses the common caller/token/amount body shared by
// the four balance-moving endpoints, writing the error response itself when
// parsing fails.
func (s *Server) decodeBalanceRequest(w http.ResponseWriter, r *http.Request) (balanceRequest, types.Address, *big.Int, bool) {
	var req balanceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return req, types.Address{}, nil, false
	}
	caller, err := parseOwner(req.Caller)
	if err != nil {
		writeError(w, err)
		return req, types.Address{}, nil, false
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return req, types.Address{}, nil, false
	}
	return req, caller, amount, true
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	req, caller, amount, ok := s.decodeBalanceRequest(w, r)
	if !ok {
		return
	}
	if err := s.lending.Deposit(caller, req.Token, amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": req.Token, "amount": amount.String()})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	req, caller, amount, ok := s.decodeBalanceRequest(w, r)
	if !ok {
		return
	}
	if err := s.lending.Withdraw(caller, req.Token, amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": req.Token, "amount": amount.String()})
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	req, caller, amount, ok := s.decodeBalanceRequest(w, r)
	if !ok {
		return
	}
	if err := s.lending.Borrow(caller, req.Token, amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": req.Token, "amount": amount.String()})
}

func (s *Server) handleRepay(w http.ResponseWriter, r *http.Request) {
	req, caller, amount, ok := s.decodeBalanceRequest(w, r)
	if !ok {
		return
	}
	repaid, err := s.lending.Repay(caller, req.Token, amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": req.Token, "repaid": repaid.String()})
}

type liquidateRequest struct {
	Liquidator      string `json:"liquidator"`
	Borrower        string `json:"borrower"`
	BorrowToken     string `json:"borrowToken"`
	CollateralToken string `json:"collateralToken"`
	RepayAmount     string `json:"repayAmount"`
}

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	var req liquidateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	liquidator, err := parseOwner(req.Liquidator)
	if err != nil {
		writeError(w, err)
		return
	}
	borrower, err := parseOwner(req.Borrower)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, err := parseAmount(req.RepayAmount)
	if err != nil {
		writeError(w, err)
		return
	}
	repaid, seized, err := s.lending.Liquidate(liquidator, borrower, req.BorrowToken, req.CollateralToken, amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"repaid": repaid.String(),
		"seized": seized.String(),
	})
}

type setPriceRequest struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
	Price  string `json:"price"`
}

func (s *Server) handleSetPrice(w http.ResponseWriter, r *http.Request) {
	if s.oracle == nil {
		writeError(w, common.State("rpc: no oracle configured"))
		return
	}
	var req setPriceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseOwner(req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := common.RequireRole(s.roles, caller, common.RoleOracleAdmin); err != nil {
		writeError(w, err)
		return
	}
	price, err := parseAmount(req.Price)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.oracle.SetPrice(req.Token, price); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": req.Token, "price": price.String()})
}
