package handler

import (
	"context"
	"math/big"

	"nft-marketplace/internal/adapter/http/dto"
	"nft-marketplace/internal/core/domain"
	"nft-marketplace/internal/core/ports"
	"nft-marketplace/pkg/apperror"
	"nft-marketplace/pkg/money"
	"nft-marketplace/pkg/response"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// AccountHandler handles the signed-in address's balance and ledger.
type AccountHandler struct {
	accountSvc ports.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc ports.AccountService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc}
}

// GetBalance handles GET /api/v1/accounts/me/balance.
func (h *AccountHandler) GetBalance(c *gin.Context) {
	addr, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	acct, err := h.accountSvc.Balance(c.Request.Context(), addr)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toBalanceResponse(acct))
}

// Deposit handles POST /api/v1/accounts/me/deposit.
func (h *AccountHandler) Deposit(c *gin.Context) {
	h.move(c, h.accountSvc.Deposit)
}

// Withdraw handles POST /api/v1/accounts/me/withdraw.
func (h *AccountHandler) Withdraw(c *gin.Context) {
	h.move(c, h.accountSvc.Withdraw)
}

type balanceMove func(ctx context.Context, account common.Address, amount *big.Int) (*domain.Account, error)

func (h *AccountHandler) move(c *gin.Context, fn balanceMove) {
	addr, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	amount, err := money.ParseWei(req.Amount)
	if err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	acct, err := fn(c.Request.Context(), addr, amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toBalanceResponse(acct))
}

// ListTransactions handles GET /api/v1/accounts/me/transactions.
func (h *AccountHandler) ListTransactions(c *gin.Context) {
	addr, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	page, pageSize := pageParams(c)
	params := domain.TransactionListParams{
		Account:  addr,
		Page:     page,
		PageSize: pageSize,
	}
	if t := c.Query("type"); t != "" {
		txType := domain.TransactionType(t)
		if !txType.Valid() {
			response.Error(c, apperror.Validation("unknown transaction type "+t))
			return
		}
		params.Type = &txType
	}

	txns, total, err := h.accountSvc.Transactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, toTransactionResponse(&txns[i]))
	}
	response.Paged(c, items, page, pageSize, total)
}

func toBalanceResponse(a *domain.Account) dto.BalanceResponse {
	resp := dto.BalanceResponse{
		Address:    a.Address.Hex(),
		Balance:    weiString(a.Balance),
		BalanceEth: money.FormatEther(a.Balance),
	}
	if !a.UpdatedAt.IsZero() {
		resp.UpdatedAt = formatTime(a.UpdatedAt)
	}
	return resp
}

func toTransactionResponse(tx *domain.Transaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:              tx.ID.String(),
		Account:         tx.Account.Hex(),
		TransactionType: string(tx.Type),
		Amount:          weiString(tx.Amount),
		AmountEth:       money.FormatEther(tx.Amount),
		ListingID:       tx.ListingID,
		CreatedAt:       formatTime(tx.CreatedAt),
	}
}
