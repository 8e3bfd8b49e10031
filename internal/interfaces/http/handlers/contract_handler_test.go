package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"agrimarket.walletd/internal/domain/entities"
	domainerrors "agrimarket.walletd/internal/domain/errors"
)

type statsServiceStub struct {
	stats *entities.ContractStats
	err   error
}

func (s *statsServiceStub) Stats(context.Context) (*entities.ContractStats, error) {
	return s.stats, s.err
}

func TestContractHandler_Stats(t *testing.T) {
	stub := &statsServiceStub{stats: &entities.ContractStats{
		ContractAddress: "0x1111111111111111111111111111111111111111",
		ChainID:         11155111,
		BatchCount:      "4",
		OrderCount:      "9",
	}}
	h := &ContractHandler{contract: stub}
	r := newTestRouter()
	r.GET("/contract/stats", h.Stats)

	rec := doJSON(t, r, http.MethodGet, "/contract/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"stats":{"contractAddress":"0x1111111111111111111111111111111111111111","chainId":11155111,"batchCount":"4","orderCount":"9"}}`, rec.Body.String())

	stub.err = domainerrors.ErrWalletNotConnected
	requireErrorCode(t, doJSON(t, r, http.MethodGet, "/contract/stats", nil), http.StatusUnauthorized, domainerrors.CodeWalletNotConnected)

	stub.err = domainerrors.ErrNetworkConnectivity
	requireErrorCode(t, doJSON(t, r, http.MethodGet, "/contract/stats", nil), http.StatusBadGateway, domainerrors.CodeNetworkConnectivity)
}
