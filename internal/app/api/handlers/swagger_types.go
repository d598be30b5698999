package handlers

import (
	"github.com/ship-kit/billing/internal/app/service/entitlement"
	"github.com/ship-kit/billing/internal/app/service/ledger"
	"github.com/ship-kit/billing/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespEntitlement wraps an entitlement projection in the standard envelope.
type RespEntitlement struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    entitlement.Entitlement  `json:"data"`
}

// RespScanPayments wraps a ledger listing in the standard envelope.
type RespScanPayments struct {
	Code    response.APIResponseCode    `json:"code"`
	Message string                      `json:"message"`
	Data    ledger.ScanPaymentsResponse `json:"data"`
}
