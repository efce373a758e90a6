package badtoken

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// minAmount is an arbitrary amount large enough that small relative transfer
// fees should be visible against it.
var minAmount = big.NewInt(100_000)

// maxRetries bounds how many times detection is retried when the owner's
// observed balance turns out to have changed by the time the trace runs.
const maxRetries = 3

// Detector simulates a round-trip transfer of a token through the
// settlement contract to classify whether it behaves safely enough to settle.
type Detector struct {
	Tracer             Tracer
	Finder             OwnerFinder
	SettlementContract common.Address
}

// Detect classifies token, retrying internally on a transient balance race.
func (d *Detector) Detect(ctx context.Context, token common.Address) (TokenQuality, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		quality, err := d.detectOnce(ctx, token)
		switch {
		case err == nil:
			return quality, nil
		case err == errBalanceChanged:
			lastErr = err
			continue
		default:
			return TokenQuality{}, err
		}
	}
	return TokenQuality{}, lastErr
}

func (d *Detector) detectOnce(ctx context.Context, token common.Address) (TokenQuality, error) {
	takeFrom, amount, found, err := d.Finder.FindOwner(ctx, token, minAmount)
	if err != nil {
		return TokenQuality{}, err
	}
	if !found {
		return Bad("no pool"), nil
	}

	requests, err := d.createTraceRequest(token, amount, takeFrom)
	if err != nil {
		return TokenQuality{}, fmt.Errorf("building trace request: %w", err)
	}
	traces, err := d.Tracer.TraceMany(ctx, requests)
	if err != nil {
		return TokenQuality{}, fmt.Errorf("failed to trace for bad token detection: %w", err)
	}
	return handleResponse(traces, amount)
}

// arbitraryRecipient derives a deterministic address with (almost certainly)
// no prior balance, so the out-transfer trace exercises the token's ordinary
// path rather than a special-cased pool or settlement-exempt address.
func arbitraryRecipient() common.Address {
	hash := crypto.Keccak256([]byte("moo"))
	key, err := crypto.ToECDSA(hash)
	if err != nil {
		panic("badtoken: keccak256(\"moo\") is not a valid secp256k1 scalar: " + err.Error())
	}
	return crypto.PubkeyToAddress(key.PublicKey)
}

// createTraceRequest builds the 9-call simulated sequence: observe balances,
// transfer the full amount into the settlement contract, observe again,
// transfer it back out to an arbitrary fresh address, observe again, then
// probe that the token allows an unlimited approval.
func (d *Detector) createTraceRequest(token common.Address, amount *big.Int, takeFrom common.Address) ([]CallRequest, error) {
	recipient := arbitraryRecipient()

	balanceOfCall := func(account common.Address) (CallRequest, error) {
		data, err := packBalanceOf(account)
		if err != nil {
			return CallRequest{}, err
		}
		return CallRequest{To: token, Data: data}, nil
	}
	transferCall := func(from common.Address, to common.Address) (CallRequest, error) {
		data, err := packTransfer(to, amount)
		if err != nil {
			return CallRequest{}, err
		}
		return CallRequest{From: &from, To: token, Data: data}, nil
	}

	var requests []CallRequest

	// 0: owner's balance before anything happens.
	req, err := balanceOfCall(takeFrom)
	if err != nil {
		return nil, err
	}
	requests = append(requests, req)
	// 1: settlement contract's balance before the in-transfer.
	req, err = balanceOfCall(d.SettlementContract)
	if err != nil {
		return nil, err
	}
	requests = append(requests, req)
	// 2: transfer the full amount from the owner into the settlement contract.
	req, err = transferCall(takeFrom, d.SettlementContract)
	if err != nil {
		return nil, err
	}
	requests = append(requests, req)
	// 3: settlement contract's balance after the in-transfer.
	req, err = balanceOfCall(d.SettlementContract)
	if err != nil {
		return nil, err
	}
	requests = append(requests, req)
	// 4: recipient's balance before the out-transfer.
	req, err = balanceOfCall(recipient)
	if err != nil {
		return nil, err
	}
	requests = append(requests, req)
	// 5: transfer the full amount from the settlement contract out to recipient.
	req, err = transferCall(d.SettlementContract, recipient)
	if err != nil {
		return nil, err
	}
	requests = append(requests, req)
	// 6: settlement contract's balance after the out-transfer.
	req, err = balanceOfCall(d.SettlementContract)
	if err != nil {
		return nil, err
	}
	requests = append(requests, req)
	// 7: recipient's balance after the out-transfer.
	req, err = balanceOfCall(recipient)
	if err != nil {
		return nil, err
	}
	requests = append(requests, req)
	// 8: settlement contract can grant an unlimited approval to recipient.
	approveData, err := packApprove(recipient, MaxUint256)
	if err != nil {
		return nil, err
	}
	requests = append(requests, CallRequest{From: &d.SettlementContract, To: token, Data: approveData})

	return requests, nil
}

func decodeU256(tr TraceResult) (*big.Int, error) {
	if len(tr.Output) != 32 {
		return nil, fmt.Errorf("invalid length")
	}
	return new(big.Int).SetBytes(tr.Output), nil
}

// ensureTransactionOkAndGetGas reports the gas used by a simulated
// state-changing call, or the revert reason if it failed.
func ensureTransactionOkAndGetGas(tr TraceResult) (gas *big.Int, failReason string, err error) {
	if tr.Trace == nil {
		return nil, "", fmt.Errorf("trace not set")
	}
	if tr.Trace.Error != "" {
		return nil, tr.Trace.Error, nil
	}
	if tr.Trace.GasUsed == nil {
		return nil, "", fmt.Errorf("no error but also no call result")
	}
	return tr.Trace.GasUsed, "", nil
}

// handleResponse interprets the 9 traces per createTraceRequest's layout.
func handleResponse(traces []TraceResult, amount *big.Int) (TokenQuality, error) {
	if len(traces) != 9 {
		return TokenQuality{}, fmt.Errorf("unexpected number of traces")
	}

	ownerBalance, err := decodeU256(traces[0])
	if err != nil {
		return Bad("can't decode initial token owner balance"), nil
	}
	if ownerBalance.Cmp(amount) < 0 {
		return TokenQuality{}, errBalanceChanged
	}

	gasIn, failReason, err := ensureTransactionOkAndGetGas(traces[2])
	if err != nil {
		return TokenQuality{}, err
	}
	if failReason != "" {
		return Bad(fmt.Sprintf("can't transfer into settlement contract: %s", failReason)), nil
	}

	gasOut, failReason, err := ensureTransactionOkAndGetGas(traces[5])
	if err != nil {
		return TokenQuality{}, err
	}
	if failReason != "" {
		return Bad(fmt.Sprintf("can't transfer out of settlement contract: %s", failReason)), nil
	}

	balanceBeforeIn, err := decodeU256(traces[1])
	if err != nil {
		return Bad("can't decode initial settlement balance"), nil
	}
	balanceAfterIn, err := decodeU256(traces[3])
	if err != nil {
		return Bad("can't decode middle settlement balance"), nil
	}
	balanceAfterOut, err := decodeU256(traces[6])
	if err != nil {
		return Bad("can't decode final settlement balance"), nil
	}
	balanceRecipientBefore, err := decodeU256(traces[4])
	if err != nil {
		return Bad("can't decode recipient balance before"), nil
	}
	balanceRecipientAfter, err := decodeU256(traces[7])
	if err != nil {
		return Bad("can't decode recipient balance after"), nil
	}

	computedBalanceAfterIn := new(big.Int).Add(balanceBeforeIn, amount)
	if computedBalanceAfterIn.BitLen() > 256 {
		return Bad("token total supply does not fit a uint256"), nil
	}
	if balanceAfterIn.Cmp(computedBalanceAfterIn) != 0 {
		return Bad("balance after in transfer does not match"), nil
	}
	if balanceAfterOut.Cmp(balanceBeforeIn) != 0 {
		return Bad("balance after out transfer does not match"), nil
	}
	computedBalanceRecipientAfter := new(big.Int).Add(balanceRecipientBefore, amount)
	if computedBalanceRecipientAfter.BitLen() > 256 {
		return Bad("token total supply does not fit a uint256"), nil
	}
	if computedBalanceRecipientAfter.Cmp(balanceRecipientAfter) != 0 {
		return Bad("balance of recipient does not match"), nil
	}

	_, failReason, err = ensureTransactionOkAndGetGas(traces[8])
	if err != nil {
		return TokenQuality{}, err
	}
	if failReason != "" {
		return Bad(fmt.Sprintf("can't approve max amount: %s", failReason)), nil
	}

	_ = gasIn
	_ = gasOut
	return Good(), nil
}
