// Package contractclient wraps a parsed ABI and an RPC connection with the
// small set of operations the rest of this repo needs from a deployed
// contract: decoding submitted calldata back into method name and
// arguments, and issuing read-only eth_call invocations.
package contractclient

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/cowsettle/gpv2core/internal/util"
)

// ContractClient binds a contract ABI to an address and an RPC client.
type ContractClient struct {
	client  *ethclient.Client
	address common.Address
	abi     abi.ABI
}

// NewContractClient builds a client for address using the given parsed ABI.
// client may be nil for offline calldata decoding only.
func NewContractClient(client *ethclient.Client, address common.Address, contractABI abi.ABI) *ContractClient {
	return &ContractClient{client: client, address: address, abi: contractABI}
}

// Abi returns the underlying parsed ABI.
func (c *ContractClient) Abi() abi.ABI {
	return c.abi
}

// DecodedTransaction is the result of matching raw calldata against the
// client's ABI.
type DecodedTransaction struct {
	MethodName string
	Args       map[string]interface{}
}

// TransactionData fetches a transaction by hash and returns its raw calldata.
func (c *ContractClient) TransactionData(txHash common.Hash) ([]byte, error) {
	tx, _, err := c.client.TransactionByHash(context.Background(), txHash)
	if err != nil {
		return nil, fmt.Errorf("contractclient: fetch transaction %s: %w", txHash, err)
	}
	return tx.Data(), nil
}

// DecodeTransaction matches data's 4-byte selector against the client's ABI
// and unpacks the remaining bytes into named arguments.
func (c *ContractClient) DecodeTransaction(data []byte) (*DecodedTransaction, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("contractclient: calldata too short: %d bytes", len(data))
	}

	method, err := c.abi.MethodById(data[:4])
	if err != nil {
		return nil, fmt.Errorf("contractclient: unknown method selector: %w", err)
	}

	args := make(map[string]interface{})
	if err := method.Inputs.UnpackIntoMap(args, data[4:]); err != nil {
		return nil, fmt.Errorf("contractclient: unpack %s inputs: %w", method.Name, err)
	}

	return &DecodedTransaction{MethodName: method.Name, Args: args}, nil
}

// DecodeTransactionHex is DecodeTransaction for hex-encoded calldata.
func (c *ContractClient) DecodeTransactionHex(hexData string) (*DecodedTransaction, error) {
	return c.DecodeTransaction(util.Hex2Bytes(hexData))
}

// Call packs method and args, issues a read-only eth_call against the
// client's contract address, and unpacks the results. from, if non-nil, is
// set as the call's sender.
func (c *ContractClient) Call(from *common.Address, method string, args ...interface{}) ([]interface{}, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("contractclient: pack %s: %w", method, err)
	}

	msg := ethereum.CallMsg{To: &c.address, Data: input}
	if from != nil {
		msg.From = *from
	}

	out, err := c.client.CallContract(context.Background(), msg, nil)
	if err != nil {
		return nil, fmt.Errorf("contractclient: call %s: %w", method, err)
	}

	outputs, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("contractclient: unpack %s outputs: %w", method, err)
	}
	return outputs, nil
}
