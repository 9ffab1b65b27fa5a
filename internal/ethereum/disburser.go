package ethereum

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/blues/pledge/internal/config"
	"github.com/blues/pledge/internal/logger"
	"github.com/blues/pledge/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend 放款所需的链上接口，ethclient.Client 与模拟链均满足
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Disburser 从托管账户向收款地址转账
type Disburser struct {
	backend  Backend
	key      *ecdsa.PrivateKey
	from     common.Address
	gasLimit uint64

	mu      sync.Mutex
	chainID *big.Int
}

// Dial 连接RPC节点
func Dial(ctx context.Context, cfg config.ChainConfig) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ethereum client: %w", err)
	}
	return client, nil
}

// NewDisburser 解析托管账户私钥并创建放款器
func NewDisburser(backend Backend, privateKeyHex string, gasLimit uint64) (*Disburser, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	if gasLimit == 0 {
		gasLimit = 21000
	}
	return &Disburser{
		backend:  backend,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		gasLimit: gasLimit,
	}, nil
}

// Address 托管账户地址
func (d *Disburser) Address() common.Address {
	return d.from
}

// Disburse 发送转账交易并回填交易哈希。nonce 按顺序分配，串行发送。
func (d *Disburser) Disburse(ctx context.Context, transfer *model.TransferModel) error {
	if transfer.Amount.Sign() <= 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	chainID, err := d.loadChainID(ctx)
	if err != nil {
		return err
	}
	nonce, err := d.backend.PendingNonceAt(ctx, d.from)
	if err != nil {
		return fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := d.backend.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to suggest gas price: %w", err)
	}

	to := transfer.RecipientAddress()
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    transfer.Amount.BigInt(),
		Gas:      d.gasLimit,
		GasPrice: gasPrice,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), d.key)
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := d.backend.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("failed to send %s transfer of project %d: %w", transfer.Kind, transfer.ProjectId, err)
	}

	transfer.TxHash = signed.Hash().Hex()
	logger.Info("Sent %s transfer of %s to %s for project %d, tx %s",
		transfer.Kind, transfer.Amount, to.Hex(), transfer.ProjectId, transfer.TxHash)
	return nil
}

func (d *Disburser) loadChainID(ctx context.Context) (*big.Int, error) {
	if d.chainID != nil {
		return d.chainID, nil
	}
	chainID, err := d.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}
	d.chainID = chainID
	return chainID, nil
}
