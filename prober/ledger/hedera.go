package ledger

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	hedera "github.com/hashgraph/hedera-sdk-go/v2"
)

// HederaConfig selects the network and operator identity.
type HederaConfig struct {
	Network        string // mainnet or testnet
	AccountID      string
	PrivateKey     string
	RequestTimeout time.Duration
}

// Hedera implements Client on top of the Hedera Go SDK.
type Hedera struct {
	client   *hedera.Client
	operator hedera.AccountID
}

// NewHedera connects a client for the configured network and sets the operator.
func NewHedera(cfg HederaConfig) (*Hedera, error) {
	var client *hedera.Client
	switch cfg.Network {
	case "mainnet":
		client = hedera.ClientForMainnet()
	case "testnet":
		client = hedera.ClientForTestnet()
	default:
		return nil, errors.Newf("unsupported network %q", cfg.Network)
	}

	operator, err := hedera.AccountIDFromString(cfg.AccountID)
	if err != nil {
		return nil, errors.Wrapf(err, "parse account id %q", cfg.AccountID)
	}
	key, err := hedera.PrivateKeyFromString(cfg.PrivateKey)
	if err != nil {
		return nil, errors.Wrap(err, "parse private key")
	}

	client.SetOperator(operator, key)
	if cfg.RequestTimeout > 0 {
		client.SetRequestTimeout(&cfg.RequestTimeout)
	}

	return &Hedera{client: client, operator: operator}, nil
}

func (h *Hedera) AccountID() string {
	return h.operator.String()
}

func (h *Hedera) SubmitTransfer(ctx context.Context, amountTinybar int64) (Submission, error) {
	if err := ctx.Err(); err != nil {
		return Submission{}, err
	}

	tx, err := hedera.NewTransferTransaction().
		AddHbarTransfer(h.operator, hedera.HbarFromTinybar(amountTinybar)).
		AddHbarTransfer(h.operator, hedera.HbarFromTinybar(-amountTinybar)).
		FreezeWith(h.client)
	if err != nil {
		return Submission{}, errors.Wrap(err, "freeze transfer")
	}
	tx, err = tx.SignWithOperator(h.client)
	if err != nil {
		return Submission{}, errors.Wrap(err, "sign transfer")
	}

	resp, err := tx.Execute(h.client)
	if err != nil {
		return Submission{}, err
	}
	return NewSubmission(resp.TransactionID.String(), resp), nil
}

func (h *Hedera) QueryReceipt(ctx context.Context, sub Submission) (Status, error) {
	resp, err := h.response(ctx, sub)
	if err != nil {
		return "", err
	}

	// one round trip per query; the caller owns the retry policy
	receipt, err := hedera.NewTransactionReceiptQuery().
		SetTransactionID(resp.TransactionID).
		SetNodeAccountIDs([]hedera.AccountID{resp.NodeID}).
		SetMaxRetry(1).
		Execute(h.client)
	return receiptStatus(receipt, err)
}

// receiptStatus maps a receipt query result to a Status. Statuses the network
// reports while consensus is still pending come back as StatusUnknown; any
// other exceptional status is returned as is, without an error.
func receiptStatus(receipt hedera.TransactionReceipt, err error) (Status, error) {
	if err == nil {
		return Status(receipt.Status.String()), nil
	}

	var status hedera.Status
	var precheck hedera.ErrHederaPreCheckStatus
	var receiptErr hedera.ErrHederaReceiptStatus
	switch {
	case errors.As(err, &precheck):
		status = precheck.Status
	case errors.As(err, &receiptErr):
		status = receiptErr.Status
	default:
		return "", err
	}

	switch status {
	case hedera.StatusUnknown, hedera.StatusReceiptNotFound, hedera.StatusBusy, hedera.StatusPlatformNotActive:
		return StatusUnknown, nil
	}
	return Status(status.String()), nil
}

func (h *Hedera) QueryRecord(ctx context.Context, sub Submission) (SettledRecord, error) {
	resp, err := h.response(ctx, sub)
	if err != nil {
		return SettledRecord{}, err
	}

	record, err := resp.GetRecord(h.client)
	if err != nil {
		return SettledRecord{}, err
	}
	return SettledRecord{
		TransactionID: record.TransactionID.String(),
		Fee:           record.TransactionFee.As(hedera.HbarUnits.Hbar),
	}, nil
}

// QueryBalance is free on Hedera.
func (h *Hedera) QueryBalance(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	balance, err := hedera.NewAccountBalanceQuery().
		SetAccountID(h.operator).
		Execute(h.client)
	if err != nil {
		return 0, err
	}
	return balance.Hbars.As(hedera.HbarUnits.Hbar), nil
}

func (h *Hedera) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := hedera.NewNetworkVersionQuery().Execute(h.client)
	return err
}

// Close releases the network connections.
func (h *Hedera) Close() error {
	return h.client.Close()
}

func (h *Hedera) response(ctx context.Context, sub Submission) (hedera.TransactionResponse, error) {
	if err := ctx.Err(); err != nil {
		return hedera.TransactionResponse{}, err
	}
	resp, ok := sub.Handle().(hedera.TransactionResponse)
	if !ok {
		return hedera.TransactionResponse{}, errors.Newf("submission %s was not made by this client", sub.TransactionID)
	}
	return resp, nil
}

var _ Client = (*Hedera)(nil)
