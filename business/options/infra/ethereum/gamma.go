package ethereum

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/otoken-adapter/business/options/app"
	"github.com/fd1az/otoken-adapter/business/options/domain"
	"github.com/fd1az/otoken-adapter/internal/apperror"
	"github.com/fd1az/otoken-adapter/internal/asset"
	"github.com/fd1az/otoken-adapter/internal/logger"
)

// GammaDecimals is the precision of oToken supplies, strikes and oracle prices.
const GammaDecimals = 8

// GammaAddresses locate the protocol's contracts.
type GammaAddresses struct {
	Factory    common.Address
	Controller common.Address
	Oracle     common.Address
	MarginPool common.Address
}

// ResolveAddressBook reads the contract addresses registered in book.
func ResolveAddressBook(ctx context.Context, client *Client, book common.Address) (GammaAddresses, error) {
	var out GammaAddresses
	for _, q := range []struct {
		method string
		dst    *common.Address
	}{
		{"getOtokenFactory", &out.Factory},
		{"getController", &out.Controller},
		{"getOracle", &out.Oracle},
		{"getMarginPool", &out.MarginPool},
	} {
		res, err := client.Call(ctx, addressBookContract, book, q.method)
		if err != nil {
			return GammaAddresses{}, err
		}
		*q.dst = res[0].(common.Address)
	}
	return out, nil
}

// Gamma binds the factory, controller and oracle.
//
// Vault actions issued inside an Atomic scope are queued and sent as one
// operate transaction when the scope flushes: on commit, before any ledger
// transfer, or when vault state is read.
type Gamma struct {
	client *Client
	addrs  GammaAddresses
	ledger *Ledger
	logger logger.LoggerInterface
}

var (
	_ app.TokenIndex = (*Gamma)(nil)
	_ app.Controller = (*Gamma)(nil)
	_ app.Oracle     = (*Gamma)(nil)
)

// NewGamma creates the binding. ledger is used for margin pool approvals.
func NewGamma(client *Client, addrs GammaAddresses, ledger *Ledger, log logger.LoggerInterface) *Gamma {
	g := &Gamma{
		client: client,
		addrs:  addrs,
		ledger: ledger,
		logger: log,
	}
	ledger.flushers = append(ledger.flushers, g)
	return g
}

// Addresses returns the bound contracts.
func (g *Gamma) Addresses() GammaAddresses { return g.addrs }

// LookupToken implements app.TokenIndex.
func (g *Gamma) LookupToken(ctx context.Context, terms domain.OptionTerms) (common.Address, error) {
	strike, err := asset.Scale(terms.StrikePrice, domain.StrikeDecimals, GammaDecimals)
	if err != nil {
		return common.Address{}, err
	}
	res, err := g.client.Call(ctx, factoryContract, g.addrs.Factory, "getOtoken",
		terms.Underlying,
		terms.StrikeAsset,
		terms.CollateralAsset,
		strike,
		big.NewInt(terms.Expiry.Unix()),
		terms.OptionType == domain.Put,
	)
	if err != nil {
		return common.Address{}, err
	}
	return res[0].(common.Address), nil
}

// TokenDetails implements app.TokenIndex.
func (g *Gamma) TokenDetails(ctx context.Context, token common.Address) (domain.OptionToken, error) {
	res, err := g.client.Call(ctx, otokenContract, token, "getOtokenDetails")
	if err != nil {
		if apperror.HasCode(err, apperror.CodeContractCallFailed) {
			return domain.OptionToken{}, apperror.New(apperror.CodeUnknownOption,
				apperror.WithCause(err),
				apperror.WithContext(token.Hex()))
		}
		return domain.OptionToken{}, err
	}

	strike, err := asset.Scale(res[3].(*big.Int), GammaDecimals, domain.StrikeDecimals)
	if err != nil {
		return domain.OptionToken{}, err
	}
	kind := domain.Call
	if res[5].(bool) {
		kind = domain.Put
	}

	decimals, err := g.ledger.Decimals(ctx, token)
	if err != nil {
		return domain.OptionToken{}, err
	}

	return domain.OptionToken{
		Address: token,
		Terms: domain.OptionTerms{
			CollateralAsset: res[0].(common.Address),
			Underlying:      res[1].(common.Address),
			StrikeAsset:     res[2].(common.Address),
			StrikePrice:     strike,
			Expiry:          time.Unix(res[4].(*big.Int).Int64(), 0).UTC(),
			OptionType:      kind,
		},
		Decimals: decimals,
	}, nil
}

// OpenVault queues an OpenVault action and returns the id it will get.
func (g *Gamma) OpenVault(ctx context.Context, owner common.Address) (domain.VaultID, error) {
	if err := selfOnly(g.client, owner); err != nil {
		return 0, err
	}

	b := batchFrom(ctx)
	count, ok := b.opened(owner)
	if !ok {
		res, err := g.client.Call(ctx, controllerContract, g.addrs.Controller, "getAccountVaultCounter", owner)
		if err != nil {
			return 0, err
		}
		count = res[0].(*big.Int).Uint64()
	}

	id := count + 1
	if err := g.enqueue(ctx, newAction(actionOpenVault, owner, common.Address{}, common.Address{}, id, nil)); err != nil {
		return 0, err
	}

	b.open(owner, id)
	return domain.VaultID(id), nil
}

// DepositCollateral approves the margin pool and queues a deposit.
func (g *Gamma) DepositCollateral(ctx context.Context, owner common.Address, id domain.VaultID, collateral common.Address, amount *big.Int) error {
	if err := selfOnly(g.client, owner); err != nil {
		return err
	}
	if err := g.ledger.Approve(ctx, collateral, g.addrs.MarginPool, amount); err != nil {
		return err
	}
	return g.enqueue(ctx, newAction(actionDepositCollateral, owner, owner, collateral, uint64(id), amount))
}

// MintToken queues a mint of amount to to.
func (g *Gamma) MintToken(ctx context.Context, owner common.Address, id domain.VaultID, token common.Address, amount *big.Int, to common.Address) error {
	if err := selfOnly(g.client, owner); err != nil {
		return err
	}
	return g.enqueue(ctx, newAction(actionMintShortOption, owner, to, token, uint64(id), amount))
}

// Vault reads a vault after sending any queued actions.
func (g *Gamma) Vault(ctx context.Context, owner common.Address, id domain.VaultID) (domain.Vault, error) {
	if err := g.Flush(ctx); err != nil {
		return domain.Vault{}, err
	}

	res, err := g.client.Call(ctx, controllerContract, g.addrs.Controller, "getVault", owner, new(big.Int).SetUint64(uint64(id)))
	if err != nil {
		return domain.Vault{}, err
	}
	mv := *abi.ConvertType(res[0], new(marginVault)).(*marginVault)

	v := domain.Vault{Owner: owner, ID: id, CollateralAmount: new(big.Int), MintedAmount: new(big.Int)}
	if len(mv.CollateralAssets) > 0 {
		v.CollateralAsset = mv.CollateralAssets[0]
		v.CollateralAmount = mv.CollateralAmounts[0]
	}
	if len(mv.ShortOtokens) > 0 {
		v.Token = mv.ShortOtokens[0]
		v.MintedAmount = mv.ShortAmounts[0]
	}
	return v, nil
}

// Settle redeems expired tokens held by the operator. The payout is the
// controller's quote at the time of redemption.
func (g *Gamma) Settle(ctx context.Context, req app.SettleRequest) (*big.Int, error) {
	if err := selfOnly(g.client, req.Holder); err != nil {
		return nil, err
	}
	if err := g.Flush(ctx); err != nil {
		return nil, err
	}

	res, err := g.client.Call(ctx, controllerContract, g.addrs.Controller, "getPayout", req.Token, req.Amount)
	if err != nil {
		return nil, err
	}
	payout := res[0].(*big.Int)

	redeem := newAction(actionRedeem, common.Address{}, req.Holder, req.Token, 0, req.Amount)
	if err := g.operate(ctx, []actionArgs{redeem}); err != nil {
		return nil, err
	}
	return payout, nil
}

// Price implements app.Oracle.
func (g *Gamma) Price(ctx context.Context, asset common.Address) (app.OraclePrice, error) {
	res, err := g.client.Call(ctx, oracleContract, g.addrs.Oracle, "getPrice", asset)
	if err != nil {
		return app.OraclePrice{}, err
	}
	return app.OraclePrice{Value: res[0].(*big.Int), Decimals: GammaDecimals, Finalized: true}, nil
}

// ExpiryPrice implements app.Oracle.
func (g *Gamma) ExpiryPrice(ctx context.Context, asset common.Address, expiry time.Time) (app.OraclePrice, error) {
	res, err := g.client.Call(ctx, oracleContract, g.addrs.Oracle, "getExpiryPrice", asset, big.NewInt(expiry.Unix()))
	if err != nil {
		return app.OraclePrice{}, err
	}
	return app.OraclePrice{Value: res[0].(*big.Int), Decimals: GammaDecimals, Finalized: res[1].(bool)}, nil
}

// Flush sends the actions queued in ctx's scope, if any.
func (g *Gamma) Flush(ctx context.Context) error {
	b := batchFrom(ctx)
	if b == nil {
		return nil
	}
	actions := b.take()
	if len(actions) == 0 {
		return nil
	}
	return g.operate(ctx, actions)
}

func (g *Gamma) enqueue(ctx context.Context, action actionArgs) error {
	if b := batchFrom(ctx); b != nil {
		b.add(action)
		return nil
	}
	return g.operate(ctx, []actionArgs{action})
}

func (g *Gamma) operate(ctx context.Context, actions []actionArgs) error {
	_, err := g.client.Transact(ctx, controllerContract, g.addrs.Controller, nil, "operate", actions)
	if err != nil {
		return err
	}
	b := batchFrom(ctx)
	for _, a := range actions {
		if a.ActionType == actionDepositCollateral {
			b.consume(a.Asset, a.Amount)
		}
	}
	g.logger.Debug(ctx, "controller operate sent", "actions", len(actions))
	return nil
}
