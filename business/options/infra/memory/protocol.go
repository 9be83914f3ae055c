package memory

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fd1az/otoken-adapter/business/options/app"
	"github.com/fd1az/otoken-adapter/business/options/domain"
	"github.com/fd1az/otoken-adapter/internal/apperror"
	"github.com/fd1az/otoken-adapter/internal/asset"
)

// TokenDecimals is the supply scale of tokens created by the factory.
const TokenDecimals = 8

// Protocol is a margin protocol with a token factory. Collateral sits in
// the Pool address; vaults are numbered per owner from 1.
type Protocol struct {
	chain    *Chain
	registry *asset.Registry
	basis    domain.PayoutBasis

	Factory common.Address
	Pool    common.Address
}

var (
	_ app.Controller = (*Protocol)(nil)
	_ app.TokenIndex = (*Protocol)(nil)
)

// NewProtocol creates a protocol settling with basis. registry supplies
// collateral decimals.
func NewProtocol(chain *Chain, registry *asset.Registry, basis domain.PayoutBasis) *Protocol {
	return &Protocol{
		chain:    chain,
		registry: registry,
		basis:    basis,
		Factory:  Addr("otoken-factory"),
		Pool:     Addr("margin-pool"),
	}
}

// CreateToken deploys the token for terms. Creating the same terms twice fails.
func (p *Protocol) CreateToken(terms domain.OptionTerms) (common.Address, error) {
	if err := terms.Validate(); err != nil {
		return common.Address{}, revert(err.Error())
	}

	p.chain.mu.Lock()
	defer p.chain.mu.Unlock()

	key := terms.Key()
	if _, ok := p.chain.st.byTerms[key]; ok {
		return common.Address{}, revert("option already created")
	}
	addr := crypto.CreateAddress(p.Factory, p.chain.st.nonce)
	p.chain.st.nonce++
	p.chain.st.byTerms[key] = addr
	p.chain.st.tokens[addr] = domain.OptionToken{Address: addr, Terms: terms, Decimals: TokenDecimals}
	return addr, nil
}

// LookupToken implements app.TokenIndex.
func (p *Protocol) LookupToken(_ context.Context, terms domain.OptionTerms) (common.Address, error) {
	p.chain.mu.Lock()
	defer p.chain.mu.Unlock()
	return p.chain.st.byTerms[terms.Key()], nil
}

// TokenDetails implements app.TokenIndex.
func (p *Protocol) TokenDetails(_ context.Context, token common.Address) (domain.OptionToken, error) {
	p.chain.mu.Lock()
	defer p.chain.mu.Unlock()

	details, ok := p.chain.st.tokens[token]
	if !ok {
		return domain.OptionToken{}, apperror.NotFound(apperror.CodeUnknownOption, token.Hex())
	}
	return details, nil
}

// OpenVault implements app.Controller.
func (p *Protocol) OpenVault(_ context.Context, owner common.Address) (domain.VaultID, error) {
	p.chain.mu.Lock()
	defer p.chain.mu.Unlock()

	id := p.chain.st.counters[owner] + 1
	p.chain.st.counters[owner] = id
	p.chain.st.vaults[vaultKey{owner, id}] = domain.Vault{
		Owner:            owner,
		ID:               id,
		CollateralAmount: new(big.Int),
		MintedAmount:     new(big.Int),
	}
	return id, nil
}

// DepositCollateral implements app.Controller.
func (p *Protocol) DepositCollateral(_ context.Context, owner common.Address, id domain.VaultID, collateral common.Address, amount *big.Int) error {
	p.chain.mu.Lock()
	defer p.chain.mu.Unlock()

	key := vaultKey{owner, id}
	v, ok := p.chain.st.vaults[key]
	if !ok {
		return revert("vault does not exist")
	}
	if v.CollateralAsset != (common.Address{}) && v.CollateralAsset != collateral {
		return revert("vault holds another collateral")
	}
	if err := p.chain.move(collateral, owner, p.Pool, amount); err != nil {
		return err
	}
	v.CollateralAsset = collateral
	v.CollateralAmount = new(big.Int).Add(v.CollateralAmount, amount)
	p.chain.st.vaults[key] = v
	return nil
}

// MintToken implements app.Controller. The vault must already hold enough
// collateral for its total minted amount.
func (p *Protocol) MintToken(_ context.Context, owner common.Address, id domain.VaultID, token common.Address, amount *big.Int, to common.Address) error {
	p.chain.mu.Lock()
	defer p.chain.mu.Unlock()

	key := vaultKey{owner, id}
	v, ok := p.chain.st.vaults[key]
	if !ok {
		return revert("vault does not exist")
	}
	details, ok := p.chain.st.tokens[token]
	if !ok {
		return revert("not a whitelisted otoken")
	}
	if v.Token != (common.Address{}) && v.Token != token {
		return revert("vault holds another otoken")
	}
	if v.CollateralAsset != details.Terms.CollateralAsset {
		return revert("collateral does not match otoken")
	}

	decimals, err := p.registry.Decimals(v.CollateralAsset)
	if err != nil {
		return revert(err.Error())
	}
	backed, err := domain.MintAmount(details.Terms, v.CollateralAmount, decimals, details.Decimals, asset.RoundDown)
	if err != nil {
		return revert(err.Error())
	}
	minted := new(big.Int).Add(v.MintedAmount, amount)
	if minted.Cmp(backed) > 0 {
		return revert("vault is undercollateralized")
	}

	v.Token = token
	v.MintedAmount = minted
	p.chain.st.vaults[key] = v
	p.chain.credit(token, to, amount)
	return nil
}

// Vault implements app.Controller.
func (p *Protocol) Vault(_ context.Context, owner common.Address, id domain.VaultID) (domain.Vault, error) {
	p.chain.mu.Lock()
	defer p.chain.mu.Unlock()

	v, ok := p.chain.st.vaults[vaultKey{owner, id}]
	if !ok {
		return domain.Vault{}, revert("vault does not exist")
	}
	v.CollateralAmount = new(big.Int).Set(v.CollateralAmount)
	v.MintedAmount = new(big.Int).Set(v.MintedAmount)
	return v, nil
}

// Settle implements app.Controller. It burns the holder's tokens and pays
// their value at the finalized expiry price out of the pool.
func (p *Protocol) Settle(_ context.Context, req app.SettleRequest) (*big.Int, error) {
	p.chain.mu.Lock()
	defer p.chain.mu.Unlock()

	details, ok := p.chain.st.tokens[req.Token]
	if !ok {
		return nil, revert("not a whitelisted otoken")
	}
	terms := details.Terms
	if p.chain.now.Before(terms.Expiry) {
		return nil, revert("can not settle before expiry")
	}
	price, ok := p.chain.st.expiry[expiryKey{terms.Underlying, terms.Expiry.Unix()}]
	if !ok || !price.Finalized {
		return nil, revert("price not finalized")
	}

	settlement, err := asset.Scale(price.Value, price.Decimals, domain.StrikeDecimals)
	if err != nil {
		return nil, revert(err.Error())
	}
	amount, err := asset.Scale(req.Amount, details.Decimals, domain.OptionDecimals)
	if err != nil {
		return nil, revert(err.Error())
	}
	decimals, err := p.registry.Decimals(terms.CollateralAsset)
	if err != nil {
		return nil, revert(err.Error())
	}
	payout, err := domain.ExerciseProfit(terms, amount, settlement, decimals, p.basis)
	if err != nil {
		return nil, revert(err.Error())
	}

	if err := p.chain.debit(req.Token, req.Holder, req.Amount); err != nil {
		return nil, err
	}
	if err := p.chain.move(terms.CollateralAsset, p.Pool, req.Holder, payout); err != nil {
		return nil, err
	}
	return payout, nil
}

// Oracle reports prices with OracleDecimals precision.
type Oracle struct {
	chain *Chain
}

// OracleDecimals is the precision of Oracle prices.
const OracleDecimals = 8

var _ app.Oracle = (*Oracle)(nil)

// NewOracle creates an Oracle on chain.
func NewOracle(chain *Chain) *Oracle {
	return &Oracle{chain: chain}
}

// SetPrice sets the spot price of asset.
func (o *Oracle) SetPrice(asset common.Address, value *big.Int) {
	o.chain.mu.Lock()
	defer o.chain.mu.Unlock()
	o.chain.st.spot[asset] = new(big.Int).Set(value)
}

// SetExpiryPrice records the settlement price of asset at expiry.
func (o *Oracle) SetExpiryPrice(asset common.Address, expiry time.Time, value *big.Int, finalized bool) {
	o.chain.mu.Lock()
	defer o.chain.mu.Unlock()
	o.chain.st.expiry[expiryKey{asset, expiry.Unix()}] = app.OraclePrice{
		Value:     new(big.Int).Set(value),
		Decimals:  OracleDecimals,
		Finalized: finalized,
	}
}

// Price implements app.Oracle.
func (o *Oracle) Price(_ context.Context, asset common.Address) (app.OraclePrice, error) {
	o.chain.mu.Lock()
	defer o.chain.mu.Unlock()

	v, ok := o.chain.st.spot[asset]
	if !ok {
		return app.OraclePrice{}, revert("no price for " + asset.Hex())
	}
	return app.OraclePrice{Value: new(big.Int).Set(v), Decimals: OracleDecimals, Finalized: true}, nil
}

// ExpiryPrice implements app.Oracle. Missing prices read as zero and not finalized.
func (o *Oracle) ExpiryPrice(_ context.Context, asset common.Address, expiry time.Time) (app.OraclePrice, error) {
	o.chain.mu.Lock()
	defer o.chain.mu.Unlock()

	p, ok := o.chain.st.expiry[expiryKey{asset, expiry.Unix()}]
	if !ok {
		return app.OraclePrice{Value: new(big.Int), Decimals: OracleDecimals}, nil
	}
	return app.OraclePrice{Value: new(big.Int).Set(p.Value), Decimals: p.Decimals, Finalized: p.Finalized}, nil
}
