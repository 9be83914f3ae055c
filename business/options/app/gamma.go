package app

// NewGammaAdapter builds the adapter for protocols that issue fungible
// oTokens through a factory and sell them through off-chain swap orders.
// Premiums are set by the order, so Premium returns zero.
func NewGammaAdapter(deps Dependencies, settings Settings) (*Facade, error) {
	if settings.Protocol == "" {
		settings.Protocol = ProtocolGamma
	}
	f, err := newFacade(deps, settings, ExternalPricer{})
	if err != nil {
		return nil, err
	}
	f.purchase = f.purchaseWithOrder
	return f, nil
}
