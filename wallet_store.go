package fisher

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// WalletStore maps initiator identities to the wallet they send from.
// Registrations live only in memory and are overwritten on each set.
type WalletStore struct {
	mu      sync.RWMutex
	wallets map[string]common.Address
}

// NewWalletStore creates an empty wallet registry
func NewWalletStore() *WalletStore {
	return &WalletStore{wallets: make(map[string]common.Address)}
}

// Set registers address as identity's sender wallet.
// Returns the parsed address and whether an earlier wallet was replaced.
func (s *WalletStore) Set(identity, address string) (common.Address, bool, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return common.Address{}, false, NewPaymentError(ErrCodeInvalidWallet,
			"wallet address must be a 20-byte hex address", map[string]interface{}{"address": address})
	}
	wallet := common.HexToAddress(address)
	if wallet == (common.Address{}) {
		return common.Address{}, false, NewPaymentError(ErrCodeInvalidWallet,
			"wallet address cannot be the zero address", map[string]interface{}{"address": address})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, replaced := s.wallets[identity]
	s.wallets[identity] = wallet
	return wallet, replaced, nil
}

// Get returns identity's registered wallet
func (s *WalletStore) Get(identity string) (common.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wallet, ok := s.wallets[identity]
	return wallet, ok
}

// Len returns the number of registered wallets
func (s *WalletStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.wallets)
}
