package evm

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testContract = common.HexToAddress("0x1111111111111111111111111111111111111111")

const (
	testSeparator  = "0x464e7013812c546f6a1ff38bf0e93268edc9c3dd399d2ca5c8eb957d561f2b82"
	testStructHash = "0x8faf362fbd510ca3c967cc1b14f84df2226cc35a04a5d9f32bbd28d188eaadca"
	testDigest     = "0x15dfc2ba329e06ce352b449a707fb24ce0424ea64080c15b82547554817a972c"
)

func mustIntent(t *testing.T, handle, platform string, amount, nonce, deadline int64) PaymentIntent {
	t.Helper()
	intent, err := NewPaymentIntent(handle, platform, big.NewInt(amount), big.NewInt(nonce), big.NewInt(deadline))
	require.NoError(t, err)
	return intent
}

func testDomain() IntentDomain {
	return IntentDomain{
		VerifyingContract: testContract,
		ChainID:           ChainIDSepolia,
		Separator:         common.HexToHash(testSeparator),
	}
}

func TestPaymentIntentTypeHash(t *testing.T) {
	assert.Equal(t,
		"0xc67e8d6fcb038eb95cdd9fb47d487b7df0bbcf8b0b664614f8736c4057fb815e",
		PaymentIntentTypeHash.Hex())
}

func TestComputeDomainSeparator(t *testing.T) {
	separator, err := ComputeDomainSeparator(DomainName, DomainVersion, ChainIDSepolia, testContract)
	require.NoError(t, err)
	assert.Equal(t, testSeparator, separator.Hex())

	t.Run("chain id changes separator", func(t *testing.T) {
		other, err := ComputeDomainSeparator(DomainName, DomainVersion, big.NewInt(1), testContract)
		require.NoError(t, err)
		assert.NotEqual(t, separator, other)
	})

	t.Run("nil chain id", func(t *testing.T) {
		_, err := ComputeDomainSeparator(DomainName, DomainVersion, nil, testContract)
		assert.Error(t, err)
	})
}

func TestBuildDigest(t *testing.T) {
	intent := mustIntent(t, "alice", "telegram", 10_000_000, 1, 2_000_000_000)

	t.Run("known vector", func(t *testing.T) {
		assert.Equal(t, testStructHash, HashPaymentIntent(intent).Hex())
		assert.Equal(t, testDigest, BuildDigest(intent, testDomain()).Hex())
	})

	t.Run("deterministic", func(t *testing.T) {
		again := mustIntent(t, "alice", "telegram", 10_000_000, 1, 2_000_000_000)
		assert.Equal(t, BuildDigest(intent, testDomain()), BuildDigest(again, testDomain()))
	})

	t.Run("matches go-ethereum typed data hashing", func(t *testing.T) {
		typedData := PaymentIntentTypedData(intent, DomainName, DomainVersion, ChainIDSepolia, testContract)

		structHash, err := typedData.HashStruct(PrimaryTypePaymentIntent, typedData.Message)
		require.NoError(t, err)
		assert.Equal(t, HashPaymentIntent(intent).Bytes(), []byte(structHash))

		digest, _, err := apitypes.TypedDataAndHash(typedData)
		require.NoError(t, err)
		assert.Equal(t, BuildDigest(intent, testDomain()).Bytes(), digest)
	})

	t.Run("non-ascii handle is hashed as raw utf-8", func(t *testing.T) {
		cyrillic := mustIntent(t, "алиса", "telegram", 10_000_000, 1, 2_000_000_000)
		assert.Equal(t,
			"0x5a6c4a9fd8d056ad0ca7f8583c5112b737b2931fe8978c98600a1eb8a3b1c801",
			BuildDigest(cyrillic, testDomain()).Hex())
	})

	t.Run("separator is taken as given", func(t *testing.T) {
		domain := testDomain()
		domain.Separator = crypto.Keccak256Hash([]byte("other"))
		assert.NotEqual(t, testDigest, BuildDigest(intent, domain).Hex())
	})
}

func TestBuildDigestSensitivity(t *testing.T) {
	base := mustIntent(t, "alice", "telegram", 10_000_000, 1, 2_000_000_000)

	mutations := map[string]PaymentIntent{
		"handle":      mustIntent(t, "alicf", "telegram", 10_000_000, 1, 2_000_000_000),
		"handle case": mustIntent(t, "Alice", "telegram", 10_000_000, 1, 2_000_000_000),
		"platform":    mustIntent(t, "alice", "discord", 10_000_000, 1, 2_000_000_000),
		"amount":      mustIntent(t, "alice", "telegram", 10_000_001, 1, 2_000_000_000),
		"asyncNonce":  mustIntent(t, "alice", "telegram", 10_000_000, 2, 2_000_000_000),
		"deadline":    mustIntent(t, "alice", "telegram", 10_000_000, 1, 2_000_000_001),
	}

	seen := map[common.Hash]string{BuildDigest(base, testDomain()): "base"}
	for name, intent := range mutations {
		digest := BuildDigest(intent, testDomain())
		if prev, ok := seen[digest]; ok {
			t.Errorf("%s digest collides with %s", name, prev)
		}
		seen[digest] = name
	}
}

func TestNewPaymentIntent(t *testing.T) {
	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	tooWide := new(big.Int).Lsh(big.NewInt(1), 256)
	one := big.NewInt(1)

	tests := []struct {
		name     string
		handle   string
		platform string
		amount   *big.Int
		nonce    *big.Int
		deadline *big.Int
		wantErr  error
	}{
		{"valid", "alice", "telegram", one, one, one, nil},
		{"max uint256 amount", "alice", "telegram", maxUint256, one, one, nil},
		{"empty handle", "", "telegram", one, one, one, ErrInvalidHandle},
		{"at-prefixed handle", "@alice", "telegram", one, one, one, ErrInvalidHandle},
		{"empty platform", "alice", "", one, one, one, ErrInvalidPlatform},
		{"zero amount", "alice", "telegram", big.NewInt(0), one, one, ErrInvalidAmount},
		{"negative nonce", "alice", "telegram", one, big.NewInt(-1), one, ErrInvalidUint256},
		{"nil deadline", "alice", "telegram", one, one, nil, ErrInvalidUint256},
		{"amount too wide", "alice", "telegram", tooWide, one, one, ErrInvalidUint256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent, err := NewPaymentIntent(tt.handle, tt.platform, tt.amount, tt.nonce, tt.deadline)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 0, intent.Amount.ToBig().Cmp(tt.amount))
		})
	}
}

func TestPaymentIntentIsValueType(t *testing.T) {
	amount := big.NewInt(500)
	intent, err := NewPaymentIntent("alice", "telegram", amount, big.NewInt(1), big.NewInt(2))
	require.NoError(t, err)

	amount.SetInt64(1)
	copied := intent
	copied.Amount.SetUint64(7)

	assert.Equal(t, uint64(500), intent.Amount.Uint64())
}

func TestRecoverSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	digest := crypto.Keccak256Hash([]byte("digest"))
	raw, err := crypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)

	sig, err := SignatureFromBytes(raw)
	require.NoError(t, err)
	assert.Contains(t, []uint8{27, 28}, sig.V)

	recovered, err := RecoverSigner(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), recovered)
}

func TestSignatureFromBytes(t *testing.T) {
	t.Run("wrong length", func(t *testing.T) {
		_, err := SignatureFromBytes(make([]byte, 64))
		assert.Error(t, err)
	})

	t.Run("bad recovery id", func(t *testing.T) {
		raw := make([]byte, 65)
		raw[64] = 30
		_, err := SignatureFromBytes(raw)
		assert.Error(t, err)
	})

	t.Run("round trip", func(t *testing.T) {
		raw := make([]byte, 65)
		raw[0], raw[32], raw[64] = 0xaa, 0xbb, 28
		sig, err := SignatureFromBytes(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, sig.Bytes())
		assert.Len(t, sig.Hex(), 132)
	})
}
