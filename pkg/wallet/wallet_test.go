package wallet

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/gohyper/pkg/config"
	"github.com/betbot/gohyper/pkg/secretstore"
)

const (
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	// 上面助记词在 m/44'/60'/0'/0/0 的地址
	testMnemonicAddr = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
)

func TestFromMnemonic(t *testing.T) {
	id, err := FromMnemonic(testMnemonic, "")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testMnemonicAddr), id.Address())

	other, err := FromMnemonic(testMnemonic, "m/44'/60'/0'/0/1")
	require.NoError(t, err)
	assert.NotEqual(t, id.Address(), other.Address())

	_, err = FromMnemonic("not a mnemonic", "")
	assert.Error(t, err)
	_, err = FromMnemonic(testMnemonic, "m/bad")
	assert.Error(t, err)
}

func TestResolvePriority(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := "0x" + hex.EncodeToString(crypto.FromECDSA(key))

	id, err := Resolve(config.WalletConfig{PrivateKey: hexKey, Mnemonic: testMnemonic})
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), id.Address())

	id, err = Resolve(config.WalletConfig{Mnemonic: testMnemonic, DerivationPath: DefaultDerivationPath})
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testMnemonicAddr), id.Address())

	_, err = Resolve(config.WalletConfig{})
	assert.ErrorIs(t, err, ErrNoSource)

	_, err = Resolve(config.WalletConfig{PrivateKey: "0xzz"})
	assert.Error(t, err)
}

func TestFromSecretStore(t *testing.T) {
	dir := t.TempDir()
	encKey := strings.Repeat("11", 32)
	raw, err := secretstore.ParseKey(encKey)
	require.NoError(t, err)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	ss, err := secretstore.Open(secretstore.OpenOptions{Path: dir, EncryptionKey: raw})
	require.NoError(t, err)
	require.NoError(t, ss.SetString("private_key", hex.EncodeToString(crypto.FromECDSA(key))))
	require.NoError(t, ss.SetString("mnemonic", testMnemonic))
	require.NoError(t, ss.Close())

	id, err := Resolve(config.WalletConfig{SecretStorePath: dir, SecretEncryptionKey: encKey, SecretKeyName: "private_key"})
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), id.Address())

	id, err = FromSecretStore(dir, encKey, "mnemonic", "")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testMnemonicAddr), id.Address())

	_, err = FromSecretStore(dir, encKey, "missing", "")
	assert.Error(t, err)
	_, err = FromSecretStore(dir, "", "private_key", "")
	assert.Error(t, err)
}
