package txn

import (
	"encoding/binary"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidify/internal/solana"
)

func mustKey(t *testing.T) solanago.PublicKey {
	t.Helper()
	k, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)
	return k.PublicKey()
}

func instructionData(t *testing.T, ix solanago.Instruction) []byte {
	t.Helper()
	data, err := ix.Data()
	require.NoError(t, err)
	return data
}

func TestBurn(t *testing.T) {
	account, mint, owner := mustKey(t), mustKey(t), mustKey(t)
	program := solanago.MustPublicKeyFromBase58(solana.Token2022ProgramID)

	ix := Burn(account, mint, owner, program, 123_456)

	assert.True(t, ix.ProgramID().Equals(program))
	data := instructionData(t, ix)
	require.Len(t, data, 9)
	assert.Equal(t, byte(tokenIxBurn), data[0])
	assert.Equal(t, uint64(123_456), binary.LittleEndian.Uint64(data[1:]))

	accounts := ix.Accounts()
	require.Len(t, accounts, 3)
	assert.True(t, accounts[0].PublicKey.Equals(account) && accounts[0].IsWritable)
	assert.True(t, accounts[1].PublicKey.Equals(mint) && accounts[1].IsWritable)
	assert.True(t, accounts[2].PublicKey.Equals(owner) && accounts[2].IsSigner)
}

func TestComputeBudget(t *testing.T) {
	price := instructionData(t, ComputeUnitPrice(50_000))
	require.Len(t, price, 9)
	assert.Equal(t, byte(computeIxSetUnitPrice), price[0])
	assert.Equal(t, uint64(50_000), binary.LittleEndian.Uint64(price[1:]))

	limit := instructionData(t, ComputeUnitLimit(300_000))
	require.Len(t, limit, 5)
	assert.Equal(t, byte(computeIxSetUnitLimit), limit[0])
	assert.Equal(t, uint32(300_000), binary.LittleEndian.Uint32(limit[1:]))
}

func TestCreateAssociatedTokenAccountIdempotent(t *testing.T) {
	payer, ata, owner, mint := mustKey(t), mustKey(t), mustKey(t), mustKey(t)
	program := solanago.MustPublicKeyFromBase58(solana.TokenProgramID)

	ix := CreateAssociatedTokenAccountIdempotent(payer, ata, owner, mint, program)

	assert.Equal(t, solana.AssociatedTokenProgramID, ix.ProgramID().String())
	assert.Equal(t, []byte{1}, instructionData(t, ix))

	accounts := ix.Accounts()
	require.Len(t, accounts, 6)
	assert.True(t, accounts[0].IsSigner)
	assert.Equal(t, solana.SystemProgramID, accounts[4].PublicKey.String())
	assert.True(t, accounts[5].PublicKey.Equals(program))
}

func TestTransfer(t *testing.T) {
	from, to := mustKey(t), mustKey(t)
	ix := Transfer(from, to, 42)

	assert.Equal(t, solana.SystemProgramID, ix.ProgramID().String())
	data := instructionData(t, ix)
	require.Len(t, data, 12)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[0:4]))
	assert.Equal(t, uint64(42), binary.LittleEndian.Uint64(data[4:]))
}

func TestWrapUnwrap(t *testing.T) {
	account, owner := mustKey(t), mustKey(t)
	program := solanago.MustPublicKeyFromBase58(solana.TokenProgramID)

	assert.Equal(t, []byte{tokenIxSyncNative}, instructionData(t, SyncNative(account, program)))

	closeIx := CloseAccount(account, owner, owner, program)
	assert.Equal(t, []byte{tokenIxCloseAccount}, instructionData(t, closeIx))
	require.Len(t, closeIx.Accounts(), 3)
}
