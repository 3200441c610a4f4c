package txn

import (
	"encoding/binary"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"liquidify/internal/solana"
)

// Token program instruction tags shared by SPL Token and Token-2022.
const (
	tokenIxBurn         = 8
	tokenIxCloseAccount = 9
	tokenIxSyncNative   = 17
)

// Compute budget instruction tags.
const (
	computeIxSetUnitLimit = 2
	computeIxSetUnitPrice = 3
)

var (
	systemProgram          = solanago.MustPublicKeyFromBase58(solana.SystemProgramID)
	associatedTokenProgram = solanago.MustPublicKeyFromBase58(solana.AssociatedTokenProgramID)
	computeBudgetProgram   = solanago.MustPublicKeyFromBase58(solana.ComputeBudgetProgramID)
)

// ComputeUnitPrice sets the priority fee in micro-lamports per compute unit.
func ComputeUnitPrice(microLamports uint64) solanago.Instruction {
	data := make([]byte, 9)
	data[0] = computeIxSetUnitPrice
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return solanago.NewInstruction(computeBudgetProgram, solanago.AccountMetaSlice{}, data)
}

// ComputeUnitLimit caps the compute units the transaction may consume.
func ComputeUnitLimit(units uint32) solanago.Instruction {
	data := make([]byte, 5)
	data[0] = computeIxSetUnitLimit
	binary.LittleEndian.PutUint32(data[1:], units)
	return solanago.NewInstruction(computeBudgetProgram, solanago.AccountMetaSlice{}, data)
}

// Transfer moves lamports between system accounts.
func Transfer(from, to solanago.PublicKey, lamports uint64) solanago.Instruction {
	return system.NewTransferInstruction(lamports, from, to).Build()
}

// CreateAssociatedTokenAccountIdempotent creates ata for owner and mint unless it already exists.
func CreateAssociatedTokenAccountIdempotent(payer, ata, owner, mint, tokenProgram solanago.PublicKey) solanago.Instruction {
	accounts := solanago.AccountMetaSlice{
		solanago.Meta(payer).WRITE().SIGNER(),
		solanago.Meta(ata).WRITE(),
		solanago.Meta(owner),
		solanago.Meta(mint),
		solanago.Meta(systemProgram),
		solanago.Meta(tokenProgram),
	}
	return solanago.NewInstruction(associatedTokenProgram, accounts, []byte{1})
}

// SyncNative updates a wrapped SOL account's token amount to its lamport balance.
func SyncNative(account, tokenProgram solanago.PublicKey) solanago.Instruction {
	accounts := solanago.AccountMetaSlice{
		solanago.Meta(account).WRITE(),
	}
	return solanago.NewInstruction(tokenProgram, accounts, []byte{tokenIxSyncNative})
}

// CloseAccount closes a token account and returns its lamports to destination.
func CloseAccount(account, destination, owner, tokenProgram solanago.PublicKey) solanago.Instruction {
	accounts := solanago.AccountMetaSlice{
		solanago.Meta(account).WRITE(),
		solanago.Meta(destination).WRITE(),
		solanago.Meta(owner).SIGNER(),
	}
	return solanago.NewInstruction(tokenProgram, accounts, []byte{tokenIxCloseAccount})
}

// Burn destroys amount tokens held in account. tokenProgram must own the account.
func Burn(account, mint, owner, tokenProgram solanago.PublicKey, amount uint64) solanago.Instruction {
	data := make([]byte, 9)
	data[0] = tokenIxBurn
	binary.LittleEndian.PutUint64(data[1:], amount)

	accounts := solanago.AccountMetaSlice{
		solanago.Meta(account).WRITE(),
		solanago.Meta(mint).WRITE(),
		solanago.Meta(owner).SIGNER(),
	}
	return solanago.NewInstruction(tokenProgram, accounts, data)
}
